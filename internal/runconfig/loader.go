package runconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CertificateFiles lists the files whose presence in the resources directory
// is reported by Loader.Load. The file name doubles as the result key.
var CertificateFiles = []string{"ca.crt", "client.keystore", "node.crt", "node.key"}

// Loader assembles the effective run.config view.
type Loader struct {
	store        Storage
	resourcesDir string
	logger       *zap.Logger
}

// NewLoader returns a Loader reading through store and checking certificates
// under resourcesDir.
func NewLoader(store Storage, resourcesDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		store:        store,
		resourcesDir: resourcesDir,
		logger:       logger,
	}
}

// Load parses the primary file. When the node address is blank there, the
// backup is parsed instead, provided it has any lines. The presence of each
// certificate file is added as "true" or "false". Unreadable files count as
// empty.
func (l *Loader) Load() Values {
	l.logger.Info("loading run config")

	lines, err := l.store.ReadLines()
	if err != nil {
		l.logger.Warn("run config unreadable, treating as empty", zap.Error(err))
	}
	values := Parse(lines)

	if strings.TrimSpace(values[KeyBlockchainAddress]) == "" {
		backup, err := l.store.ReadBackupLines()
		if err != nil {
			l.logger.Warn("run config backup unreadable", zap.Error(err))
		}
		if len(backup) > 0 {
			l.logger.Info("node address missing, using run config backup")
			values = Parse(backup)
		}
	}

	for name, present := range l.Certificates() {
		values[name] = strconv.FormatBool(present)
	}
	return values
}

// Certificates reports which certificate files exist.
func (l *Loader) Certificates() map[string]bool {
	flags := make(map[string]bool, len(CertificateFiles))
	for _, name := range CertificateFiles {
		flags[name] = fileExists(filepath.Join(l.resourcesDir, name))
	}
	return flags
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
