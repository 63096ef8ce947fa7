package runconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type loaderFixture struct {
	dir       string
	primary   string
	backup    string
	resources string
	loader    *Loader
}

func newLoaderFixture(t *testing.T) loaderFixture {
	t.Helper()
	dir := t.TempDir()
	f := loaderFixture{
		dir:       dir,
		primary:   filepath.Join(dir, "run.config"),
		backup:    filepath.Join(dir, "output", ".run.config"),
		resources: filepath.Join(dir, "resources"),
	}
	require.NoError(t, os.MkdirAll(f.resources, 0o755))
	f.loader = NewLoader(NewFileStore(f.primary, f.backup), f.resources, zaptest.NewLogger(t))
	return f
}

func TestLoadPrimary(t *testing.T) {
	f := newLoaderFixture(t)
	writeFile(t, f.primary, "blockchain_address=127.0.0.1:20200\norg_id=org\n")
	writeFile(t, f.backup, "blockchain_address=10.0.0.1:20200\norg_id=old\n")

	values := f.loader.Load()

	assert.Equal(t, "127.0.0.1:20200", values[KeyBlockchainAddress])
	assert.Equal(t, "org", values[KeyOrgID])
}

func TestLoadFallsBackToBackup(t *testing.T) {
	f := newLoaderFixture(t)
	writeFile(t, f.primary, "blockchain_address=  \norg_id=new\n")
	writeFile(t, f.backup, "blockchain_address=10.0.0.1:20200\norg_id=old\n")

	values := f.loader.Load()

	assert.Equal(t, "10.0.0.1:20200", values[KeyBlockchainAddress])
	assert.Equal(t, "old", values[KeyOrgID])
}

func TestLoadKeepsPrimaryWhenBackupEmpty(t *testing.T) {
	f := newLoaderFixture(t)
	writeFile(t, f.primary, "blockchain_address=\norg_id=new\n")
	writeFile(t, f.backup, "")

	values := f.loader.Load()

	assert.Equal(t, "", values[KeyBlockchainAddress])
	assert.Equal(t, "new", values[KeyOrgID])
}

func TestLoadMissingFiles(t *testing.T) {
	f := newLoaderFixture(t)

	values := f.loader.Load()

	require.Len(t, values, len(CertificateFiles))
	for _, name := range CertificateFiles {
		assert.Equal(t, "false", values[name])
	}
}

func TestLoadCertificateFlagsTrackFiles(t *testing.T) {
	f := newLoaderFixture(t)
	writeFile(t, f.primary, "blockchain_address=127.0.0.1:20200\n")

	for _, name := range CertificateFiles {
		writeFile(t, filepath.Join(f.resources, name), "cert")
	}
	values := f.loader.Load()
	for _, name := range CertificateFiles {
		assert.Equal(t, "true", values[name], name)
	}

	require.NoError(t, os.Remove(filepath.Join(f.resources, "node.key")))
	values = f.loader.Load()
	assert.Equal(t, "false", values["node.key"])
	assert.Equal(t, "true", values["ca.crt"])

	lines, err := ReadLines(f.primary)
	require.NoError(t, err)
	assert.Equal(t, []string{"blockchain_address=127.0.0.1:20200"}, lines, "flags are never persisted")
}
