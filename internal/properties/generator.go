package properties

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/weidtools/weid-config/internal/runconfig"
)

// Generated file names inside the resources directory.
const (
	ChainPropertiesFile    = "fisco.properties"
	IdentityPropertiesFile = "weidentity.properties"
)

// ChainBindings feed fisco.properties.tpl. Contract addresses are filled in
// by the deployment step, so they always render empty here.
var ChainBindings = []Binding{
	{Placeholder: "FISCO_BCOS_VERSION", Key: runconfig.KeyFiscoBcosVersion},
	{Placeholder: "CHAIN_ID", Key: runconfig.KeyChainID},
	{Placeholder: "GROUP_ID", Key: runconfig.KeyGroupID},
	{Placeholder: "WEID_ADDRESS"},
	{Placeholder: "CPT_ADDRESS"},
	{Placeholder: "ISSUER_ADDRESS"},
	{Placeholder: "EVIDENCE_ADDRESS"},
	{Placeholder: "SPECIFICISSUER_ADDRESS"},
	{Placeholder: "CNS_PROFILE_ACTIVE", Key: runconfig.KeyCNSProfileActive},
}

// IdentityBindings feed weidentity.properties.tpl. BLOCKCHIAN_NODE_INFO is
// spelled the way the shipped templates spell it.
var IdentityBindings = []Binding{
	{Placeholder: "ORG_ID", Key: runconfig.KeyOrgID},
	{Placeholder: "AMOP_ID", Key: runconfig.KeyAmopID},
	{Placeholder: "BLOCKCHIAN_NODE_INFO", Key: runconfig.KeyBlockchainAddress},
	{Placeholder: "PERSISTENCE_TYPE", Key: runconfig.KeyPersistenceType},
	{Placeholder: "MYSQL_ADDRESS", Key: runconfig.KeyMySQLAddress},
	{Placeholder: "MYSQL_DATABASE", Key: runconfig.KeyMySQLDatabase},
	{Placeholder: "MYSQL_USERNAME", Key: runconfig.KeyMySQLUsername},
	{Placeholder: "MYSQL_PASSWORD", Key: runconfig.KeyMySQLPassword},
	{Placeholder: "REDIS_ADDRESS", Key: runconfig.KeyRedisAddress},
	{Placeholder: "REDIS_PASSWORD", Key: runconfig.KeyRedisPassword},
}

// ValuesLoader supplies the run.config view rendered into the templates.
type ValuesLoader interface {
	Load() runconfig.Values
}

// Paths locates the templates and the generated files.
type Paths struct {
	ChainTemplate    string
	IdentityTemplate string
	// ResourcesDir receives the generated files.
	ResourcesDir string
	// ResourceRoot is where the running node reads its resources from. When
	// set and different from ResourcesDir, generated files are copied there.
	ResourceRoot string
}

// ChainProperties returns the path of the generated fisco.properties.
func (p Paths) ChainProperties() string {
	return filepath.Join(p.ResourcesDir, ChainPropertiesFile)
}

// IdentityProperties returns the path of the generated weidentity.properties.
func (p Paths) IdentityProperties() string {
	return filepath.Join(p.ResourcesDir, IdentityPropertiesFile)
}

// Resolve returns where the running node reads the resource name from: the
// resource root when one is set, the resources directory otherwise.
func (p Paths) Resolve(name string) string {
	if p.ResourceRoot != "" {
		return filepath.Join(p.ResourceRoot, name)
	}
	return filepath.Join(p.ResourcesDir, name)
}

// Generator renders the properties templates from run.config.
type Generator struct {
	loader ValuesLoader
	paths  Paths
	policy MissingKeyPolicy
	logger *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMissingKeyPolicy overrides the default MissingEmpty policy.
func WithMissingKeyPolicy(policy MissingKeyPolicy) GeneratorOption {
	return func(g *Generator) {
		g.policy = policy
	}
}

// WithLogger sets the generator logger.
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator constructs a Generator.
func NewGenerator(loader ValuesLoader, paths Paths, opts ...GeneratorOption) *Generator {
	g := &Generator{
		loader: loader,
		paths:  paths,
		policy: MissingEmpty,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Paths returns the configured locations.
func (g *Generator) Paths() Paths {
	return g.paths
}

// Generate loads run.config, writes both properties files and syncs the
// resources directory into the resource root. Files written before a
// failure stay written.
func (g *Generator) Generate() error {
	g.logger.Info("generating properties")

	values := g.loader.Load()

	if err := g.render(g.paths.ChainTemplate, g.paths.ChainProperties(), ChainBindings, values); err != nil {
		return err
	}
	if err := g.render(g.paths.IdentityTemplate, g.paths.IdentityProperties(), IdentityBindings, values); err != nil {
		return err
	}
	return g.SyncResourceRoot()
}

func (g *Generator) render(tplPath, outPath string, bindings []Binding, values runconfig.Values) error {
	g.logger.Info("rendering template", zap.String("template", tplPath), zap.String("output", outPath))

	tpl, err := os.ReadFile(tplPath)
	if err != nil {
		return fmt.Errorf("read template %s: %w", tplPath, err)
	}

	rendered, err := Render(string(tpl), bindings, values, g.policy)
	if err != nil {
		return fmt.Errorf("render %s: %w", tplPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// SyncResourceRoot copies every regular file of the resources directory into
// the resource root. It does nothing when both locations are the same.
func (g *Generator) SyncResourceRoot() error {
	if !g.needsResourceCopy() {
		return nil
	}

	entries, err := os.ReadDir(g.paths.ResourcesDir)
	if err != nil {
		return fmt.Errorf("list %s: %w", g.paths.ResourcesDir, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := g.CopyToResourceRoot(filepath.Join(g.paths.ResourcesDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CopyToResourceRoot copies a single file into the resource root, keeping its
// base name. It does nothing when no copy is needed.
func (g *Generator) CopyToResourceRoot(path string) error {
	if !g.needsResourceCopy() {
		return nil
	}
	target := filepath.Join(g.paths.ResourceRoot, filepath.Base(path))
	g.logger.Debug("copying resource", zap.String("from", path), zap.String("to", target))
	return runconfig.CopyFile(path, target)
}

func (g *Generator) needsResourceCopy() bool {
	if g.paths.ResourceRoot == "" {
		return false
	}
	return !samePath(g.paths.ResourceRoot, g.paths.ResourcesDir)
}

// Exist reports whether both generated files are present in the resource
// root (or the resources directory when no root is configured).
func (g *Generator) Exist() bool {
	for _, name := range []string{ChainPropertiesFile, IdentityPropertiesFile} {
		if _, err := os.Stat(g.paths.Resolve(name)); err != nil {
			return false
		}
	}
	return true
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
