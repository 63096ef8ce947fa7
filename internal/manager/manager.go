package manager

import (
	"context"

	"go.uber.org/zap"

	"github.com/weidtools/weid-config/internal/archive"
	"github.com/weidtools/weid-config/internal/properties"
	"github.com/weidtools/weid-config/internal/probe"
	"github.com/weidtools/weid-config/internal/runconfig"
)

// chainContractFollowKey is the fisco.properties twin of cns_contract_follow.
const chainContractFollowKey = "cns.contract.follow"

// Checker verifies that a backing service described by a properties snapshot
// is reachable.
type Checker interface {
	Check(ctx context.Context, props probe.PropertySource) error
}

// ContractReloader refreshes the contract addresses a running node uses from
// freshly loaded chain properties.
type ContractReloader func(ctx context.Context, chain properties.ChainConfig) error

// NodeSettings are the blockchain node values written by UpdateNodeConfig.
type NodeSettings struct {
	Address       string `json:"address"`
	Version       string `json:"version"`
	OrgID         string `json:"orgId"`
	AmopID        string `json:"amopId"`
	GroupID       string `json:"groupId"`
	ProfileActive string `json:"profileActive"`
}

func (s NodeSettings) updates() map[string]string {
	return map[string]string{
		runconfig.KeyBlockchainAddress: s.Address,
		runconfig.KeyFiscoBcosVersion:  s.Version,
		runconfig.KeyOrgID:             s.OrgID,
		runconfig.KeyAmopID:            s.AmopID,
		runconfig.KeyGroupID:           s.GroupID,
		runconfig.KeyCNSProfileActive:  s.ProfileActive,
	}
}

// DBSettings are the persistence values written by UpdateDBConfig.
type DBSettings struct {
	PersistenceType string `json:"persistenceType"`
	MySQLAddress    string `json:"mysqlAddress"`
	MySQLDatabase   string `json:"mysqlDatabase"`
	MySQLUsername   string `json:"mysqlUsername"`
	MySQLPassword   string `json:"mysqlPassword"`
	RedisAddress    string `json:"redisAddress"`
	RedisPassword   string `json:"redisPassword"`
}

func (s DBSettings) updates() map[string]string {
	return map[string]string{
		runconfig.KeyPersistenceType: s.PersistenceType,
		runconfig.KeyMySQLAddress:    s.MySQLAddress,
		runconfig.KeyMySQLDatabase:   s.MySQLDatabase,
		runconfig.KeyMySQLUsername:   s.MySQLUsername,
		runconfig.KeyMySQLPassword:   s.MySQLPassword,
		runconfig.KeyRedisAddress:    s.RedisAddress,
		runconfig.KeyRedisPassword:   s.RedisPassword,
	}
}

// Manager runs configuration operations against the files of one
// deployment. It holds no state besides its collaborators; every operation
// goes back to disk.
type Manager struct {
	store     runconfig.Storage
	loader    *runconfig.Loader
	generator *properties.Generator
	database  Checker
	cache     Checker
	reloader  ContractReloader
	logger    *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDatabaseChecker replaces the default database probe.
func WithDatabaseChecker(checker Checker) Option {
	return func(m *Manager) {
		m.database = checker
	}
}

// WithCacheChecker replaces the default cache probe.
func WithCacheChecker(checker Checker) Option {
	return func(m *Manager) {
		m.cache = checker
	}
}

// WithContractReloader sets the function run after the CNS follow hash
// changes.
func WithContractReloader(reloader ContractReloader) Option {
	return func(m *Manager) {
		m.reloader = reloader
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New constructs a Manager.
func New(store runconfig.Storage, loader *runconfig.Loader, generator *properties.Generator, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		loader:    loader,
		generator: generator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.database == nil {
		m.database = probe.NewDatabase(probe.WithDatabaseLogger(m.logger))
	}
	if m.cache == nil {
		m.cache = probe.NewCache(probe.WithCacheLogger(m.logger))
	}
	if m.reloader == nil {
		m.reloader = m.logContracts
	}
	return m
}

// LoadConfig returns the effective run.config values with certificate flags.
func (m *Manager) LoadConfig() map[string]string {
	return m.loader.Load()
}

// UpdateNodeConfig writes the node settings and regenerates the properties.
func (m *Manager) UpdateNodeConfig(settings NodeSettings) bool {
	if !m.update("node config", settings.updates()) {
		return false
	}
	return m.Regenerate()
}

// UpdateChainID writes chain_id without regenerating the properties.
func (m *Manager) UpdateChainID(chainID string) bool {
	return m.update("chain id", map[string]string{runconfig.KeyChainID: chainID})
}

// SetMasterGroupID writes group_id and regenerates the properties.
func (m *Manager) SetMasterGroupID(groupID string) bool {
	if !m.update("master group", map[string]string{runconfig.KeyGroupID: groupID}) {
		return false
	}
	return m.Regenerate()
}

// UpdateDBConfig writes the persistence settings and regenerates the
// properties.
func (m *Manager) UpdateDBConfig(settings DBSettings) bool {
	if !m.update("db config", settings.updates()) {
		return false
	}
	return m.Regenerate()
}

// EnableHash makes the node follow the CNS contract version hash. It writes
// the hash to run.config and to the generated chain properties, then reloads
// the contract addresses.
//
// Deprecated: contract versions are selected at deployment time.
func (m *Manager) EnableHash(ctx context.Context, hash string) bool {
	if !m.update("cns hash", map[string]string{runconfig.KeyCNSContractFollow: hash}) {
		return false
	}

	chainPath := m.generator.Paths().ChainProperties()
	if err := properties.UpdateKey(chainPath, chainContractFollowKey, hash); err != nil {
		m.logger.Error("updating chain properties failed", zap.String("path", chainPath), zap.Error(err))
		return false
	}
	if err := m.generator.CopyToResourceRoot(chainPath); err != nil {
		m.logger.Error("copying chain properties failed", zap.Error(err))
		return false
	}
	return m.ReloadAddress(ctx)
}

// ReloadAddress reads the chain properties again and hands them to the
// contract reloader.
func (m *Manager) ReloadAddress(ctx context.Context) bool {
	chain, err := m.LoadChainConfig()
	if err != nil {
		m.logger.Error("reloading chain properties failed", zap.Error(err))
		return false
	}
	if err := m.reloader(ctx, chain); err != nil {
		m.logger.Error("reloading contracts failed", zap.Error(err))
		return false
	}
	return true
}

// LoadChainConfig reads the chain properties the node currently uses.
func (m *Manager) LoadChainConfig() (properties.ChainConfig, error) {
	m.logger.Info("reloading chain properties")
	return properties.LoadChainConfig(m.generator.Paths().Resolve(properties.ChainPropertiesFile))
}

// PropertiesExist reports whether both generated properties files exist.
func (m *Manager) PropertiesExist() bool {
	return m.generator.Exist()
}

// Regenerate renders both properties files from the current run.config.
// Files written before a failure are kept.
func (m *Manager) Regenerate() bool {
	if err := m.generator.Generate(); err != nil {
		m.logger.Error("generating properties failed", zap.Error(err))
		return false
	}
	m.logger.Info("properties generated")
	return true
}

// CheckDB reports whether the configured database accepts a connection.
// Blank connection settings fail without any connection attempt.
func (m *Manager) CheckDB(ctx context.Context) bool {
	return m.check(ctx, "database", m.database)
}

// CheckRedis reports whether the configured cache accepts a connection.
func (m *Manager) CheckRedis(ctx context.Context) bool {
	return m.check(ctx, "cache", m.cache)
}

// ToZip archives src into dst, replacing an existing dst.
func (m *Manager) ToZip(src, dst string) bool {
	m.logger.Info("archiving", zap.String("src", src), zap.String("dst", dst))
	if err := archive.ToZip(src, dst, true); err != nil {
		m.logger.Error("archiving failed", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) check(ctx context.Context, name string, checker Checker) bool {
	m.logger.Info("checking connectivity", zap.String("target", name))

	props, err := properties.Reload(m.generator.Paths().Resolve(properties.IdentityPropertiesFile))
	if err != nil {
		m.logger.Error("reloading identity properties failed", zap.Error(err))
		return false
	}

	if err := checker.Check(ctx, props); err != nil {
		m.logger.Error("connectivity check failed", zap.String("target", name), zap.Error(err))
		return false
	}
	m.logger.Info("connectivity check passed", zap.String("target", name))
	return true
}

func (m *Manager) update(operation string, updates map[string]string) bool {
	m.logger.Info("updating run config", zap.String("operation", operation))
	if err := m.store.Update(updates); err != nil {
		m.logger.Error("updating run config failed", zap.String("operation", operation), zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) logContracts(_ context.Context, chain properties.ChainConfig) error {
	m.logger.Info("contract addresses reloaded",
		zap.String("weid", chain.WeIDAddress),
		zap.String("cpt", chain.CPTAddress),
		zap.String("issuer", chain.IssuerAddress),
		zap.String("evidence", chain.EvidenceAddress),
		zap.String("specific_issuer", chain.SpecificIssuerAddress),
		zap.String("cns_follow", chain.CNSContractFollow),
	)
	return nil
}
