package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weidtools/weid-config/internal/properties"
	"github.com/weidtools/weid-config/internal/probe"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	WorkDir          string
	RunConfig        string
	RunConfigBackup  string
	ChainTemplate    string
	IdentityTemplate string
	ResourcesDir     string
	ResourceRoot     string
	DataSource       string
	MissingKeyPolicy properties.MissingKeyPolicy

	Log LogConfig

	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// LogConfig selects where logs go. An empty File logs to stderr.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	WorkDir              string        `yaml:"work_dir"`
	RunConfig            string        `yaml:"run_config"`
	RunConfigBackup      string        `yaml:"run_config_backup"`
	Templates            yamlTemplates `yaml:"templates"`
	ResourcesDir         string        `yaml:"resources_dir"`
	ResourceRoot         string        `yaml:"resource_root"`
	DataSource           string        `yaml:"data_source"`
	MissingKeyPolicy     string        `yaml:"missing_key_policy"`
	Log                  yamlLog       `yaml:"log"`
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

type yamlTemplates struct {
	Chain    string `yaml:"chain"`
	Identity string `yaml:"identity"`
}

type yamlLog struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	WorkDir        *string
	ResourceRoot   *string
	LogLevel       *string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, err
		}
	}

	// Apply environment variables (override YAML)
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values matching the layout of
// the build tools directory.
func defaultConfig() Config {
	return Config{
		WorkDir:              ".",
		RunConfig:            "run.config",
		RunConfigBackup:      filepath.Join("output", ".run.config"),
		ChainTemplate:        filepath.Join("common", "script", "tpl", "fisco.properties.tpl"),
		IdentityTemplate:     filepath.Join("common", "script", "tpl", "weidentity.properties.tpl"),
		ResourcesDir:         "resources",
		DataSource:           probe.DefaultDataSource,
		MissingKeyPolicy:     properties.MissingEmpty,
		Log:                  LogConfig{Level: "info", MaxSizeMB: 100, MaxAgeDays: 30, MaxBackups: 5},
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// Path resolves a configured path against WorkDir. Absolute paths are
// returned unchanged and an empty path stays empty.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// PropertiesPaths returns the generator locations resolved against WorkDir.
func (c Config) PropertiesPaths() properties.Paths {
	return properties.Paths{
		ChainTemplate:    c.Path(c.ChainTemplate),
		IdentityTemplate: c.Path(c.IdentityTemplate),
		ResourcesDir:     c.Path(c.ResourcesDir),
		ResourceRoot:     c.Path(c.ResourceRoot),
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	setString(&cfg.WorkDir, yamlCfg.WorkDir)
	setString(&cfg.RunConfig, yamlCfg.RunConfig)
	setString(&cfg.RunConfigBackup, yamlCfg.RunConfigBackup)
	setString(&cfg.ChainTemplate, yamlCfg.Templates.Chain)
	setString(&cfg.IdentityTemplate, yamlCfg.Templates.Identity)
	setString(&cfg.ResourcesDir, yamlCfg.ResourcesDir)
	setString(&cfg.ResourceRoot, yamlCfg.ResourceRoot)
	setString(&cfg.DataSource, yamlCfg.DataSource)

	if yamlCfg.MissingKeyPolicy != "" {
		policy, err := properties.ParseMissingKeyPolicy(yamlCfg.MissingKeyPolicy)
		if err != nil {
			return err
		}
		cfg.MissingKeyPolicy = policy
	}

	setString(&cfg.Log.Level, yamlCfg.Log.Level)
	setString(&cfg.Log.File, yamlCfg.Log.File)
	if yamlCfg.Log.MaxSizeMB > 0 {
		cfg.Log.MaxSizeMB = yamlCfg.Log.MaxSizeMB
	}
	if yamlCfg.Log.MaxAgeDays > 0 {
		cfg.Log.MaxAgeDays = yamlCfg.Log.MaxAgeDays
	}
	if yamlCfg.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = yamlCfg.Log.MaxBackups
	}

	setString(&cfg.Port, yamlCfg.Port)
	setDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	setDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	setDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	setDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	setString(&cfg.WorkDir, env("WEID_WORK_DIR"))
	setString(&cfg.RunConfig, env("WEID_RUN_CONFIG"))
	setString(&cfg.ResourcesDir, env("WEID_RESOURCES_DIR"))
	setString(&cfg.ResourceRoot, env("WEID_RESOURCE_ROOT"))
	setString(&cfg.DataSource, env("WEID_DATA_SOURCE"))
	setString(&cfg.Log.Level, env("WEID_LOG_LEVEL"))
	setString(&cfg.Log.File, env("WEID_LOG_FILE"))

	if raw := env("WEID_MISSING_KEY_POLICY"); raw != "" {
		policy, err := properties.ParseMissingKeyPolicy(raw)
		if err != nil {
			return err
		}
		cfg.MissingKeyPolicy = policy
	}

	setString(&cfg.Port, env("PORT"))

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.WorkDir != nil {
		setString(&cfg.WorkDir, *overrides.WorkDir)
	}
	if overrides.ResourceRoot != nil {
		setString(&cfg.ResourceRoot, *overrides.ResourceRoot)
	}
	if overrides.LogLevel != nil {
		setString(&cfg.Log.Level, *overrides.LogLevel)
	}
	if overrides.Port != nil {
		setString(&cfg.Port, *overrides.Port)
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if strings.TrimSpace(cfg.RunConfig) == "" {
		return fmt.Errorf("run config path cannot be empty")
	}
	if strings.TrimSpace(cfg.RunConfigBackup) == "" {
		return fmt.Errorf("run config backup path cannot be empty")
	}
	if strings.TrimSpace(cfg.ResourcesDir) == "" {
		return fmt.Errorf("resources directory cannot be empty")
	}
	if strings.TrimSpace(cfg.DataSource) == "" {
		return fmt.Errorf("data source name cannot be empty")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}
