package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weidtools/weid-config/internal/properties"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEID_WORK_DIR", "WEID_RUN_CONFIG", "WEID_RESOURCES_DIR", "WEID_RESOURCE_ROOT",
		"WEID_DATA_SOURCE", "WEID_LOG_LEVEL", "WEID_LOG_FILE", "WEID_MISSING_KEY_POLICY",
		"PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weid-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.RunConfig != "run.config" {
		t.Fatalf("unexpected run config path %s", cfg.RunConfig)
	}
	if cfg.RunConfigBackup != filepath.Join("output", ".run.config") {
		t.Fatalf("unexpected backup path %s", cfg.RunConfigBackup)
	}
	if cfg.MissingKeyPolicy != properties.MissingEmpty {
		t.Fatalf("unexpected missing key policy %s", cfg.MissingKeyPolicy)
	}
	if cfg.DataSource != "datasource1" {
		t.Fatalf("unexpected data source %s", cfg.DataSource)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
work_dir: /opt/weid
run_config: conf/run.config
templates:
  chain: tpl/chain.tpl
resource_root: /opt/weid/classes
missing_key_policy: "null"
enable_request_logging: false
rate_limit:
  rps: 0
log:
  file: logs/weid-config.log
  max_size_mb: 10
`)

	cfg, err := Load(&CLIOverrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Path(cfg.RunConfig) != filepath.Join("/opt/weid", "conf", "run.config") {
		t.Fatalf("unexpected resolved run config %s", cfg.Path(cfg.RunConfig))
	}
	paths := cfg.PropertiesPaths()
	if paths.ChainTemplate != filepath.Join("/opt/weid", "tpl", "chain.tpl") {
		t.Fatalf("unexpected chain template %s", paths.ChainTemplate)
	}
	if paths.IdentityTemplate != filepath.Join("/opt/weid", "common", "script", "tpl", "weidentity.properties.tpl") {
		t.Fatalf("unexpected identity template %s", paths.IdentityTemplate)
	}
	if paths.ResourceRoot != "/opt/weid/classes" {
		t.Fatalf("absolute resource root must be kept, got %s", paths.ResourceRoot)
	}
	if cfg.MissingKeyPolicy != properties.MissingLiteralNull {
		t.Fatalf("unexpected policy %s", cfg.MissingKeyPolicy)
	}
	if cfg.EnableRequestLogging {
		t.Fatalf("expected request logging to be disabled")
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected rate limit rps 0, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("expected default burst, got %d", cfg.RateLimitBurst)
	}
	if cfg.Log.File != "logs/weid-config.log" || cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxAgeDays != 30 {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "port: \"7000\"\nwork_dir: /yaml\n")
	t.Setenv("PORT", "9000")
	t.Setenv("WEID_WORK_DIR", "/env")

	cliPort := "9100"
	cfg, err := Load(&CLIOverrides{ConfigFile: path, Port: &cliPort})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9100" {
		t.Fatalf("expected CLI port, got %s", cfg.Port)
	}
	if cfg.WorkDir != "/env" {
		t.Fatalf("expected env work dir to override YAML, got %s", cfg.WorkDir)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEID_MISSING_KEY_POLICY", "explode")

	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for unknown missing key policy")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestPath(t *testing.T) {
	cfg := Config{WorkDir: "/srv"}
	if got := cfg.Path(""); got != "" {
		t.Fatalf("expected empty path to stay empty, got %q", got)
	}
	if got := cfg.Path("/abs/file"); got != "/abs/file" {
		t.Fatalf("expected absolute path unchanged, got %q", got)
	}
	if got := cfg.Path("rel/file"); got != filepath.Join("/srv", "rel", "file") {
		t.Fatalf("unexpected resolved path %q", got)
	}
}
