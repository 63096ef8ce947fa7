package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/weidtools/weid-config/internal/application"
	"github.com/weidtools/weid-config/internal/config"
	"github.com/weidtools/weid-config/internal/logging"
	"github.com/weidtools/weid-config/internal/manager"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("weid-config", "WeIdentity node configuration manager - edits run.config and renders the node properties")
	kingpinApp.UsageWriter(stdout)
	kingpinApp.ErrorWriter(stderr)

	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	workDir := kingpinApp.Flag("work-dir", "Build tools directory holding run.config").String()
	resourceRoot := kingpinApp.Flag("resource-root", "Directory the node reads properties from, if not the resources dir").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	showCmd := kingpinApp.Command("show", "Print the effective run.config values and certificate flags")

	nodeCmd := kingpinApp.Command("set-node", "Update the blockchain node settings and regenerate properties")
	node := manager.NodeSettings{}
	nodeCmd.Flag("address", "Node address list, host:port separated by commas").StringVar(&node.Address)
	nodeCmd.Flag("version", "FISCO BCOS major version").StringVar(&node.Version)
	nodeCmd.Flag("org-id", "Organization id").StringVar(&node.OrgID)
	nodeCmd.Flag("amop-id", "AMOP id").StringVar(&node.AmopID)
	nodeCmd.Flag("group-id", "Master group id").StringVar(&node.GroupID)
	nodeCmd.Flag("profile-active", "CNS profile").StringVar(&node.ProfileActive)

	chainCmd := kingpinApp.Command("set-chain-id", "Update chain_id without regenerating properties")
	chainID := chainCmd.Arg("chain-id", "Chain id").Required().String()

	groupCmd := kingpinApp.Command("set-group", "Update the master group id and regenerate properties")
	groupID := groupCmd.Arg("group-id", "Group id").Required().String()

	dbCmd := kingpinApp.Command("set-db", "Update the persistence settings and regenerate properties")
	db := manager.DBSettings{}
	dbCmd.Flag("persistence-type", "Persistence backend (mysql, redis)").StringVar(&db.PersistenceType)
	dbCmd.Flag("mysql-address", "MySQL host:port").StringVar(&db.MySQLAddress)
	dbCmd.Flag("mysql-database", "MySQL database name").StringVar(&db.MySQLDatabase)
	dbCmd.Flag("mysql-username", "MySQL user").StringVar(&db.MySQLUsername)
	dbCmd.Flag("mysql-password", "MySQL password").StringVar(&db.MySQLPassword)
	dbCmd.Flag("redis-address", "Redis host:port list separated by commas").StringVar(&db.RedisAddress)
	dbCmd.Flag("redis-password", "Redis password").StringVar(&db.RedisPassword)

	cnsCmd := kingpinApp.Command("enable-cns", "Follow a CNS contract version hash (deprecated)")
	hash := cnsCmd.Arg("hash", "Contract version hash").Required().String()

	regenerateCmd := kingpinApp.Command("regenerate", "Render the properties files from run.config")
	existCmd := kingpinApp.Command("properties-exist", "Exit 0 if both properties files exist")
	checkDBCmd := kingpinApp.Command("check-db", "Check the database configured in weidentity.properties")
	checkRedisCmd := kingpinApp.Command("check-redis", "Check the cache configured in weidentity.properties")

	zipCmd := kingpinApp.Command("zip", "Archive a directory into a zip file")
	zipSrc := zipCmd.Arg("src", "Directory or file to archive").Required().String()
	zipDst := zipCmd.Arg("dst", "Zip file to create").Required().String()

	serveCmd := kingpinApp.Command("serve", "Expose the configuration operations over HTTP")
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter").Default("-1").Int()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "weid-config: %v\n", err)
		return exitUsage
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}
	if *workDir != "" {
		overrides.WorkDir = workDir
	}
	if *resourceRoot != "" {
		overrides.ResourceRoot = resourceRoot
	}
	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}
	if *port != "" {
		overrides.Port = port
	}
	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}
	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "weid-config: failed to load configuration: %v\n", err)
		return exitUsage
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Path(cfg.Log.File),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(stderr, "weid-config: failed to initialize logger: %v\n", err)
		return exitUsage
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return exitFailed
	}
	mgr := app.Manager()
	ctx := context.Background()

	var ok bool
	switch command {
	case showCmd.FullCommand():
		values := mgr.LoadConfig()
		for _, key := range slices.Sorted(maps.Keys(values)) {
			fmt.Fprintf(stdout, "%s=%s\n", key, values[key])
		}
		ok = true
	case nodeCmd.FullCommand():
		ok = mgr.UpdateNodeConfig(node)
	case chainCmd.FullCommand():
		ok = mgr.UpdateChainID(*chainID)
	case groupCmd.FullCommand():
		ok = mgr.SetMasterGroupID(*groupID)
	case dbCmd.FullCommand():
		ok = mgr.UpdateDBConfig(db)
	case cnsCmd.FullCommand():
		ok = mgr.EnableHash(ctx, *hash)
	case regenerateCmd.FullCommand():
		ok = mgr.Regenerate()
	case existCmd.FullCommand():
		ok = mgr.PropertiesExist()
	case checkDBCmd.FullCommand():
		ok = mgr.CheckDB(ctx)
	case checkRedisCmd.FullCommand():
		ok = mgr.CheckRedis(ctx)
	case zipCmd.FullCommand():
		ok = mgr.ToZip(*zipSrc, *zipDst)
	case serveCmd.FullCommand():
		if err := app.Start(); err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return exitFailed
		}
		shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
		return exitOK
	}

	if !ok {
		fmt.Fprintf(stderr, "weid-config: %s failed\n", command)
		return exitFailed
	}
	return exitOK
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
