package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/weidtools/weid-config/internal/api"
	"github.com/weidtools/weid-config/internal/config"
	"github.com/weidtools/weid-config/internal/manager"
	"github.com/weidtools/weid-config/internal/probe"
	"github.com/weidtools/weid-config/internal/properties"
	"github.com/weidtools/weid-config/internal/runconfig"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	manager *manager.Manager
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open work dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("work dir %s is not a directory", cfg.WorkDir)
	}

	store := runconfig.NewFileStore(cfg.Path(cfg.RunConfig), cfg.Path(cfg.RunConfigBackup))
	loader := runconfig.NewLoader(store, cfg.Path(cfg.ResourcesDir), logger.Named("runconfig"))
	generator := properties.NewGenerator(loader, cfg.PropertiesPaths(),
		properties.WithMissingKeyPolicy(cfg.MissingKeyPolicy),
		properties.WithLogger(logger.Named("properties")),
	)
	mgr := manager.New(store, loader, generator,
		manager.WithDatabaseChecker(probe.NewDatabase(
			probe.WithDataSource(cfg.DataSource),
			probe.WithDatabaseLogger(logger.Named("probe")),
		)),
		manager.WithCacheChecker(probe.NewCache(probe.WithCacheLogger(logger.Named("probe")))),
		manager.WithLogger(logger.Named("manager")),
	)

	handler := api.NewHandler(mgr)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		manager: mgr,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, apiRouter),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Manager returns the configuration manager used by the CLI subcommands.
func (a *App) Manager() *manager.Manager {
	return a.manager
}

// Handler returns the API router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
