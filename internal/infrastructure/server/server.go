package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/hostsync/internal/api/http"
	"github.com/GriffinCanCode/hostsync/internal/api/middleware"
	"github.com/GriffinCanCode/hostsync/internal/api/ws"
	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/domain/service"
	"github.com/GriffinCanCode/hostsync/internal/host/catalog"
	hostlocale "github.com/GriffinCanCode/hostsync/internal/host/locale"
	"github.com/GriffinCanCode/hostsync/internal/host/privileged"
	"github.com/GriffinCanCode/hostsync/internal/host/probe"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/hostsync/internal/providers/kernel"
	localeprovider "github.com/GriffinCanCode/hostsync/internal/providers/locale"
	systemprovider "github.com/GriffinCanCode/hostsync/internal/providers/system"
)

// Server wires the host components to the HTTP and WebSocket surfaces
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	hub        *ws.Hub
	bus        *broadcast.Bus
	registry   *service.Registry
	reconciler *hostlocale.Reconciler
	manager    *kernel.Manager
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics

	unsubscribe func()
}

// NewServer creates a server running host commands directly
func NewServer(cfg *config.Config) (*Server, error) {
	return newServer(cfg, process.NewExecRunner(), os.Geteuid() == 0)
}

func newServer(cfg *config.Config, runner process.Runner, isRoot bool) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	logger.Info("Initializing hostsync server",
		zap.String("port", cfg.Server.Port),
		zap.String("broker", cfg.Privilege.Broker),
		zap.String("manifest_write", cfg.Privilege.ManifestWrite),
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)

	executor := privileged.New(cfg.Privilege.Broker, runner).
		WithClassifier(privileged.PolkitClassifier()).
		WithTimeout(cfg.Privilege.Timeout).
		WithLogger(logger.Logger).
		WithMetrics(metrics)

	paths := probe.Paths{
		ModulesDir:     cfg.Host.ModulesDir,
		LocaleConf:     cfg.Host.LocaleConf,
		LocaleGen:      cfg.Host.LocaleGen,
		RebootSentinel: cfg.Host.RebootSentinel,
		OSRelease:      cfg.Host.OSRelease,
	}
	prober := probe.NewProber(paths, runner, cfg.Commands.Locale)

	searcher := catalog.NewSearcher(runner, cfg.Commands.Pacman, cfg.Catalog.SearchPattern,
		catalog.NewParser(cfg.Catalog.Repositories...))
	breaker := resilience.New("package-search", resilience.Settings{
		FailureThreshold: cfg.Catalog.BreakerFailures,
		OpenTimeout:      cfg.Catalog.BreakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	bus := broadcast.NewBus(logger.Logger).WithMetrics(metrics)

	store := manifestStore(cfg, executor, isRoot)
	logger.Info("Locale manifest store selected",
		zap.String("path", store.Path()),
		zap.String("type", fmt.Sprintf("%T", store)),
	)

	reconciler := hostlocale.NewReconciler(prober, executor, store, bus, hostlocale.Commands{
		Localectl: cfg.Commands.Localectl,
		LocaleGen: cfg.Commands.LocaleGen,
	}).WithLogger(logger.Logger).WithMetrics(metrics)

	manager := kernel.NewManager(prober, searcher, executor, bus, cfg.Commands.Pacman).
		WithBreaker(breaker).
		WithLogger(logger.Logger).
		WithMetrics(metrics)

	system := systemprovider.NewProvider(prober).WithBroker(executor.Broker())
	unsubscribeHistory := bus.Subscribe(system.History())

	registry := service.NewRegistry().WithMetrics(metrics)
	for _, p := range []service.Provider{
		kernel.NewProvider(manager),
		localeprovider.NewProvider(reconciler),
		system,
	} {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register provider: %w", err)
		}
	}

	origins := middleware.NewOriginPolicy(cfg.Server.CORSOrigins)
	hub := ws.NewHub(refresher(reconciler, manager), logger.Logger).
		WithOriginCheck(origins.AllowsRequest).
		WithMetrics(metrics)
	unsubscribeHub := bus.Subscribe(hub)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.OriginGuard(origins))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(origins.Origins())))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Int("mutation_rps", cfg.RateLimit.MutationsPerSecond),
			zap.Int("mutation_burst", cfg.RateLimit.MutationBurst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(registry, reconciler, manager, bus, hub).
		WithMetrics(metrics).
		WithLogger(logger.Logger)
	if cfg.RateLimit.Enabled {
		handlers.WithMutationMiddleware(middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.MutationsPerSecond,
			Burst:             cfg.RateLimit.MutationBurst,
		}))
	}
	handlers.RegisterRoutes(router)

	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry})))

	logger.Info("Server initialized successfully")

	return &Server{
		router:      router,
		hub:         hub,
		bus:         bus,
		registry:    registry,
		reconciler:  reconciler,
		manager:     manager,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
		unsubscribe: func() {
			unsubscribeHub()
			unsubscribeHistory()
		},
	}, nil
}

// manifestStore picks how the locale manifest is written. In auto mode a
// root process writes directly and anything else goes through the broker.
func manifestStore(cfg *config.Config, elevator hostlocale.Elevator, isRoot bool) hostlocale.ManifestStore {
	switch cfg.Privilege.ManifestWrite {
	case config.ManifestWriteDirect:
		return hostlocale.NewFileStore(cfg.Host.LocaleGen)
	case config.ManifestWriteElevated:
		return hostlocale.NewElevatedStore(cfg.Host.LocaleGen, elevator)
	default:
		if isRoot {
			return hostlocale.NewFileStore(cfg.Host.LocaleGen)
		}
		return hostlocale.NewElevatedStore(cfg.Host.LocaleGen, elevator)
	}
}

func refresher(reconciler *hostlocale.Reconciler, manager *kernel.Manager) ws.RefreshFunc {
	return func(ctx context.Context, channel string) error {
		switch channel {
		case broadcast.ChannelLocale:
			_, err := reconciler.Status(ctx)
			return err
		case broadcast.ChannelKernel:
			_, err := manager.Info(ctx)
			return err
		default:
			return fmt.Errorf("unknown channel: %s", channel)
		}
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and disconnects observers
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.unsubscribe()
	s.hub.Close()

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return err
}
