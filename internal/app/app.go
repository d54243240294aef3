package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storesync/internal/api"
	"github.com/xenking/storesync/internal/domain/syncer"
	"github.com/xenking/storesync/internal/handler"
	"github.com/xenking/storesync/internal/notify"
	"github.com/xenking/storesync/internal/storage/postgres"
	"github.com/xenking/storesync/pkg/health"
	"github.com/xenking/storesync/pkg/httpmiddleware"
)

const storeCheckTimeout = 5 * time.Second

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	storeErr := prepareStore(ctx, lg, pool, cfg.Migrate)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Credentials notifications.
	var mailer notify.Mailer = notify.NewLogMailer(lg.Named("mail"))
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	}
	dispatcher := notify.NewDispatcher(cfg.Notify, userRepo, mailer,
		notify.WithMeterProvider(m.MeterProvider()),
	)
	dispatcher.Start()

	// Sync service and its HTTP surface.
	syncService, err := syncer.NewService(productRepo, userRepo, orderRepo, dispatcher,
		syncer.WithTracerProvider(m.TracerProvider()),
		syncer.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create sync service")
	}

	var syncHandler http.Handler = api.NewServer(handler.NewHandler(syncService),
		api.WithMaxBodySize(cfg.MaxBodySize),
	)
	if storeErr != nil {
		lg.Error("Commerce store unavailable, /sync disabled", zap.Error(storeErr))
		syncHandler = handler.Unavailable()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/sync", syncHandler)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storesync", routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			lg.Error("Credentials queue not drained", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// prepareStore applies the schema when asked to and runs the startup check
// of the commerce store. A non-nil result disables /sync.
func prepareStore(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, migrate bool) error {
	ctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	if migrate {
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			lg.Warn("Schema migration failed", zap.Error(err))
		}
	}
	return postgres.CheckStore(ctx, pool)
}
