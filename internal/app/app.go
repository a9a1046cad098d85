package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
	"github.com/xenking/coupon-engine/internal/domain/pricing"
	"github.com/xenking/coupon-engine/internal/handler"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
	"github.com/xenking/coupon-engine/internal/storage/rediscache"
	"github.com/xenking/coupon-engine/pkg/health"
	"github.com/xenking/coupon-engine/pkg/httpmiddleware"
)

const rateLimitPrefix = "coupons:ratelimit:"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return serve(ctx, lg, cfg, ln, m.TracerProvider(), m.MeterProvider())
}

func serve(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	ln net.Listener,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) error {
	defer func() { _ = ln.Close() }()

	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("redis", cfg.Redis.URL != ""),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var (
		repo    coupon.Repository = postgres.NewCouponRepository(pool)
		limiter httpmiddleware.Limiter
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()

		repo = rediscache.New(repo, client, cfg.Redis.CacheTTL)
		limiter = httpmiddleware.NewRedisLimiter(client, rateLimitPrefix, cfg.RateLimit.Max, cfg.RateLimit.Window)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", redisPinger{client}))
	} else {
		mem := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		mem.StartCleanup(ctx)
		limiter = mem
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	pricingSvc, err := pricing.NewService(repo, discount.NewEngine(),
		pricing.WithTracerProvider(tp),
		pricing.WithMeterProvider(mp),
	)
	if err != nil {
		return errors.Wrap(err, "create pricing service")
	}
	h := handler.NewHandler(coupon.NewManager(repo), pricingSvc)

	// Request logging runs inside the router so it sees the matched route.
	router := chi.NewRouter()
	router.Use(httpmiddleware.LogRequests())
	healthSvc.Routes(router)
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("coupon-api", tp, mp),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}, limiter),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", ln.Addr().String()))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
