package app

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coffee-counter/internal/domain/order"
	"github.com/xenking/coffee-counter/internal/handler"
	"github.com/xenking/coffee-counter/internal/memstore"
	"github.com/xenking/coffee-counter/internal/snapshot"
	"github.com/xenking/coffee-counter/pkg/health"
	"github.com/xenking/coffee-counter/pkg/httpmiddleware"
)

// Server holds the fully wired HTTP handler and its background components.
type Server struct {
	Handler  http.Handler
	health   *health.Health
	exporter *snapshot.Exporter
}

// NewServer wires the allocator, store, service, health checks and the full
// middleware chain into a single handler. Telemetry providers are injected so
// tests can pass no-op implementations.
func NewServer(ctx context.Context, lg *zap.Logger, cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Server, error) {
	policy, err := cfg.AllocatorPolicy()
	if err != nil {
		return nil, err
	}
	alloc, err := order.NewAllocator(policy, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, errors.Wrap(err, "create allocator")
	}

	store := memstore.New()
	svc, err := order.NewService(store, alloc, lg.Named("counter"), mp.Meter("coffee-counter"))
	if err != nil {
		return nil, errors.Wrap(err, "create service")
	}

	// The store is pure in-memory state, so readiness only tracks the
	// lifecycle flag; liveness watches for runtime degradation.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(100*time.Millisecond))

	h := handler.NewHandler(svc)
	mux := h.Routes()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	s := &Server{
		health: healthSvc,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("counter-api", tp, mp),
			httpmiddleware.LogRequests(),
		),
	}
	if cfg.Snapshot.Enabled {
		s.exporter = snapshot.New(svc, cfg.Snapshot.Path, cfg.Snapshot.Interval, lg.Named("snapshot"))
	}
	return s, nil
}

// Start launches the health check scheduler and marks the server ready.
func (s *Server) Start(ctx context.Context) {
	s.health.Start(ctx, 10*time.Second)
	s.health.SetReady(true)
}

// Stop marks the server not ready and stops the health scheduler.
func (s *Server) Stop() {
	s.health.SetReady(false)
	s.health.Stop()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("allocator", cfg.Allocator),
	)

	srv, err := NewServer(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	srv.Start(ctx)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.Handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if srv.exporter != nil {
		g.Go(func() error {
			return srv.exporter.Run(gCtx)
		})
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
