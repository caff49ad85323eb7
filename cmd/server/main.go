// careergate is the backend-for-frontend of the career-accelerator funnel.
// It hosts the wizard coordinator, the advisory analysis rate limiter, and
// the admin surface for support tooling.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"careergate/internal/adminauth"
	"careergate/internal/analytics"
	"careergate/internal/funnel/handler"
	"careergate/internal/funnel/service"
	"careergate/internal/platform/config"
	"careergate/internal/platform/httpserver"
	"careergate/internal/platform/logger"
	"careergate/internal/platform/metrics"
	"careergate/internal/platform/middleware"
	redisplatform "careergate/internal/platform/redis"
	"careergate/internal/ratelimit/admin"
	"careergate/internal/ratelimit/limiter"
	"careergate/internal/session"
	"careergate/internal/upstream"
	"careergate/pkg/kvstore"
)

// sessionMarkerTTL bounds how long a session's first-seen marker lives.
const sessionMarkerTTL = 7 * 24 * time.Hour

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("careergate exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var store kvstore.Store
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = kvstore.NewRedis(redisClient.Client)
		log.Info("rate-limit windows persisted in redis")
	} else {
		store = kvstore.NewMemory()
		log.Info("redis not configured, using the in-memory store")
	}

	rl, err := limiter.New(store,
		limiter.WithLimits(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		limiter.WithLogger(log),
		limiter.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}

	backend := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.DemoEntityID,
		upstream.WithLogger(log),
		upstream.WithMetrics(m),
		upstream.WithTimeout(cfg.Upstream.Timeout),
	)

	var sink analytics.Sink = analytics.NoopSink{}
	if cfg.Analytics.Consent && len(cfg.Analytics.Brokers) > 0 {
		kafkaSink, err := analytics.NewKafkaSink(cfg.Analytics.Brokers, cfg.Analytics.Topic, log)
		if err != nil {
			return fmt.Errorf("create analytics sink: %w", err)
		}
		sink = kafkaSink
		log.Info("analytics enabled", "topic", cfg.Analytics.Topic)
	} else {
		log.Info("analytics disabled", "consent", cfg.Analytics.Consent)
	}
	defer sink.Close()

	coordinator, err := service.New(backend, rl,
		service.WithAnalytics(sink),
		service.WithOrderStore(store),
		service.WithPaymentPageURL(cfg.PaymentPageURL),
		service.WithLogger(log),
		service.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create funnel coordinator: %w", err)
	}

	sessions := session.NewManager(store, sessionMarkerTTL)
	jwtService := adminauth.NewService(cfg.AdminJWTSigningKey, "careergate")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	handler.New(coordinator, sessions, log).Register(router)

	adminHandler := admin.New(rl, cfg.RateLimit.Window, log)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, log))
		r.Route("/admin", adminHandler.Register)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthHandler(redisClient))

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("careergate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthHandler(redisClient *redisplatform.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintln(w, `{"status":"degraded","redis":"unreachable"}`)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	}
}
