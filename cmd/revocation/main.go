package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/api/openapi"
	revocationgrpc "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/grpc"
	grpcmw "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/grpc/middleware"
	revocationhttp "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http"
	httpmw "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/ratelimit"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/revocation/retention"
	appsvc "github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/revocation/service"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/server"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/storage"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		lg.Must("").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel)

	if err := run(cfg, zapLog); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		_ = zapLog.Sync()
		os.Exit(1)
	}
	zapLog.Info("servers stopped")
	_ = zapLog.Sync()
}

// run owns every resource it opens; all deferred closes have run by the time
// it returns.
func run(cfg *config.Config, zapLog *zap.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Хранилище
	clk := clock.System{}
	backend, err := storage.Open(rootCtx, cfg, clk, zapLog)
	if err != nil {
		return fmt.Errorf("open revocation store: %w", err)
	}
	defer backend.Close()

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// 2. Проверка admin-токенов (без ключа запись открыта)
	var verifier jwt.Verifier
	if cfg.AdminAuthEnabled() {
		v, err := jwt.NewAdminVerifier(cfg.AdminJWTPublicKeyPath, cfg.Issuer, cfg.Audience, cfg.AdminScope)
		if err != nil {
			return fmt.Errorf("init admin verifier: %w", err)
		}
		verifier = v
	} else {
		zapLog.Warn("ADMIN_JWT_PUBLIC_KEY_PATH not set, submissions are unauthenticated")
	}

	docs, err := revocationhttp.NewAPIDocs(openapi.Swagger)
	if err != nil {
		return err
	}

	svc := appsvc.New(backend.Store, clk, validator.New(), zapLog, m)

	httpLimiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10_000, time.Hour)
	grpcLimiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10_000, time.Hour)

	// 3. HTTP: middleware, маршруты, метрики
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestID())
	router.Use(httpmw.RequestLogger(zapLog))
	router.Use(httpmw.Metrics(m))
	router.Use(httpmw.RateLimitPerIP(httpLimiter))
	router.Use(httpmw.CORS(cfg.AllowedOrigins, cfg.AllowCredentials))

	revocationhttp.RegisterRoutes(router, revocationhttp.NewHandler(svc, clk, zapLog), httpmw.RequireAdmin(verifier))
	revocationhttp.RegisterMetrics(router, prometheus.DefaultGatherer)
	revocationhttp.RegisterAPIDocs(router, docs)

	// 4. gRPC: Submit только для admin
	grpcServer, err := server.NewGRPCServer(server.GRPCOptions{
		Address:  cfg.GRPCAddress,
		CertFile: cfg.HTTPSCertFile,
		KeyFile:  cfg.HTTPSKeyFile,
		Unary:    grpcmw.ChainUnaryServer(zapLog, grpcLimiter, verifier, revocationgrpc.SubmitFullMethod),
		Ready:    svc.Ready,
	}, revocationgrpc.NewHandler(svc, clk, zapLog), zapLog)
	if err != nil {
		return fmt.Errorf("build gRPC server: %w", err)
	}

	janitor := retention.NewJanitor(backend.Purger, clk, cfg.RetentionPeriod, cfg.RetentionInterval, zapLog, m)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Запускаем всё в одной errgroup, останавливаемся по сигналу
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return grpcServer.ListenAndServe(ctx)
	})

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress), zap.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctxShutdown)
	})

	g.Go(func() error { return janitor.Run(ctx) })
	g.Go(func() error { httpLimiter.Run(ctx); return nil })
	g.Go(func() error { grpcLimiter.Run(ctx); return nil })

	return g.Wait()
}
