package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"github.com/reframedb/reframe/api/internal/app/migrate"
	"github.com/reframedb/reframe/api/internal/dataset"
	httpx "github.com/reframedb/reframe/api/internal/http"
	"github.com/reframedb/reframe/api/internal/repository/postgres"
	"github.com/reframedb/reframe/api/internal/service/auth"
	datasetsvc "github.com/reframedb/reframe/api/internal/service/dataset"
	"github.com/reframedb/reframe/pkg/config"
	"github.com/reframedb/reframe/pkg/logger"
	"github.com/reframedb/reframe/pkg/wikidata"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	runner, err := migrate.New(db, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, falling back to in-process state", "addr", addr, "error", err)
			redisClient = nil
		}
	}

	store, err := loadDatasets(ctx, cfg, redisClient, log)
	if err != nil {
		log.Error("failed to load datasets", "error", err)
		os.Exit(1)
	}
	log.Info("datasets loaded", "rows", store.Stats())

	var captcha auth.CaptchaVerifier
	if strings.TrimSpace(cfg.RecaptchaSecret) != "" {
		captcha = auth.NewRecaptchaVerifier(cfg.RecaptchaVerifyURL, cfg.RecaptchaSecret, nil)
	} else {
		log.Warn("recaptcha secret not configured, registration is not captcha protected")
	}

	repo := postgres.New(db)
	authSvc := auth.New(repo, repo, captcha, log, cfg)

	opts := httpx.Options{
		FrontendURL: cfg.FrontendURL,
		DBHealth:    db.PingContext,
		Registerer:  prometheus.DefaultRegisterer,
		Gatherer:    prometheus.DefaultGatherer,
	}
	if redisClient != nil {
		opts.Limiter = httpx.NewRedisRateLimiter(redisClient, log)
	}
	router := httpx.NewRouter(log, authSvc, datasetsvc.New(store), opts)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func loadDatasets(ctx context.Context, cfg config.APIConfig, redisClient *redis.Client, log *slog.Logger) (*dataset.Store, error) {
	src, err := dataset.NewSource(ctx, cfg.Data, cfg.S3)
	if err != nil {
		return nil, err
	}
	kb, err := wikidata.New(cfg.Wikidata.EntityURL,
		wikidata.WithSPARQLURL(cfg.Wikidata.SPARQLURL),
		wikidata.WithRateLimit(cfg.Wikidata.RPS),
		wikidata.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	)
	if err != nil {
		return nil, err
	}
	resolver := dataset.IDMapResolver{
		Source:  src,
		File:    cfg.Data.IDMapFile,
		Fetcher: kb,
		Logger:  log,
	}
	if redisClient != nil {
		resolver.Cache = dataset.NewRedisIDMapCache(redisClient, cfg.Data.IDMapCacheTTL)
	}
	return dataset.Load(ctx, src, cfg.Data, resolver)
}
