package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	appmovers "github.com/bryanwahyu/daily-movers/internal/application/movers"
	"github.com/bryanwahyu/daily-movers/internal/config"
	"github.com/bryanwahyu/daily-movers/internal/domain/analysis"
	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
	openaix "github.com/bryanwahyu/daily-movers/internal/infra/ai/openai"
	"github.com/bryanwahyu/daily-movers/internal/infra/ai/prompt"
	mysqlp "github.com/bryanwahyu/daily-movers/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/daily-movers/internal/infra/db/postgres"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpserver"
	"github.com/bryanwahyu/daily-movers/internal/infra/ingest/yahoo"
	"github.com/bryanwahyu/daily-movers/internal/infra/render"
	minioStore "github.com/bryanwahyu/daily-movers/internal/infra/storage"
	"github.com/bryanwahyu/daily-movers/internal/middleware"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx := context.Background()

	// connect database (mysql atau postgres, tergantung config)
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect error")
		}
		repo = postgresp.NewRunRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("mysql connect error")
		}
		repo = mysqlp.NewRunRepository(db)
	}
	defer db.Close()

	// init minio, optional: tanpa endpoint artifacts cuma di-skip
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		artifacts = store
	}

	// cached HTTP fetcher shared by ingestion and enrichment
	cache := httpcache.NewDiskCache(cfg.Cache.Dir, cfg.CacheTTL(), log)
	throttle := httpcache.NewHostThrottle(cfg.Cache.MaxPerHost)
	fetcher := httpcache.NewClient(cache, throttle, log)
	fetcher.HTTP.Timeout = time.Duration(cfg.Cache.RequestTimeoutSec) * time.Second

	// ingestor tergantung mode
	var ingestor domain.Ingestor
	if cfg.Pipeline.Mode == "watchlist" {
		ingestor = yahoo.NewWatchlistProvider(cfg.Pipeline.WatchlistPath, fetcher, log)
	} else {
		ingestor = yahoo.NewMoversProvider(fetcher, log)
	}

	// analysis tiers: agent -> direct model -> heuristics
	controller := &analysis.Controller{Log: log}
	if aiClient := openaix.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.RequestsPerMinute); aiClient != nil {
		prompts := prompt.Analyst{}
		controller.Agent = analysis.NewAgentTier(aiClient, prompts, cfg.Review.RetryBelow)
		controller.Direct = analysis.NewDirectTier(aiClient, prompts)
	} else {
		log.Warn().Msg("no OpenAI API key configured, analysis will use heuristics only")
	}

	// init service
	svc := &appmovers.Service{
		Repo:        repo,
		Ingestor:    ingestor,
		Enricher:    yahoo.NewEnricher(fetcher, log),
		Controller:  controller,
		Artifacts:   artifacts,
		Renderer:    render.HTMLRenderer{},
		Clock:       appmovers.SystemClock{},
		Log:         log,
		Workers:     cfg.Pipeline.Workers,
		TaskTimeout: cfg.TaskTimeout(),
		Thresholds: domain.HITLThresholds{
			Confidence: cfg.Review.ConfidenceThreshold,
			PctChange:  cfg.Review.PctChangeThreshold,
		},
	}

	// init router
	handler := httpserver.NewRouter(svc, log, httpserver.Options{
		APIKey:       os.Getenv("API_KEY"),
		RateCapacity: 30,
		RateRefill:   10,
		HealthCheckers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
			"cache":    &middleware.CacheDirHealthChecker{Dir: cfg.Cache.Dir},
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
