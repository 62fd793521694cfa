package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
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
	"github.com/bryanwahyu/daily-movers/internal/infra/ingest/yahoo"
	"github.com/bryanwahyu/daily-movers/internal/infra/render"
	"github.com/bryanwahyu/daily-movers/internal/infra/storage"
)

// One-shot pipeline run, cocok buat cron. Tanpa database artifacts tetap
// ditulis ke direktori output lokal.
func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		date       = flag.String("date", "", "run date (YYYY-MM-DD, default today)")
		mode       = flag.String("mode", "", "ingestion mode: movers or watchlist")
		region     = flag.String("region", "", "market region (us, il, uk, eu, crypto)")
		top        = flag.Int("top", 0, "number of tickers to process")
		watchlist  = flag.String("watchlist", "", "watchlist file for watchlist mode")
		outDir     = flag.String("out", "out", "local directory for run artifacts")
		noDB       = flag.Bool("no-db", false, "skip database persistence")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if v := os.Getenv("CONFIG_PATH"); v != "" && *configPath == "config.yaml" {
		*configPath = v
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if *mode != "" {
		cfg.Pipeline.Mode = *mode
	}
	if *region != "" {
		cfg.Pipeline.Region = *region
	}
	if *top > 0 {
		cfg.Pipeline.Top = *top
	}
	if *watchlist != "" {
		cfg.Pipeline.WatchlistPath = *watchlist
	}

	ctx := context.Background()

	var repo domain.Repository
	if !*noDB && cfg.Database.Host != "" {
		var db *sql.DB
		switch cfg.Database.Driver {
		case "postgres":
			db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
			if err == nil {
				repo = postgresp.NewRunRepository(db)
			}
		default:
			db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
			if err == nil {
				repo = mysqlp.NewRunRepository(db)
			}
		}
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, run will not be persisted")
		} else {
			defer db.Close()
		}
	}

	cache := httpcache.NewDiskCache(cfg.Cache.Dir, cfg.CacheTTL(), log)
	throttle := httpcache.NewHostThrottle(cfg.Cache.MaxPerHost)
	fetcher := httpcache.NewClient(cache, throttle, log)
	fetcher.HTTP.Timeout = time.Duration(cfg.Cache.RequestTimeoutSec) * time.Second

	var ingestor domain.Ingestor
	if cfg.Pipeline.Mode == "watchlist" {
		ingestor = yahoo.NewWatchlistProvider(cfg.Pipeline.WatchlistPath, fetcher, log)
	} else {
		ingestor = yahoo.NewMoversProvider(fetcher, log)
	}

	controller := &analysis.Controller{Log: log}
	if aiClient := openaix.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.RequestsPerMinute); aiClient != nil {
		prompts := prompt.Analyst{}
		controller.Agent = analysis.NewAgentTier(aiClient, prompts, cfg.Review.RetryBelow)
		controller.Direct = analysis.NewDirectTier(aiClient, prompts)
	} else {
		log.Warn().Msg("no OpenAI API key configured, analysis will use heuristics only")
	}

	svc := &appmovers.Service{
		Repo:        repo,
		Ingestor:    ingestor,
		Enricher:    yahoo.NewEnricher(fetcher, log),
		Controller:  controller,
		Artifacts:   storage.NewLocalStore(*outDir),
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

	result, err := svc.TriggerRun(ctx, appmovers.TriggerRunCommand{
		Date:   *date,
		Mode:   cfg.Pipeline.Mode,
		Region: cfg.Pipeline.Region,
		Top:    cfg.Pipeline.Top,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("encode result")
	}

	if result.Status == string(domain.RunFailed) {
		os.Exit(1)
	}
}
