package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/julianbeese/mietcheck/internal/acquire"
	"github.com/julianbeese/mietcheck/internal/analyzer"
	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/benchmark"
	"github.com/julianbeese/mietcheck/internal/cache"
	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/geo"
	"github.com/julianbeese/mietcheck/internal/llm"
	"github.com/julianbeese/mietcheck/internal/notifier/telegram"
	"github.com/julianbeese/mietcheck/internal/plausibility"
	"github.com/julianbeese/mietcheck/internal/portal"
	"github.com/julianbeese/mietcheck/internal/rent"
	"github.com/julianbeese/mietcheck/internal/report"
	"github.com/julianbeese/mietcheck/internal/repository/sqlite"
	"github.com/julianbeese/mietcheck/internal/scheduler"
	"github.com/julianbeese/mietcheck/internal/server"
)

func main() {
	// Load .env file if present (ignores error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load("deployments/.env")

	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	listingURL := flag.String("url", "", "Analyze a single listing URL and exit")
	postalCodes := flag.String("plz", "", "Look up market rents for comma separated postal codes and exit")
	asJSON := flag.Bool("json", false, "Print -url and -plz results as JSON")
	serve := flag.Bool("serve", false, "Serve the JSON API")
	bot := flag.Bool("bot", false, "Answer Telegram commands")
	watch := flag.Bool("watch", false, "Refresh the watch list on its cron schedule")
	runOnce := flag.Bool("once", false, "Run a single watch cycle and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"renderer", cfg.Acquire.Engine,
		"cache", cfg.Cache.Type,
		"openai_enabled", cfg.ModelEnabled(),
		"telegram_enabled", cfg.Telegram.Enabled,
	)

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("database initialized", "path", cfg.DatabasePath)

	resultCache, closeCache, err := newCache(ctx, cfg.Cache, repo)
	if err != nil {
		logger.Error("failed to initialize cache", "type", cfg.Cache.Type, "error", err)
		os.Exit(1)
	}
	defer closeCache()

	// Page acquisition
	uaRotator := antidetect.NewUserAgentRotator(cfg.Acquire.UserAgents)
	throttle := antidetect.NewHostThrottle(cfg.Acquire.MinDelay, cfg.Acquire.MaxDelay)
	fetcher := acquire.NewHTTPFetcher(cfg.Acquire.HTTPTimeout, throttle, uaRotator, logger)
	renderer, err := acquire.NewRenderer(cfg.Acquire, uaRotator, logger)
	if err != nil {
		logger.Error("failed to initialize renderer", "error", err)
		os.Exit(1)
	}
	chain := acquire.NewChain(fetcher, renderer, cfg.Acquire.MinHTTPChars, cfg.Acquire.MinRenderChars, logger)

	// Extraction
	policy := plausibility.NewPolicy(cfg.Policy)
	completer := llm.NewOpenAI(cfg.OpenAI, logger)
	if completer.Enabled() {
		logger.Info("model rent extraction enabled", "model", cfg.OpenAI.Model)
	}

	svc := analyzer.New(analyzer.Deps{
		Pages:        chain,
		Portals:      portal.NewRegistry(portal.RentBounds{Min: cfg.Policy.PortalRentMin, Max: cfg.Policy.PortalRentMax}, logger),
		TextRent:     rent.NewTextExtractor(policy),
		ModelRent:    rent.NewModelExtractor(completer, cfg.OpenAI, policy, logger),
		Plausibility: plausibility.NewEngine(policy),
		Areas:        geo.NewResolver(cfg.Geo, logger),
		Benchmarks:   benchmark.NewResolver(cfg.Benchmark, cfg.Policy, chain, logger),
		Cache:        resultCache,
		History:      repo,
	}, cfg.Cache, logger)

	// One shot modes
	if *listingURL != "" || *postalCodes != "" {
		if err := runOneShot(ctx, svc, *listingURL, *postalCodes, *asJSON); err != nil {
			logger.Error("lookup failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Initialize Telegram bot controller (for commands)
	botController, err := telegram.NewBotController(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Enabled && (*bot || *watch), svc, logger)
	if err != nil {
		logger.Error("failed to initialize Telegram bot controller", "error", err)
		os.Exit(1)
	}
	notifier := telegram.NewNotifierFromController(botController)

	sched := scheduler.NewScheduler(cfg.Watch, svc, repo, notifier, logger)
	botController.SetStatusCallback(sched.Status)

	if *runOnce {
		logger.Info("running single watch cycle")
		if err := sched.RunOnce(ctx); err != nil {
			logger.Error("watch cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info("watch cycle complete")
		return
	}

	if !*serve && !*bot && !*watch {
		flag.Usage()
		os.Exit(2)
	}

	g, gctx := errgroup.WithContext(ctx)

	if *serve {
		srv := server.New(cfg.HTTP, server.NewHandler(svc), logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if *bot {
		if !botController.IsEnabled() {
			logger.Warn("telegram disabled, -bot has no effect")
		} else {
			botController.StartCommandListener(gctx)
			logger.Info("Telegram command listener started")
		}
	}

	if *watch {
		if err := sched.Start(gctx); err != nil {
			logger.Error("scheduler failed to start", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
		notifier.NotifyStartup(gctx, len(cfg.Watch.PostalCodes), len(cfg.Watch.URLs))
	}

	// Purge expired cache rows while running
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n, err := repo.PurgeExpired(gctx); err != nil {
					logger.Warn("cache purge failed", "error", err)
				} else if n > 0 {
					logger.Debug("expired cache entries purged", "count", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// newCache builds the configured result cache and its release function
func newCache(ctx context.Context, cfg config.CacheConfig, repo *sqlite.Repository) (cache.Cache, func(), error) {
	switch cfg.Type {
	case "memory":
		mc := cache.NewMemoryCache(time.Minute)
		return mc, func() { mc.Close() }, nil
	case "sqlite":
		return repo, func() {}, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	default:
		return cache.Noop{}, func() {}, nil
	}
}

func runOneShot(ctx context.Context, svc *analyzer.Analyzer, listingURL, postalCodes string, asJSON bool) error {
	renderer, err := report.NewRenderer(report.FormatText)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if listingURL != "" {
		res, err := svc.AnalyzeURL(ctx, listingURL)
		if err != nil {
			return err
		}
		if asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			text, err := renderer.Analysis(res)
			if err != nil {
				return err
			}
			fmt.Println(text)
		}
	}

	if postalCodes != "" {
		var codes []string
		for _, c := range strings.Split(postalCodes, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
		results := svc.MarketRentBatch(ctx, codes)
		if asJSON {
			return enc.Encode(results)
		}
		for _, res := range results {
			text, err := renderer.MarketRent(res)
			if err != nil {
				return err
			}
			fmt.Println(text)
			fmt.Println()
		}
	}
	return nil
}
