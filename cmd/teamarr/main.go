// SPDX-License-Identifier: MIT

// Command teamarr is the sports EPG daemon. It renders XMLTV guides
// from live sports data, keeps Dispatcharr event channels in sync with
// them, and serves the finished guides over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/teamarr/teamarr/internal/api"
	"github.com/teamarr/teamarr/internal/cache"
	"github.com/teamarr/teamarr/internal/channels"
	"github.com/teamarr/teamarr/internal/config"
	"github.com/teamarr/teamarr/internal/daemon"
	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/jobs"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/reconcile"
	"github.com/teamarr/teamarr/internal/sports"
	"github.com/teamarr/teamarr/internal/sports/espn"
	"github.com/teamarr/teamarr/internal/sports/sportsdb"
	"github.com/teamarr/teamarr/internal/sports/teamindex"
	"github.com/teamarr/teamarr/internal/store"
	"github.com/teamarr/teamarr/internal/telemetry"
	"github.com/teamarr/teamarr/internal/version"
)

// indexMaxAge is the team index refresh policy: soccer competition
// memberships change on transfer windows, not daily.
const indexMaxAge = 7 * 24 * time.Hour

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsed.User = nil
	return parsed.String()
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	log.Configure(log.Config{Level: "info", Service: "teamarr"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: --config wins; otherwise auto-load
	// ${TEAMARR_DATA_DIR}/config.yaml if it exists.
	explicitPath := strings.TrimSpace(*configPath)
	effectivePath := explicitPath
	if effectivePath == "" {
		dataDir := strings.TrimSpace(config.ParseString("TEAMARR_DATA_DIR", "/data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	loader := config.NewLoader(effectivePath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	if cfg.Logging.Level != "" {
		if lvl, perr := zerolog.ParseLevel(cfg.Logging.Level); perr == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	logConfigSource(logger, explicitPath, effectivePath)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Mode != "" && cfg.Telemetry.Mode != "off",
		ServiceName:    "teamarr",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Mode,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).
			Str("event", "startup.data_dir_failed").
			Str("path", cfg.DataDir).
			Msg("data directory is not usable")
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "teamarr.db"), store.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "store.open_failed").
			Msg("failed to open database")
	}

	// A fresh database picks up its settings row from the config; an
	// existing one keeps whatever the operator saved.
	if err := st.EnsureSettings(ctx, store.Settings{
		Timezone:              cfg.Generation.Timezone,
		EPGSourceID:           cfg.Dispatcharr.EPGSourceID,
		DaysAhead:             cfg.Generation.DaysAhead,
		DefaultDurationHours:  3,
		FixDrift:              true,
		CacheSweepGenerations: cfg.Generation.CacheSweepGenerations,
	}); err != nil {
		logger.Fatal().Err(err).
			Str("event", "store.seed_failed").
			Msg("failed to seed settings")
	}

	dsp := dispatcharr.New(cfg.Dispatcharr.BaseURL, cfg.Dispatcharr.Username, cfg.Dispatcharr.Password, dispatcharr.Options{
		Timeout:        cfg.Dispatcharr.Timeout,
		UserAgent:      version.Banner(),
		RateLimit:      rate.Limit(cfg.Dispatcharr.RateLimit),
		RateLimitBurst: cfg.Dispatcharr.RateBurst,
	})

	respCache := buildCache(cfg, logger)

	espnClient := espn.New(espn.Options{
		Timeout:        cfg.Providers.Timeout,
		UserAgent:      cfg.Providers.UserAgent,
		RateLimit:      rate.Limit(cfg.Providers.RateLimit),
		RateLimitBurst: cfg.Providers.RateBurst,
	})
	sdbClient := sportsdb.New(sportsdb.Options{
		APIKey:         cfg.Providers.SportsDBKey,
		Timeout:        cfg.Providers.Timeout,
		UserAgent:      cfg.Providers.UserAgent,
		RateLimit:      rate.Limit(cfg.Providers.RateLimit),
		RateLimitBurst: cfg.Providers.RateBurst,
	})
	svc := sports.NewService(sports.ServiceOptions{
		Standard:      espnClient,
		Cricket:       sports.NewCricket(sdbClient, espnClient),
		Cache:         respCache,
		ScoreboardTTL: cfg.Providers.CacheTTL,
	})

	idx, err := teamindex.Open(filepath.Join(cfg.DataDir, "teamindex"))
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "teamindex.open_failed").
			Msg("failed to open team index")
	}

	soccer := soccerLeagues()
	if idx.Stale(indexMaxAge) {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if _, err := idx.Refresh(refreshCtx, soccer, espnClient.Teams); err != nil {
			logger.Warn().Err(err).
				Str("event", "teamindex.initial_refresh_failed").
				Msg("team index refresh failed; soccer teams fall back to their primary league")
		}
		cancel()
	}

	orch := jobs.New(jobs.Deps{
		Store:    st,
		Sports:   svc,
		Upstream: dsp,
		Lifecycle: func(loc *time.Location, profileIDs []int) jobs.Lifecycle {
			return channels.NewManager(dsp, st, loc, profileIDs)
		},
		Comps:   idx,
		DataDir: cfg.DataDir,
		Refresh: dispatcharr.RefreshOptions{
			PollInterval: cfg.Dispatcharr.PollInterval,
			Timeout:      cfg.Dispatcharr.PollTimeout,
			SkipIfRecent: cfg.Dispatcharr.SkipIfRecent,
		},
	})

	apiServer := api.New(api.Config{DataDir: cfg.DataDir}, orch, st)

	// After each completed run: reconcile upstream against the managed
	// rows with the gates the operator set, then keep the team index
	// inside its refresh window.
	postRun := func(ctx context.Context) {
		set, err := st.GetSettings(ctx)
		if err != nil {
			logger.Warn().Err(err).
				Str("event", "reconcile.settings_failed").
				Msg("skipping reconcile pass")
			return
		}
		rep, err := reconcile.NewRunner(dsp, st, reconcile.Options{
			FixDrift:      set.FixDrift,
			DeleteOrphans: set.DeleteOrphans,
		}).Run(ctx)
		if err != nil {
			logger.Warn().Err(err).
				Str("event", "reconcile.failed").
				Msg("reconcile pass failed")
		} else {
			logger.Info().
				Str("event", "reconcile.complete").
				Int("issues", len(rep.Issues)).
				Int("fixed", rep.Fixed).
				Int("backfilled", rep.Backfilled).
				Msg("reconcile pass complete")
		}

		if idx.Stale(indexMaxAge) {
			if _, err := idx.Refresh(ctx, soccer, espnClient.Teams); err != nil {
				logger.Warn().Err(err).
					Str("event", "teamindex.refresh_failed").
					Msg("team index refresh failed")
			}
		}
	}

	sched, err := daemon.NewScheduler(daemon.SchedulerConfig{
		Interval:   cfg.Generation.Interval,
		InitialRun: cfg.Generation.InitialRun,
	}, orch, postRun)
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "scheduler.creation_failed").
			Msg("failed to create scheduler")
	}

	mgr, err := daemon.NewManager(daemon.ServerConfig{ListenAddr: cfg.Listen}, apiServer.Handler())
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "manager.creation_failed").
			Msg("failed to create daemon manager")
	}

	// LIFO: cache and store close first, telemetry flushes last.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("teamindex", func(context.Context) error { return idx.Close() })
	mgr.RegisterShutdownHook("store", func(context.Context) error { return st.Close() })
	if closer, ok := respCache.(interface{ Close() error }); ok {
		mgr.RegisterShutdownHook("cache", func(context.Context) error { return closer.Close() })
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Msg("starting teamarr")

	logger.Info().Msgf("→ Dispatcharr: %s (auth: %v)", maskURL(cfg.Dispatcharr.BaseURL), cfg.Dispatcharr.Username != "")
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Guide: %s", filepath.Join(cfg.DataDir, epg.OutputFileName))
	logger.Info().Msgf("→ Generation: every %s, %d days ahead", cfg.Generation.Interval, cfg.Generation.DaysAhead)
	if set, err := st.GetSettings(ctx); err == nil {
		logger.Info().Msgf("→ Timezone: %s", set.Timezone)
		if set.EPGSourceID > 0 {
			logger.Info().Msgf("→ EPG import: Dispatcharr source %d", set.EPGSourceID)
		} else {
			logger.Warn().Msg("→ EPG import: no source configured; set one to auto-import the guide")
		}
	}
	if cfg.Redis.Addr != "" {
		logger.Info().Msgf("→ Cache: redis (%s)", cfg.Redis.Addr)
	} else {
		logger.Info().Msg("→ Cache: in-memory")
	}
	if cfg.Telemetry.Mode != "" && cfg.Telemetry.Mode != "off" {
		logger.Info().Msgf("→ Tracing: %s (%s)", cfg.Telemetry.Mode, cfg.Telemetry.Endpoint)
	}

	holder := config.NewHolder(cfg, config.NewLoader(effectivePath, version.Version), effectivePath)

	app := daemon.NewApp(mgr, holder, sched)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}

	logger.Info().Msg("server exiting")
}

func logConfigSource(logger zerolog.Logger, explicitPath, effectivePath string) {
	switch {
	case explicitPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitPath).
			Msg("loaded configuration from file")
	case effectivePath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectivePath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
}

// buildCache selects the response cache backend. Redis being down at
// boot degrades to the in-memory cache instead of refusing to start.
func buildCache(cfg config.AppConfig, logger zerolog.Logger) cache.Cache {
	const cleanupInterval = 10 * time.Minute

	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(cleanupInterval)
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log.WithComponent("cache"))
	if err != nil {
		logger.Warn().Err(err).
			Str("event", "cache.redis_unavailable").
			Msg("redis unreachable, using in-memory cache")
		return cache.NewMemoryCache(cleanupInterval)
	}
	return rc
}

func soccerLeagues() []domain.League {
	var out []domain.League
	for _, l := range domain.AllLeagues() {
		if l.SportOf() == domain.SportSoccer {
			out = append(out, l)
		}
	}
	return out
}
