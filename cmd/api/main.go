package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotprice/internal/api"
	"spotprice/internal/api/handlers"
	"spotprice/internal/config"
	"spotprice/internal/feed"
	"spotprice/internal/logger"
	"spotprice/internal/pricing"
	"spotprice/internal/schedule"
	"spotprice/internal/source"

	"github.com/gin-gonic/gin"
)

func main() {
	defaultCfg := os.Getenv("SPOTPRICE_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "examples/config.yaml"
	}
	cfgPath := flag.String("config", defaultCfg, "Path to YAML config")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logs, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logs.Close()
	log := logs.Logger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := buildEnv(ctx, cfg, loc, logs)
	if err != nil {
		return err
	}

	rules, err := schedule.LoadRules(cfg.Server.RulesDir, logs.Component("schedule"))
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log.Info("rules loaded", "dir", cfg.Server.RulesDir, "count", len(rules))

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(env, rules, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		Logger:         logs.Component("api"),
	})

	go env.Feeds.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("starting API server", "addr", srv.Addr, "sources", len(env.Feeds.List()), "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEnv creates one feed per configured source.
func buildEnv(ctx context.Context, cfg *config.Config, loc *time.Location, logs *logger.Manager) (*handlers.Env, error) {
	client := source.NewClient(source.ClientOptions{
		Timeout: cfg.Refresh.Timeout,
		Logger:  logs.Component("source"),
	})

	var cache *source.ResponseCache
	if cfg.Cache.Enabled {
		cache = source.NewResponseCache(cfg.Cache.TTL)
		go cache.Run(ctx, cfg.Cache.TTL)
	}

	opts := feed.Options{
		Interval:  cfg.Refresh.Interval,
		Jitter:    cfg.Refresh.Jitter,
		Timeout:   cfg.Refresh.Timeout,
		MaxErrors: cfg.Refresh.MaxErrors,
	}

	env := &handlers.Env{
		Surcharges: map[string]pricing.Surcharge{},
		Formulas:   map[string]pricing.Formula{},
		Location:   loc,
		Logger:     logs.Component("api"),
	}
	feeds := make([]*feed.Feed, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		spec, err := cfg.SourceSpec(sc)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.ID, err)
		}
		src, err := source.New(spec, client)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.ID, err)
		}
		src = source.WithCache(src, cache)

		id := src.Info().ID
		env.Surcharges[id] = cfg.SurchargeFor(sc)
		if sc.Formula != "" {
			f, err := pricing.ParseFormula(sc.Formula)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", sc.ID, err)
			}
			env.Formulas[id] = f
		}
		feeds = append(feeds, feed.New(src, opts, logs.Component("feed")))
	}

	set, err := feed.NewSet(feeds...)
	if err != nil {
		return nil, err
	}
	env.Feeds = set
	return env, nil
}
