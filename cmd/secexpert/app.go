package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jeanpaul/secexpert/internal/agent"
	"github.com/jeanpaul/secexpert/internal/analysis"
	"github.com/jeanpaul/secexpert/internal/config"
	"github.com/jeanpaul/secexpert/internal/logger"
	"github.com/jeanpaul/secexpert/internal/memory"
	"github.com/jeanpaul/secexpert/internal/observability"
	"github.com/jeanpaul/secexpert/internal/provider"
	"github.com/jeanpaul/secexpert/internal/store"
)

type globalFlags struct {
	configPath string
	provider   string
	model      string
	session    string
	verbose    bool
	jsonOut    bool
}

// app holds what every subcommand shares. Provider-dependent pieces are
// built on demand so offline commands work without credentials.
type app struct {
	flags    globalFlags
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	agg      *memory.Aggregator
	shutdown observability.Shutdown
}

func newApp(ctx context.Context, g globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.provider != "" {
		cfg.DefaultProvider = g.provider
		cfg.DefaultModel = ""
	}
	if g.model != "" {
		cfg.DefaultModel = g.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Log.ErrorLog != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.ErrorLog), 0o755); err != nil {
			return nil, err
		}
	}
	mode := cfg.Log.Mode
	if g.verbose {
		mode = "debug"
	}
	log, err := logger.New(mode, cfg.Log.ErrorLog)
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	s, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("open store failed", "path", cfg.Store.Path, "error", err)
		_ = shutdown(ctx)
		log.Sync()
		return nil, err
	}

	agg, err := memory.NewAggregator(s, time.Duration(cfg.Memory.InsightCacheTTLSeconds)*time.Second)
	if err != nil {
		_ = s.Close()
		_ = shutdown(ctx)
		log.Sync()
		return nil, err
	}

	return &app{flags: g, cfg: cfg, log: log, store: s, agg: agg, shutdown: shutdown}, nil
}

func (a *app) close() {
	a.agg.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("flush traces", "error", err)
	}
	a.log.Sync()
}

func (a *app) newProvider() (provider.Provider, error) {
	if err := a.cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	return provider.FromConfig(a.cfg)
}

func (a *app) matcher() *memory.Matcher {
	return memory.NewMatcher(a.store)
}

func (a *app) orchestrator() (*analysis.Orchestrator, error) {
	prov, err := a.newProvider()
	if err != nil {
		return nil, err
	}
	crew, err := config.LoadCrew(a.cfg.Agent.CrewFile)
	if err != nil {
		return nil, err
	}
	pipeline := agent.NewCrew(prov, crew, provider.Options{
		Temperature: provider.Float(a.cfg.Agent.Temperature),
		MaxTokens:   a.cfg.Agent.MaxTokens,
	}, a.log)

	limits := memory.LimitsFromConfig(a.cfg.Memory)
	return analysis.New(
		pipeline,
		memory.NewComposer(a.matcher(), a.agg, a.store, limits, a.log),
		memory.NewRecorder(a.store, a.agg, a.log),
		a.store,
		analysis.Options{
			Timeout:      time.Duration(a.cfg.Agent.TimeoutSeconds) * time.Second,
			HistoryLimit: 20,
			Logger:       a.log,
			Tracer:       observability.Tracer("secexpert"),
		},
	), nil
}
