package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/jwebster45206/hackslash/internal/autoplay"
	"github.com/jwebster45206/hackslash/internal/config"
	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/jwebster45206/hackslash/internal/gateway"
	"github.com/jwebster45206/hackslash/internal/logger"
	"github.com/jwebster45206/hackslash/internal/services"
	"github.com/jwebster45206/hackslash/internal/services/events"
	"github.com/jwebster45206/hackslash/pkg/reward"
	"github.com/jwebster45206/hackslash/pkg/stage"
	"github.com/jwebster45206/hackslash/pkg/state"
	"gopkg.in/yaml.v3"
)

// app holds everything a gameplay command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	stages  *stage.Catalog
	rewards *reward.Catalog
	eng     *engine.Engine
	closers []func() error
}

type setupOptions struct {
	provider string

	// quietLogs drops log output unless LOG_FILE is set; the TUI owns the
	// terminal.
	quietLogs bool
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig(opts setupOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if opts.provider != "" {
		cfg.LLMProvider = strings.ToLower(opts.provider)
	}
	return cfg, nil
}

// setup validates configuration once and wires the engine. Nothing is
// played when configuration is invalid.
func setup(ctx context.Context, opts setupOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	a := &app{cfg: cfg}
	if opts.quietLogs && cfg.LogFile == "" {
		a.log = logger.Discard()
		slog.SetDefault(a.log)
	} else {
		log, closeLog, err := logger.Setup(cfg)
		if err != nil {
			return nil, err
		}
		a.log = log
		a.closers = append(a.closers, closeLog)
	}

	ladder := cfg.Ladder()
	a.stages, a.rewards, err = loadCatalogs(cfg.CatalogFile, ladder)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	llm, closeLLM, err := newLLM(ctx, cfg, a.stages, a.log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeLLM)

	engOpts := []engine.Option{
		engine.WithLogger(a.log),
		engine.WithLadder(ladder),
		engine.WithDefaults(startCapability(ladder)),
	}
	if cfg.RewardSeed != 0 {
		engOpts = append(engOpts, engine.WithRand(rand.New(rand.NewPCG(cfg.RewardSeed, cfg.RewardSeed))))
	}
	if cfg.RedisURL != "" {
		rdb, err := events.Connect(ctx, cfg.RedisURL, a.log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		engOpts = append(engOpts, engine.WithObserver(events.NewBroadcaster(rdb, a.log)))
	}

	a.eng = engine.New(a.stages, a.rewards, gateway.FromConfig(llm, cfg, a.log), engOpts...)
	a.log.Info("Session ready",
		"session_id", a.eng.SessionID(),
		"provider", cfg.LLMProvider,
		"stages", a.stages.Total(),
		"rewards", a.rewards.Len())
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("Error during shutdown", "error", err)
		}
	}
	a.closers = nil
}

// newLLM builds the configured provider. Provider "mock" plays offline.
func newLLM(ctx context.Context, cfg *config.Config, stages *stage.Catalog, log *slog.Logger) (services.LLMService, func() error, error) {
	if cfg.LLMProvider == config.ProviderMock {
		log.Info("Using offline mock provider")
		return autoplay.OfflineLLM(stages), func() error { return nil }, nil
	}
	llm, closeLLM, err := services.NewFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using LLM provider", "provider", cfg.LLMProvider)
	return llm, closeLLM, nil
}

// startCapability is the default capability on the weakest configured tier.
func startCapability(ladder state.TierLadder) state.Capability {
	c := state.DefaultCapability()
	c.GenerationTier = ladder[0]
	return c
}

// loadCatalogs returns the embedded catalogs, or the ones in path. A file
// without a rewards list keeps the built-in rewards.
func loadCatalogs(path string, ladder state.TierLadder) (*stage.Catalog, *reward.Catalog, error) {
	if path == "" {
		rewards := reward.Default()
		if err := rewards.Validate(ladder); err != nil {
			return nil, nil, err
		}
		return stage.Default(), rewards, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	stages, err := stage.Load(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var probe struct {
		Rewards []yaml.Node `yaml:"rewards"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(probe.Rewards) == 0 {
		rewards := reward.Default()
		if err := rewards.Validate(ladder); err != nil {
			return nil, nil, err
		}
		return stages, rewards, nil
	}

	rewards, err := reward.Load(bytes.NewReader(data), ladder)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return stages, rewards, nil
}
