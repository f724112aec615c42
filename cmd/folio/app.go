package main

import (
	"fmt"
	"time"

	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/translate"
	"github.com/jackzampolin/folio/internal/usage"
)

// app bundles the wired pipeline components for one command invocation.
type app struct {
	store    *store.Store
	sink     *usage.Sink
	pipeline *translate.Pipeline
	cfg      *config.Config
}

// newApp opens the store and wires the provider, orchestrator, and worker
// pool from config. Close releases everything in reverse order.
func newApp() (*app, error) {
	cfg := cfgManager.Get()

	path, err := storePath(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path, logger)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	sink := usage.NewSink(usage.SinkConfig{Appender: st, Logger: logger})
	sink.Start()

	orch := translate.NewOrchestrator(translate.OrchestratorConfig{
		Client:     client,
		Sink:       sink,
		SourceLang: cfg.Translate.SourceLang,
		TargetLang: cfg.Translate.TargetLang,
		Validator: &translate.LengthValidator{
			MinChars: cfg.Translate.MinOutputChars,
			MinRatio: cfg.Translate.MinOutputRatio,
		},
		MaxAttempts: uint(cfg.Translate.MaxAttempts),
		BaseDelay:   time.Duration(cfg.Translate.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Translate.MaxDelaySeconds) * time.Second,
		Logger:      logger,
	})
	pool := translate.NewPool(translate.PoolConfig{
		Store:        st,
		Orchestrator: orch,
		Workers:      cfg.Translate.Workers,
		ContextWords: cfg.Translate.ContextWords,
		Logger:       logger,
	})
	pipeline := translate.NewPipeline(translate.PipelineConfig{
		Store:         st,
		Pool:          pool,
		MaxChunkRunes: cfg.Translate.MaxChunkRunes,
		Logger:        logger,
	})

	return &app{store: st, sink: sink, pipeline: pipeline, cfg: cfg}, nil
}

func (a *app) Close() {
	a.sink.Stop()
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close store", "error", err)
	}
}

func newClient(cfg *config.Config) (providers.CompletionClient, error) {
	p := cfg.Provider
	switch p.Type {
	case "openai":
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:              config.ResolveEnvVars(p.APIKey),
			Model:               p.Model,
			BaseURL:             p.BaseURL,
			RateLimit:           p.RateLimit,
			Timeout:             time.Duration(p.TimeoutSeconds) * time.Second,
			PromptCostPer1M:     p.PromptCostPer1M,
			CompletionCostPer1M: p.CompletionCostPer1M,
		}), nil
	case "mock":
		return providers.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}
