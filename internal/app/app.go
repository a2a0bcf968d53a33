// Package app assembles the orchestration server: memory store, context
// manager, capability registry, executor, parser, orchestrator, and the wire
// transport, all wired over one event bus.
package app

import (
	stdcontext "context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"nova/internal/bus"
	"nova/internal/capability"
	"nova/internal/capability/builtin"
	"nova/internal/config"
	"nova/internal/context"
	"nova/internal/executor"
	"nova/internal/intent"
	"nova/internal/llm"
	"nova/internal/memory"
	"nova/internal/observability"
	"nova/internal/orchestrator"
	"nova/internal/server"
	"nova/internal/tts"
)

// App is a fully wired server instance.
type App struct {
	config *config.Config
	logger *observability.Logger
	tracer *observability.TracerProvider
	store  memory.Store
	server *server.Server

	unsubscribe []func()
}

// New builds an App from configuration. The returned instance owns its
// resources; Run releases them on exit.
func New(cfg *config.Config) (*App, error) {
	obsConfig, err := observability.LoadConfig("")
	if err != nil {
		return nil, fmt.Errorf("load observability config: %w", err)
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  obsConfig.Logging.Level,
		Format: obsConfig.Logging.Format,
	})

	tracer, err := observability.NewTracerProvider(obsConfig.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	metrics, err := observability.NewMetricsCollector(obsConfig.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	contexts := context.NewManager(store)

	llmClient, err := llm.NewOpenAIClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	parser := intent.NewParser(intent.NewLLMProvider(llmClient, logger), logger)

	registry := capability.NewRegistry()
	if err := registerBuiltins(registry, cfg); err != nil {
		return nil, err
	}
	exec := executor.New(registry, logger)

	events := bus.New(logger)
	connections := server.NewConnectionManager(cfg.Server.KnownRetention, cfg.Server.MaxKnownIDs)
	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		EnableCORS:     cfg.Server.EnableCORS,
		KnownRetention: cfg.Server.KnownRetention,
		MaxKnownIDs:    cfg.Server.MaxKnownIDs,
	}, connections, nil, logger, metrics)

	orch := orchestrator.New(parser, exec, contexts, srv, events, orchestrator.Options{
		Synthesizer: tts.Mock{},
		Tracer:      tracer,
		Collector:   metrics,
		Logger:      logger,
	})
	srv.SetHandler(orch)

	app := &App{
		config: cfg,
		logger: logger,
		tracer: tracer,
		store:  store,
		server: srv,
	}

	// Settled intents feed the short-term context so follow-up turns can
	// resolve references like "that" or "there".
	app.unsubscribe = append(app.unsubscribe,
		events.Subscribe(orchestrator.TopicIntentResult, func(event any) {
			result, ok := event.(orchestrator.IntentResultEvent)
			if !ok {
				return
			}
			contexts.RecordIntent(result.ClientID, context.RecentIntent{
				Intent:  result.Intent.ID,
				Action:  result.Intent.Action,
				Result:  result.Result.Data,
				Success: result.Result.Success,
			})
		}),
	)

	return app, nil
}

func openStore(cfg *config.Config) (memory.Store, error) {
	switch cfg.Memory.Backend {
	case "redis":
		ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 5*time.Second)
		defer cancel()
		store, err := memory.NewRedisStore(ctx, cfg.Memory.Redis.Addr, cfg.Memory.Redis.Password, cfg.Memory.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis memory: %w", err)
		}
		return store, nil
	case "file", "":
		store, err := memory.NewFileStore(os.ExpandEnv(cfg.Memory.Dir))
		if err != nil {
			return nil, fmt.Errorf("open file memory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func registerBuiltins(registry *capability.Registry, cfg *config.Config) error {
	ctx := stdcontext.Background()
	for _, c := range []capability.Capability{
		builtin.NewGetTime(),
		builtin.NewGetDate(),
		builtin.NewSimpleMath(),
		builtin.NewGetWeather(cfg.Weather.BaseURL, nil),
		builtin.NewFetchPage(nil),
	} {
		if err := registry.Register(ctx, c); err != nil {
			return fmt.Errorf("register capability: %w", err)
		}
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx stdcontext.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", "error", err)
		}
		return nil
	})

	err := group.Wait()
	a.close()
	return err
}

func (a *App) close() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("memory store close failed", "error", err)
	}
}
