package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"walletchat/internal/adapter/channel"
	"walletchat/internal/adapter/llm"
	"walletchat/internal/adapter/tool"
	"walletchat/internal/adapter/tui/chat"
	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/logger"
	"walletchat/internal/infra/tracer"
	"walletchat/internal/usecase"
	"walletchat/internal/usecase/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Config. A .env file is optional and only feeds env overrides.
	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Completion provider (optional: intent extraction and general chat
	// degrade to local fallbacks without one)
	provider := buildProvider(cfg, log)

	// 5. Wallet backend and tools
	backend := tool.NewMockWalletBackend(cfg.Agent.SendLatency, cfg.Agent.SwapLatency, cfg.Simulator.Seed)
	registry := tool.NewRegistry(log)
	for _, tl := range []domain.Tool{
		tool.NewSendTool(backend, bus, log),
		tool.NewWalletInfoTool(backend, log),
		tool.NewSwapTool(backend, bus, log),
		tool.NewGeneralResponseTool(provider, cfg.Agent.SystemPrompt, log),
	} {
		if err := registry.Register(tl); err != nil {
			return fmt.Errorf("tools: %w", err)
		}
	}

	// 6. Conversation core
	simulator := usecase.NewProgressSimulator(cfg.Simulator, bus, log)
	defer simulator.Stop()

	sessions := usecase.NewSessionManager(bus)
	service := usecase.NewChatService(usecase.ChatServiceDeps{
		Sessions:  sessions,
		Locker:    usecase.NewSessionLocker(),
		Extractor: usecase.NewIntentExtractor(provider, log),
		Tools:     registry,
		Simulator: simulator,
		Bus:       bus,
		Logger:    log,
		Config:    cfg.Agent,
	})

	// 7. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 8. Stale session sweeper
	go sweepSessions(ctx, sessions, cfg.Agent.StaleSessionAge, log)

	log.Info("walletchat starting",
		"provider", providerName(provider),
		"tools", len(registry.List()),
		"http", cfg.Channels.HTTP.Enabled,
		"tui", cfg.Channels.TUI.Enabled,
	)

	// 9. Channels
	var httpCh *channel.HTTPChannel
	if cfg.Channels.HTTP.Enabled {
		httpCh = channel.NewHTTPChannel(service, registry, cfg.Channels.HTTP, log)
		if err := httpCh.Start(ctx); err != nil {
			return fmt.Errorf("http channel: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := httpCh.Stop(shutdownCtx); err != nil {
				log.Error("http shutdown error", "error", err)
			}
		}()
	}

	if cfg.Channels.TUI.Enabled {
		tui := chat.NewTUIChannel(service, log)
		tui.SetEventBus(bus)
		tui.SetModelName(cfg.LLM.Provider.Model)
		return tui.Start(ctx)
	}

	if httpCh == nil {
		return fmt.Errorf("no channels enabled")
	}

	<-ctx.Done()
	return nil
}

// buildProvider creates the Gemini completion provider, wrapped in a circuit
// breaker when enabled. Returns nil when no provider is configured so the
// local fallbacks take over.
func buildProvider(cfg *config.Config, log *slog.Logger) domain.CompletionProvider {
	pc := cfg.LLM.Provider
	if pc.Type != "gemini" || pc.APIKey == "" {
		log.Warn("no completion provider configured, using local intent fallback")
		return nil
	}

	var provider domain.CompletionProvider = llm.NewGeminiProvider(pc, log)
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}
	return provider
}

func providerName(p domain.CompletionProvider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

// sweepSessions drops sessions idle longer than age. A zero age disables the
// sweep.
func sweepSessions(ctx context.Context, sessions *usecase.SessionManager, age time.Duration, log *slog.Logger) {
	if age <= 0 {
		return
	}
	ticker := time.NewTicker(age / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.PruneStale(age); n > 0 {
				log.Info("pruned stale sessions", "count", n)
			}
		}
	}
}
