package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/pitchcoach/internal/anthropic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/api"
	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/config"
	"github.com/MikeSquared-Agency/pitchcoach/internal/gemini"
	"github.com/MikeSquared-Agency/pitchcoach/internal/hermes"
	"github.com/MikeSquared-Agency/pitchcoach/internal/heuristic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/processor"
	"github.com/MikeSquared-Agency/pitchcoach/internal/slack"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
	"github.com/MikeSquared-Agency/pitchcoach/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if len(os.Args) > 1 && os.Args[1] == "backfill" {
		os.Exit(runBackfill(cfg, os.Args[2:]))
	}

	slog.Info("pitchcoach starting", "port", cfg.Port, "provider", cfg.LLMProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(registry)

	// Model provider
	completer, closeProvider, err := newCompleter(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up model provider", "error", err)
		os.Exit(1)
	}
	defer closeProvider()

	if completer != nil {
		completer = llm.NewRetrying(completer, cfg.LLMMaxRetry, slog.Default())

		// Completion cache (optional)
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "error", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opts)
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("redis not available, cache will fall through", "error", err)
			}
			completer = llm.NewCached(completer, rdb, cfg.CacheTTL, slog.Default(), metrics)
			slog.Info("completion cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("no model provider configured, running in simulation mode")
	}

	engine := heuristic.New(heuristic.NewSource(cfg.HeuristicSeed))
	pitchCoach := coach.New(completer, engine, coach.Options{
		Provider:              cfg.LLMProvider,
		MetricsSource:         cfg.MetricsSource,
		PerTurnSuggestions:    cfg.PerTurnSuggestions,
		SuggestionConcurrency: cfg.SuggestionConcurrency,
	}, metrics, slog.Default())

	deps := api.Deps{
		Coach:    pitchCoach,
		Metrics:  metrics,
		Gatherer: registry,
		Logger:   slog.Default(),
	}

	// Database (optional analysis history)
	var recorder processor.Recorder
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		recorder = db
		deps.History = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, analysis history disabled")
	}

	// NATS/Hermes (optional events)
	var hermesClient *hermes.Client
	var publisher processor.Publisher
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		deps.Events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Processor: the main pipeline
	proc := processor.New(pitchCoach, recorder, publisher, slog.Default())
	deps.Analyzer = proc

	// Slack review digests (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		proc.SetNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default()))
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectAnalysisRequested, proc.HandleAnalysisRequested); err != nil {
			slog.Error("failed to subscribe to analysis requests", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, deps)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.pitchcoach.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"provider":  cfg.LLMProvider,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("pitchcoach ready", "port", cfg.Port, "simulating", pitchCoach.Simulating())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("pitchcoach stopped")
}

// newCompleter builds the configured provider. It returns a nil Completer in
// simulation mode.
func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, func(), error) {
	noop := func() {}
	switch cfg.LLMProvider {
	case config.ProviderSimulate:
		return nil, noop, nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, noop, errors.New("ANTHROPIC_API_KEY is required")
		}
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), noop, nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, noop, errors.New("GEMINI_API_KEY is required")
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		slog.Info("gemini client ready", "model", client.Model())
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
