package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/pitchcoach/internal/backfill"
	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/config"
	"github.com/MikeSquared-Agency/pitchcoach/internal/heuristic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/processor"
	"github.com/MikeSquared-Agency/pitchcoach/internal/slack"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
)

// runBackfill analyses a directory of recorded calls and exits.
func runBackfill(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	var bcfg backfill.Config
	fs.StringVar(&bcfg.Dir, "dir", "", "directory of transcripts (.txt, .md, .json, .jsonl)")
	fs.StringVar(&bcfg.SingleFile, "file", "", "process a single transcript file")
	fs.StringVar(&bcfg.StatePath, "state", "", "state file for resumable runs")
	fs.BoolVar(&bcfg.DryRun, "dry-run", false, "load and chunk transcripts without analysing")
	fs.BoolVar(&bcfg.Simulate, "simulate", false, "heuristic analysis only, no model calls")
	fs.IntVar(&bcfg.MinTurns, "min-turns", 2, "skip conversations with fewer turns")
	fs.IntVar(&bcfg.MaxTurns, "max-turns", 40, "split longer conversations into chunks of this size")
	fs.IntVar(&bcfg.Limit, "limit", 0, "stop after this many files")
	_ = fs.Parse(args)

	if bcfg.Dir == "" && bcfg.SingleFile == "" {
		fmt.Fprintln(os.Stderr, "backfill: -dir or -file is required")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var completer llm.Completer
	if !bcfg.Simulate && !bcfg.DryRun {
		c, closeProvider, err := newCompleter(ctx, cfg)
		if err != nil {
			slog.Error("failed to set up model provider", "error", err)
			return 1
		}
		defer closeProvider()
		if c != nil {
			completer = llm.NewRetrying(c, cfg.LLMMaxRetry, slog.Default())
		}
	}

	pitchCoach := coach.New(completer, heuristic.New(heuristic.NewSource(cfg.HeuristicSeed)), coach.Options{
		Provider:              cfg.LLMProvider,
		MetricsSource:         cfg.MetricsSource,
		PerTurnSuggestions:    cfg.PerTurnSuggestions,
		SuggestionConcurrency: cfg.SuggestionConcurrency,
	}, nil, slog.Default())

	var recorder processor.Recorder
	if cfg.DatabaseURL != "" && !bcfg.DryRun {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			return 1
		}
		recorder = db
	}
	proc := processor.New(pitchCoach, recorder, nil, slog.Default())

	var poster backfill.MessagePoster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
	}

	report, err := backfill.NewRunner(bcfg, proc, poster, slog.Default()).Run(ctx)
	if err != nil {
		slog.Error("backfill failed", "error", err)
		return 1
	}

	fmt.Printf("\n=== Backfill Summary ===\n")
	fmt.Printf("Files processed: %d\n", report.FilesProcessed)
	fmt.Printf("Files skipped: %d\n", report.FilesSkipped)
	fmt.Printf("Duplicates: %d\n", report.Duplicates)
	fmt.Printf("Chunks: %d\n", report.Chunks)
	fmt.Printf("Errors: %d\n", report.Errors)
	if report.DryRun {
		fmt.Printf("Mode: DRY RUN (no analyses)\n")
	}
	return 0
}
