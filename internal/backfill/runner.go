package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
)

// Config holds the backfill command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	StatePath  string
	DryRun     bool // load and chunk without analysing
	Simulate   bool // heuristic analysis only, no model calls
	MinTurns   int
	MaxTurns   int // chunk size for long conversations
	Limit      int // stop after this many files; 0 means no limit
}

// Analyzer runs and records one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, turns []conversation.Turn, simulate bool) (*store.Analysis, error)
}

// MessagePoster delivers the run summary.
type MessagePoster interface {
	PostMessage(ctx context.Context, threadTS, text string) error
}

// Runner analyses a directory of recorded sales conversations.
type Runner struct {
	cfg      Config
	analyzer Analyzer
	poster   MessagePoster
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. poster may be nil.
func NewRunner(cfg Config, analyzer Analyzer, poster MessagePoster, logger *slog.Logger) *Runner {
	if cfg.MinTurns <= 0 {
		cfg.MinTurns = 2
	}
	return &Runner{cfg: cfg, analyzer: analyzer, poster: poster, logger: logger}
}

// Run processes every unprocessed file, saving state after each one so an
// interrupted run resumes where it stopped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, path := range files {
		if !state.IsProcessed(path) {
			pending = append(pending, path)
		}
	}
	if r.cfg.Limit > 0 && len(pending) > r.cfg.Limit {
		pending = pending[:r.cfg.Limit]
	}
	state.FilesRemaining = len(pending)
	r.logger.Info("files discovered", "total", len(files), "pending", len(pending))

	report := &Report{DryRun: r.cfg.DryRun}
	for _, path := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			return report, ctx.Err()
		default:
		}

		fs, skip, err := r.processFile(ctx, path, state, report)
		if err != nil {
			r.logger.Info("backfill interrupted mid-file, saving state", "path", path)
			if serr := state.Save(); serr != nil {
				r.logger.Warn("failed to save state", "error", serr)
			}
			return report, err
		}
		if !skip {
			report.Files = append(report.Files, fs)
			report.FilesProcessed++
		}
		if !r.cfg.DryRun {
			state.MarkProcessed(path)
		}
		state.FilesRemaining--
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		r.logger.Info("backfill interrupted after last file")
		return report, err
	}

	r.postSummary(ctx, report)

	r.logger.Info("backfill complete",
		"files_processed", report.FilesProcessed,
		"files_skipped", report.FilesSkipped,
		"duplicates", report.Duplicates,
		"chunks", report.Chunks,
		"errors", report.Errors,
		"dry_run", r.cfg.DryRun,
	)
	return report, nil
}

// processFile analyses every chunk of one file. The bool reports a skipped
// file. A non-nil error means ctx ended before every chunk was analysed, and
// the file must stay pending.
func (r *Runner) processFile(ctx context.Context, path string, state *BackfillState, report *Report) (FileSummary, bool, error) {
	turns, source, err := LoadFile(path)
	if err != nil {
		r.logger.Warn("failed to load file", "path", path, "error", err)
		state.AddError(fmt.Sprintf("load %s: %v", path, err))
		report.Errors++
		report.FilesSkipped++
		return FileSummary{}, true, nil
	}
	if len(turns) < r.cfg.MinTurns {
		report.FilesSkipped++
		return FileSummary{}, true, nil
	}

	fp := Fingerprint(turns)
	if state.Seen(fp) {
		r.logger.Info("skipping duplicate conversation", "path", path)
		report.Duplicates++
		return FileSummary{}, true, nil
	}

	fs := FileSummary{Path: path, Source: source.String(), Turns: len(turns)}
	chunks := ChunkConversation(turns, path, r.cfg.MaxTurns)
	r.logger.Info("processing file", "path", path, "turns", len(turns), "chunks", len(chunks), "source", fs.Source)

	var effectiveness float64
	var scored int
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fs, false, err
		}
		fs.Chunks++
		report.Chunks++
		if r.cfg.DryRun {
			continue
		}

		a, err := r.analyzer.Analyze(ctx, chunk.Turns, r.cfg.Simulate)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return fs, false, cerr
			}
			r.logger.Error("analysis failed", "ref", chunk.Ref, "error", err)
			state.AddError(fmt.Sprintf("analyze %s: %v", chunk.Ref, err))
			fs.Errors++
			report.Errors++
			continue
		}
		state.ChunksAnalyzed++
		for _, rec := range a.Records {
			if rec.ObjectionRaised {
				fs.Objections++
				state.ObjectionsFound++
			}
			effectiveness += rec.Effectiveness
			scored++
		}
		r.logger.Info("chunk analysed", "ref", chunk.Ref, "analysis_id", a.ID, "turns", len(a.Records))
	}
	if scored > 0 {
		fs.AvgEffectiveness = effectiveness / float64(scored)
	}
	if !r.cfg.DryRun && fs.Errors == 0 {
		state.Remember(fp)
	}
	return fs, false, nil
}

// postSummary posts the run summary to Slack, or logs it when no poster is
// configured.
func (r *Runner) postSummary(ctx context.Context, report *Report) {
	if len(report.Files) == 0 {
		return
	}
	text := FormatSummary(report)
	if r.poster == nil {
		r.logger.Info("backfill summary (no Slack configured)", "summary", text)
		return
	}
	if err := r.poster.PostMessage(ctx, "", text); err != nil {
		r.logger.Warn("failed to post backfill summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatSummary renders a report as a Slack mrkdwn message.
func FormatSummary(report *Report) string {
	var sb strings.Builder
	sb.WriteString("*Pitch Backfill Summary*")
	if report.DryRun {
		sb.WriteString(" _(dry run)_")
	}
	fmt.Fprintf(&sb, "\n%d files, %d chunks, %d duplicates skipped, %d errors\n",
		report.FilesProcessed, report.Chunks, report.Duplicates, report.Errors)

	for _, f := range report.Files {
		fmt.Fprintf(&sb, "  - %s [%s]: %d turns, %d chunks", filepath.Base(f.Path), f.Source, f.Turns, f.Chunks)
		if !report.DryRun {
			fmt.Fprintf(&sb, ", %d objections, %.0f%% avg effectiveness", f.Objections, f.AvgEffectiveness*100)
		}
		if f.Errors > 0 {
			fmt.Fprintf(&sb, " (%d errors)", f.Errors)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !info.IsDir() && Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking transcript dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}
