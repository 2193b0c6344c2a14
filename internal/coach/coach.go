package coach

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/heuristic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/parser"
	"github.com/MikeSquared-Agency/pitchcoach/internal/telemetry"
)

// Where per-turn metrics come from.
const (
	MetricsFromModel     = "model"
	MetricsFromHeuristic = "heuristic"
)

// Analysis modes reported on results.
const (
	ModeModel    = "model"
	ModeSimulate = "simulate"
)

// NoAdvice is the single advice point used when no advice could be produced.
const NoAdvice = "No specific advice could be generated for this conversation."

type Options struct {
	Provider              string
	MetricsSource         string
	PerTurnSuggestions    bool
	SuggestionConcurrency int
}

// Result is a complete conversation analysis.
type Result struct {
	Mode          string            `json:"-"`
	Analysis      []analysis.Record `json:"analysis"`
	OverallAdvice analysis.Advice   `json:"overallAdvice"`
}

// Coach runs the analysis pipeline: prompt the model, parse its completions,
// combine content with metrics and fill every gap from fallbacks. A Coach
// without a Completer only simulates.
type Coach struct {
	llm     llm.Completer
	engine  *heuristic.Engine
	opts    Options
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func New(completer llm.Completer, engine *heuristic.Engine, opts Options, metrics *telemetry.Metrics, logger *slog.Logger) *Coach {
	if opts.MetricsSource == "" {
		opts.MetricsSource = MetricsFromModel
	}
	if opts.SuggestionConcurrency <= 0 {
		opts.SuggestionConcurrency = 1
	}
	if engine == nil {
		engine = heuristic.New(nil)
	}
	return &Coach{llm: completer, engine: engine, opts: opts, metrics: metrics, logger: logger}
}

// Simulating reports whether the coach runs without a model.
func (c *Coach) Simulating() bool { return c.llm == nil }

func (c *Coach) Options() Options { return c.opts }

// Analyze produces one record per turn plus overall advice. Content and
// metrics are requested concurrently; if one of them fails the other still
// yields full records with defaults in place of the missing half. An error is
// returned only for invalid input or when no upstream data is available.
func (c *Coach) Analyze(ctx context.Context, turns []conversation.Turn) (*Result, error) {
	if err := conversation.Validate(turns); err != nil {
		return nil, err
	}
	if c.Simulating() {
		return c.Simulate(turns)
	}

	var (
		g                      errgroup.Group
		contentText            string
		contentErr, metricsErr error
		metricsRecords         []analysis.Record
	)
	g.Go(func() error {
		contentText, contentErr = c.complete(ctx, "content", contentPrompt(turns))
		return nil
	})
	g.Go(func() error {
		metricsRecords, metricsErr = c.metricsRecords(ctx, turns)
		return nil
	})
	g.Wait()

	if contentErr != nil && metricsErr != nil {
		return nil, errors.Join(contentErr, metricsErr)
	}

	var (
		contentRecords []analysis.Record
		advice         analysis.Advice
	)
	if contentErr == nil {
		contentRecords, advice = c.parse("content", contentText, turns)
		if len(contentRecords) != len(turns) {
			c.logger.Debug("content sections do not match turns", "sections", len(contentRecords), "turns", len(turns))
		}
	} else {
		c.metrics.ObserveFallback("content")
	}
	if metricsErr != nil {
		c.metrics.ObserveFallback("default_metrics")
	}

	records := analysis.Combine(turns, contentRecords, metricsRecords)

	if c.opts.PerTurnSuggestions {
		c.enrichSuggestions(ctx, turns, records)
	}

	if len(advice) == 0 {
		c.metrics.ObserveFallback("advice_request")
		fetched, err := c.Advice(ctx, turns)
		if err != nil || len(fetched) == 0 {
			fetched = analysis.Advice{NoAdvice}
		}
		advice = fetched
	}

	c.metrics.ObserveAnalysis(ModeModel)
	return &Result{Mode: ModeModel, Analysis: records, OverallAdvice: advice}, nil
}

// Metrics returns scored records only, from the model's metrics completion or
// the heuristic engine depending on configuration.
func (c *Coach) Metrics(ctx context.Context, turns []conversation.Turn) ([]analysis.Record, error) {
	if err := conversation.Validate(turns); err != nil {
		return nil, err
	}
	recs, err := c.metricsRecords(ctx, turns)
	if err != nil {
		return nil, err
	}
	return analysis.Combine(turns, nil, recs), nil
}

func (c *Coach) metricsRecords(ctx context.Context, turns []conversation.Turn) ([]analysis.Record, error) {
	if c.Simulating() || c.opts.MetricsSource == MetricsFromHeuristic {
		return c.engine.Records(turns), nil
	}
	text, err := c.complete(ctx, "metrics", metricsPrompt(turns))
	if err != nil {
		return nil, err
	}
	recs, _ := c.parse("metrics", text, turns)
	return recs, nil
}

// parse is parser.Parse with a debug trace of sections whose printed turn
// number disagrees with their position.
func (c *Coach) parse(step, text string, turns []conversation.Turn) ([]analysis.Record, analysis.Advice) {
	doc := parser.Split(text)
	if off := doc.Misnumbered(); len(off) > 0 {
		c.logger.Debug("turn headers out of sequence", "step", step, "positions", off, "sections", len(doc.Sections))
	}
	return parser.ExtractTurns(doc.Sections, turns), parser.MergeAdvice(doc.Advice)
}

// Advice asks the model for conversation-level advice and merges the reply
// into complete-sentence points. Replies may be Markdown or a JSON object with
// a "points" array.
func (c *Coach) Advice(ctx context.Context, turns []conversation.Turn) (analysis.Advice, error) {
	if err := conversation.Validate(turns); err != nil {
		return nil, err
	}
	if c.Simulating() {
		return simulatedAdvice(c.engine.Records(turns)), nil
	}
	reply, err := c.complete(ctx, "advice", advicePrompt(turns))
	if err != nil {
		return nil, err
	}
	return parseAdviceReply(reply), nil
}

// Simulate analyses a conversation with the heuristic engine only.
func (c *Coach) Simulate(turns []conversation.Turn) (*Result, error) {
	if err := conversation.Validate(turns); err != nil {
		return nil, err
	}
	scored := c.engine.Records(turns)
	records := analysis.Combine(turns, scored, scored)
	c.metrics.ObserveAnalysis(ModeSimulate)
	return &Result{Mode: ModeSimulate, Analysis: records, OverallAdvice: simulatedAdvice(records)}, nil
}

// Chat answers a free-form sales question, optionally with extra context such
// as a transcript.
func (c *Coach) Chat(ctx context.Context, message, background string) (string, error) {
	if c.Simulating() {
		return heuristic.SuggestQualify, nil
	}
	reply, err := c.complete(ctx, "chat", chatPrompt(message, background))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

type suggestionTask struct {
	index  int
	prompt string
}

// enrichSuggestions replaces the suggestion of every sales-rep record with a
// dedicated completion that sees the conversation up to that turn. Failed
// requests keep the existing suggestion.
func (c *Coach) enrichSuggestions(ctx context.Context, turns []conversation.Turn, records []analysis.Record) {
	var tasks []suggestionTask
	for i, rec := range records {
		if conversation.Classify(rec.Speaker) == conversation.SalesRole {
			tasks = append(tasks, suggestionTask{index: i, prompt: suggestionPrompt(turns[:i+1])})
		}
	}
	if len(tasks) == 0 {
		return
	}

	replies := make([]string, len(records))
	var g errgroup.Group
	g.SetLimit(c.opts.SuggestionConcurrency)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			text, err := c.complete(ctx, "suggestion", task.prompt)
			if err != nil {
				return nil
			}
			replies[task.index] = cleanSuggestion(text)
			return nil
		})
	}
	g.Wait()

	for i, reply := range replies {
		if reply != "" {
			records[i].Suggestion = reply
		}
	}
	analysis.EnsureSuggestions(records)
}

func (c *Coach) complete(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	text, err := c.llm.Complete(ctx, prompt)
	c.metrics.ObserveUpstream(op, time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Warn("completion failed", "op", op, "provider", c.opts.Provider, "error", err)
		return "", &llm.UpstreamError{Provider: c.opts.Provider, Op: op, Err: err}
	}
	return text, nil
}

func cleanSuggestion(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimPrefix(text, "**Suggestion:**")
	text = strings.TrimPrefix(text, "Suggestion:")
	return strings.Trim(strings.TrimSpace(text), `"`)
}

func parseAdviceReply(reply string) analysis.Advice {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))

	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Points []string `json:"points"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && len(payload.Points) > 0 {
			return analysis.Advice(parser.MergeFragments(payload.Points))
		}
	}
	return parser.MergeAdvice(reply)
}

// simulatedAdvice lists the distinct sales-rep suggestions in turn order.
func simulatedAdvice(records []analysis.Record) analysis.Advice {
	seen := make(map[string]bool)
	advice := analysis.Advice{}
	for _, r := range records {
		if conversation.Classify(r.Speaker) != conversation.SalesRole || r.Suggestion == "" || seen[r.Suggestion] {
			continue
		}
		seen[r.Suggestion] = true
		advice = append(advice, r.Suggestion)
	}
	if len(advice) == 0 {
		advice = append(advice, heuristic.SuggestQualify)
	}
	return advice
}
