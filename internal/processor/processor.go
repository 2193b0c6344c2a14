package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/hermes"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
)

// Recorder persists completed analyses.
type Recorder interface {
	SaveAnalysis(ctx context.Context, a *store.Analysis) error
}

// Publisher emits events on the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts a digest of completed analyses for human review.
type Notifier interface {
	PostAnalysisSummary(ctx context.Context, a *store.Analysis) (string, error)
}

// Processor runs an analysis end to end: coach pipeline, persistence and
// completion event. Recorder, Publisher and Notifier are optional; their
// failures are logged and never fail the analysis.
type Processor struct {
	coach    *coach.Coach
	recorder Recorder
	events   Publisher
	notifier Notifier
	logger   *slog.Logger
}

func New(c *coach.Coach, rec Recorder, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{coach: c, recorder: rec, events: pub, logger: logger}
}

// SetNotifier enables review digests for every completed analysis.
func (p *Processor) SetNotifier(n Notifier) {
	p.notifier = n
}

// Analyze analyses turns, or simulates when simulate is set or no model is
// configured.
func (p *Processor) Analyze(ctx context.Context, turns []conversation.Turn, simulate bool) (*store.Analysis, error) {
	return p.run(ctx, "", turns, simulate)
}

func (p *Processor) run(ctx context.Context, requestID string, turns []conversation.Turn, simulate bool) (*store.Analysis, error) {
	var (
		res *coach.Result
		err error
	)
	if simulate {
		res, err = p.coach.Simulate(turns)
	} else {
		res, err = p.coach.Analyze(ctx, turns)
	}
	if err != nil {
		return nil, err
	}

	provider := p.coach.Options().Provider
	if res.Mode == coach.ModeSimulate {
		provider = "heuristic"
	}
	a := &store.Analysis{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		Provider:     provider,
		Mode:         res.Mode,
		Conversation: turns,
		Records:      res.Analysis,
		Advice:       res.OverallAdvice,
	}

	if p.recorder != nil {
		if err := p.recorder.SaveAnalysis(ctx, a); err != nil {
			p.logger.Error("failed to persist analysis", "analysis_id", a.ID, "error", err)
		}
	}
	p.publish(hermes.SubjectAnalysisCompleted, CompletedEvent(a, requestID))

	if p.notifier != nil {
		if _, err := p.notifier.PostAnalysisSummary(ctx, a); err != nil {
			p.logger.Warn("failed to post analysis summary", "analysis_id", a.ID, "error", err)
		}
	}

	p.logger.Info("analysis complete",
		"analysis_id", a.ID,
		"mode", a.Mode,
		"turns", len(a.Records),
		"advice_points", len(a.Advice),
	)
	return a, nil
}

// HandleAnalysisRequested is the NATS handler for swarm.pitchcoach.analysis.requested.
func (p *Processor) HandleAnalysisRequested(subject string, data []byte) {
	ctx := context.Background()

	var req hermes.AnalysisRequested
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse analysis request", "error", err)
		return
	}

	turns := req.Conversation
	if len(turns) == 0 && req.Transcript != "" {
		turns = conversation.ParseTranscript(req.Transcript)
	}

	p.logger.Info("processing analysis request", "request_id", req.RequestID, "turns", len(turns))

	if _, err := p.run(ctx, req.RequestID, turns, req.Simulate); err != nil {
		p.logger.Error("analysis request failed", "request_id", req.RequestID, "error", err)
		p.publish(hermes.SubjectAnalysisFailed, hermes.AnalysisFailed{RequestID: req.RequestID, Error: errorMessage(err)})
	}
}

func (p *Processor) publish(subject string, evt any) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(subject, evt); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// CompletedEvent summarises a for the completion event.
func CompletedEvent(a *store.Analysis, requestID string) hermes.AnalysisCompleted {
	evt := hermes.AnalysisCompleted{
		AnalysisID:   a.ID.String(),
		RequestID:    requestID,
		Provider:     a.Provider,
		Mode:         a.Mode,
		TurnCount:    len(a.Records),
		AdvicePoints: len(a.Advice),
		CompletedAt:  a.CreatedAt,
	}
	var total float64
	for _, r := range a.Records {
		if conversation.Classify(r.Speaker) == conversation.SalesRole {
			evt.SalesTurns++
		}
		if r.ObjectionRaised {
			evt.Objections++
		}
		total += r.Effectiveness
	}
	if n := len(a.Records); n > 0 {
		evt.AvgEffectiveness = total / float64(n)
		evt.FinalProbability = a.Records[n-1].Probability
	}
	return evt
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyConversation), errors.Is(err, conversation.ErrInvalidTurn):
		return "invalid conversation: " + err.Error()
	default:
		return err.Error()
	}
}
