package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
	"github.com/MikeSquared-Agency/pitchcoach/internal/coach"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
	"github.com/MikeSquared-Agency/pitchcoach/internal/hermes"
	"github.com/MikeSquared-Agency/pitchcoach/internal/heuristic"
	"github.com/MikeSquared-Agency/pitchcoach/internal/llm"
	"github.com/MikeSquared-Agency/pitchcoach/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecorder struct {
	saved []*store.Analysis
	err   error
}

func (f *fakeRecorder) SaveAnalysis(_ context.Context, a *store.Analysis) error {
	f.saved = append(f.saved, a)
	return f.err
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{subject, data})
	return nil
}

var turns = []conversation.Turn{
	{Speaker: "Sales Rep", Text: "Can I schedule a demo of our platform for Thursday?"},
	{Speaker: "Customer", Text: "Maybe, but the budget is a concern."},
}

func simulatingCoach() *coach.Coach {
	return coach.New(nil, heuristic.New(heuristic.NewSource(11)), coach.Options{Provider: "gemini"}, nil, discardLogger())
}

func TestAnalyze_PersistsAndPublishes(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	p := New(simulatingCoach(), rec, pub, discardLogger())

	a, err := p.Analyze(context.Background(), turns, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected analysis ID")
	}
	if a.Mode != coach.ModeSimulate || a.Provider != "heuristic" {
		t.Errorf("expected simulate/heuristic, got %s/%s", a.Mode, a.Provider)
	}
	if len(rec.saved) != 1 || rec.saved[0] != a {
		t.Errorf("expected analysis to be saved once, got %d", len(rec.saved))
	}
	if len(pub.events) != 1 || pub.events[0].subject != hermes.SubjectAnalysisCompleted {
		t.Fatalf("expected one completion event, got %+v", pub.events)
	}
	evt := pub.events[0].data.(hermes.AnalysisCompleted)
	if evt.AnalysisID != a.ID.String() || evt.TurnCount != 2 || evt.SalesTurns != 1 {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.Objections != 1 {
		t.Errorf("expected 1 objection, got %d", evt.Objections)
	}
}

type fakeNotifier struct {
	posted []*store.Analysis
	err    error
}

func (f *fakeNotifier) PostAnalysisSummary(_ context.Context, a *store.Analysis) (string, error) {
	f.posted = append(f.posted, a)
	return "1.1", f.err
}

func TestAnalyze_NotifiesReviewers(t *testing.T) {
	n := &fakeNotifier{}
	p := New(simulatingCoach(), nil, nil, discardLogger())
	p.SetNotifier(n)

	a, err := p.Analyze(context.Background(), turns, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.posted) != 1 || n.posted[0] != a {
		t.Errorf("expected one summary posted, got %d", len(n.posted))
	}

	n.err = errors.New("slack down")
	if _, err := p.Analyze(context.Background(), turns, true); err != nil {
		t.Fatalf("expected success despite notifier failure, got %v", err)
	}
}

func TestAnalyze_PersistenceFailureDoesNotFail(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	p := New(simulatingCoach(), rec, nil, discardLogger())

	if _, err := p.Analyze(context.Background(), turns, true); err != nil {
		t.Fatalf("expected success despite store failure, got %v", err)
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	pub := &fakePublisher{}
	p := New(simulatingCoach(), nil, pub, discardLogger())

	_, err := p.Analyze(context.Background(), nil, false)
	if !errors.Is(err, conversation.ErrEmptyConversation) {
		t.Fatalf("expected ErrEmptyConversation, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Error("expected no events for rejected input")
	}
}

func TestAnalyze_ModelProvider(t *testing.T) {
	completer := llm.Func(func(context.Context, string) (string, error) {
		return "## Turn 1 - Sales Rep\n**What was said:** \"Hi\"\n\n## Overall AI Suggestion for this Conversation\n- Ask about the current tooling before pitching.", nil
	})
	c := coach.New(completer, nil, coach.Options{Provider: "anthropic"}, nil, discardLogger())
	a, err := New(c, nil, nil, discardLogger()).Analyze(context.Background(), turns, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Provider != "anthropic" || a.Mode != coach.ModeModel {
		t.Errorf("expected anthropic/model, got %s/%s", a.Provider, a.Mode)
	}
	if len(a.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(a.Records))
	}
}

func TestHandleAnalysisRequested_Transcript(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	p := New(simulatingCoach(), rec, pub, discardLogger())

	data, _ := json.Marshal(hermes.AnalysisRequested{
		RequestID:  "req-7",
		Transcript: "Sales Rep: Hi there, what brings you in?\nCustomer: We need better CRM automation.",
	})
	p.HandleAnalysisRequested(hermes.SubjectAnalysisRequested, data)

	if len(rec.saved) != 1 {
		t.Fatalf("expected 1 saved analysis, got %d", len(rec.saved))
	}
	if len(rec.saved[0].Conversation) != 2 {
		t.Errorf("expected 2 parsed turns, got %d", len(rec.saved[0].Conversation))
	}
	evt := pub.events[0].data.(hermes.AnalysisCompleted)
	if evt.RequestID != "req-7" {
		t.Errorf("expected request id req-7, got %q", evt.RequestID)
	}
}

func TestHandleAnalysisRequested_FailurePublished(t *testing.T) {
	pub := &fakePublisher{}
	p := New(simulatingCoach(), nil, pub, discardLogger())

	p.HandleAnalysisRequested(hermes.SubjectAnalysisRequested, []byte(`{"request_id":"req-8"}`))

	if len(pub.events) != 1 || pub.events[0].subject != hermes.SubjectAnalysisFailed {
		t.Fatalf("expected a failure event, got %+v", pub.events)
	}
	if pub.events[0].data.(hermes.AnalysisFailed).RequestID != "req-8" {
		t.Error("expected request id on failure event")
	}
}

func TestHandleAnalysisRequested_BadJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := New(simulatingCoach(), nil, pub, discardLogger())
	p.HandleAnalysisRequested(hermes.SubjectAnalysisRequested, []byte(`not json`))
	if len(pub.events) != 0 {
		t.Error("expected malformed requests to be dropped")
	}
}

func TestCompletedEvent(t *testing.T) {
	a := &store.Analysis{
		ID:   uuid.New(),
		Mode: coach.ModeModel,
		Records: []analysis.Record{
			{Speaker: "Sales Rep", Metrics: analysis.Metrics{Effectiveness: 0.4}, Probability: 0.3},
			{Speaker: "Customer", Metrics: analysis.Metrics{Effectiveness: 0.8, ObjectionRaised: true}, Probability: 0.6},
		},
		Advice: analysis.Advice{"One.", "Two."},
	}
	evt := CompletedEvent(a, "")
	if evt.SalesTurns != 1 || evt.Objections != 1 || evt.AdvicePoints != 2 {
		t.Errorf("unexpected counts %+v", evt)
	}
	if evt.AvgEffectiveness < 0.599 || evt.AvgEffectiveness > 0.601 {
		t.Errorf("expected avg effectiveness 0.6, got %f", evt.AvgEffectiveness)
	}
	if evt.FinalProbability != 0.6 {
		t.Errorf("expected final probability 0.6, got %f", evt.FinalProbability)
	}
}
