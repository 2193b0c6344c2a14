package heuristic

import (
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

// Source yields uniform samples in [0,1).
type Source interface {
	Float64() float64
}

// NewSource returns a seeded Source that is safe for concurrent use. A zero
// seed seeds from the clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Engine synthesises metrics and coaching suggestions from keywords. It is
// safe for concurrent use when its Source is.
type Engine struct {
	src Source
}

func New(src Source) *Engine {
	if src == nil {
		src = NewSource(0)
	}
	return &Engine{src: src}
}

const (
	lowEngagement = 0.5
	lowClarity    = 0.5
)

// Suggestion templates, in priority order.
const (
	SuggestReframeValue  = "Acknowledge the concern, then reframe the conversation around the value and ROI the customer will get rather than the cost."
	SuggestReengage      = "Re-engage the customer with an open-ended question about their biggest challenge before continuing the pitch."
	SuggestNextStep      = "Propose a clear next step, such as scheduling a demo or a follow-up call, with a specific date and time."
	SuggestReinforce     = "Reinforce the value with a concrete example or metric from a similar customer to make the benefit tangible."
	SuggestTieToPain     = "Tie the solution back to a specific pain point the customer mentioned so the pitch feels relevant."
	SuggestFeatureDive   = "Go deeper on this feature by explaining the specific benefit it delivers for the customer's workflow."
	SuggestConfirmSteps  = "Confirm the next steps and timeline for the demo, trial, or proposal, and agree on who will be involved."
	SuggestLongTermValue = "Highlight the long-term value and how the solution scales as the customer's team and business grow."
	SuggestQualify       = "Ask a qualifying question to better understand the customer's needs, timeline, and decision process."

	// SuggestUnavailable accompanies the N/A result for a missing turn.
	SuggestUnavailable = "Data unavailable for this turn; no suggestion can be generated."
)

// NotAvailable is the literal rendered for every metric of a missing turn.
const NotAvailable = "N/A"

// Result is the heuristic output for one turn. When Available is false the
// metrics carry no meaning and render as "N/A".
type Result struct {
	Available  bool
	Role       conversation.Role
	Metrics    analysis.Metrics
	Suggestion string
}

// MarshalJSON renders unavailable results with literal N/A metrics.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Available {
		return json.Marshal(map[string]any{
			"sentiment":       NotAvailable,
			"engagement":      NotAvailable,
			"effectiveness":   NotAvailable,
			"objectionRaised": NotAvailable,
			"nextStepClarity": NotAvailable,
			"keyTopics":       []string{},
			"suggestion":      r.Suggestion,
		})
	}
	type plain struct {
		analysis.Metrics
		Suggestion string `json:"suggestion,omitempty"`
	}
	return json.Marshal(plain{Metrics: r.Metrics, Suggestion: r.Suggestion})
}

// Score scores the turn at idx within turns, each in "Speaker: text" form.
// Only sales-role turns receive a suggestion.
func (e *Engine) Score(turns []string, idx int) Result {
	if idx < 0 || idx >= len(turns) || strings.TrimSpace(turns[idx]) == "" {
		return Result{Suggestion: SuggestUnavailable}
	}

	speaker, text := conversation.SplitLine(turns[idx])
	if speaker == "" {
		// No colon: the whole line is both speaker token and message.
		speaker = text
	}
	role := conversation.Classify(speaker)
	msg := strings.ToLower(text)

	var m analysis.Metrics
	switch {
	case positivePattern.MatchString(msg):
		m.Sentiment = analysis.Positive
	case negativePattern.MatchString(msg):
		m.Sentiment = analysis.Negative
	default:
		m.Sentiment = analysis.Neutral
	}

	denom := len(turns) - 1
	if denom < 1 {
		denom = 1
	}
	engagement := 0.4 + float64(idx)/float64(denom)*0.5
	switch m.Sentiment {
	case analysis.Positive:
		engagement += 0.1
	case analysis.Negative:
		engagement -= 0.05
	}
	engagement += e.src.Float64()*0.05 - 0.02
	m.Engagement = analysis.Clamp(engagement)

	m.Effectiveness = 0.6 + e.src.Float64()*0.3

	m.ObjectionRaised = objectionPattern.MatchString(msg)

	if role == conversation.SalesRole && commitmentPattern.MatchString(msg) {
		m.NextStepClarity = analysis.Clamp(0.7 + e.src.Float64()*0.2)
	} else {
		m.NextStepClarity = analysis.Clamp(0.4 + e.src.Float64()*0.3)
	}

	m.KeyTopics = Topics(msg)

	res := Result{Available: true, Role: role, Metrics: m}
	if role == conversation.SalesRole {
		res.Suggestion = suggest(msg, m)
	}
	return res
}

func suggest(msg string, m analysis.Metrics) string {
	switch {
	case m.ObjectionRaised:
		return SuggestReframeValue
	case m.Sentiment == analysis.Negative && m.Engagement < lowEngagement:
		return SuggestReengage
	case m.NextStepClarity < lowClarity:
		return SuggestNextStep
	case valuePattern.MatchString(msg):
		return SuggestReinforce
	case pitchPattern.MatchString(msg) && !painPattern.MatchString(msg):
		return SuggestTieToPain
	case featurePattern.MatchString(msg):
		return SuggestFeatureDive
	case nextStepPattern.MatchString(msg):
		return SuggestConfirmSteps
	case growthPattern.MatchString(msg):
		return SuggestLongTermValue
	default:
		return SuggestQualify
	}
}

// Records scores every turn of a conversation and returns them as analysis
// records, with probability derived from effectiveness.
func (e *Engine) Records(turns []conversation.Turn) []analysis.Record {
	lines := conversation.Lines(turns)
	out := make([]analysis.Record, len(turns))
	for i, t := range turns {
		res := e.Score(lines, i)
		rec := analysis.Record{
			Turn:       i + 1,
			Speaker:    t.Speaker,
			Message:    t.Text,
			Metrics:    analysis.DefaultMetrics(),
			Suggestion: res.Suggestion,
		}
		if res.Available {
			rec.Metrics = res.Metrics
		}
		rec.Probability = rec.Effectiveness
		out[i] = rec
	}
	return out
}
