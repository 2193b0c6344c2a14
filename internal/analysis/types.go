package analysis

import "strings"

// Sentiment is the coarse valence of a turn.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// ParseSentiment normalises free text to a Sentiment, defaulting to Neutral.
func ParseSentiment(s string) Sentiment {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "positive"):
		return Positive
	case strings.Contains(s, "negative"):
		return Negative
	default:
		return Neutral
	}
}

const defaultScore = 0.5

// Metrics is the per-turn scoring bundle.
type Metrics struct {
	Sentiment       Sentiment `json:"sentiment"`
	Engagement      float64   `json:"engagement"`
	Effectiveness   float64   `json:"effectiveness"`
	ObjectionRaised bool      `json:"objectionRaised"`
	NextStepClarity float64   `json:"nextStepClarity"`
	KeyTopics       []string  `json:"keyTopics"`
}

// DefaultMetrics is the bundle used when nothing better is known.
func DefaultMetrics() Metrics {
	return Metrics{
		Sentiment:       Neutral,
		Engagement:      defaultScore,
		Effectiveness:   defaultScore,
		NextStepClarity: defaultScore,
		KeyTopics:       []string{},
	}
}

// Normalize clamps every score into [0,1] and fills zero-value fields.
func (m Metrics) Normalize() Metrics {
	if m.Sentiment == "" {
		m.Sentiment = Neutral
	}
	m.Engagement = Clamp(m.Engagement)
	m.Effectiveness = Clamp(m.Effectiveness)
	m.NextStepClarity = Clamp(m.NextStepClarity)
	m.KeyTopics = DedupeTopics(m.KeyTopics)
	return m
}

// Record is the canonical per-turn output.
type Record struct {
	Turn    int    `json:"turn"`
	Speaker string `json:"speaker"`
	Message string `json:"message"`
	Metrics
	Suggestion  string  `json:"suggestion,omitempty"`
	Probability float64 `json:"probability"`
}

// Advice is the conversation-level list of complete-sentence recommendations.
type Advice []string

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DedupeTopics trims labels and drops empties and case-insensitive duplicates,
// keeping the first spelling seen. It never returns nil.
func DedupeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
