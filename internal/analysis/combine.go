package analysis

import (
	"strings"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

// Probability bands for the suggestion fallback, checked in order.
var suggestionBands = []struct {
	below float64
	text  string
}{
	{0.3, "The conversation is at risk: acknowledge the customer's concerns directly and ask what would need to change for this to work."},
	{0.5, "Build more value before moving forward by connecting the offer to a specific problem the customer described."},
	{0.7, "Momentum is building, so summarise the agreed benefits and propose a concrete next step."},
}

const (
	highBandSuggestion = "The customer is engaged; ask for a commitment such as a scheduled demo, trial, or proposal review."

	// GenericSuggestion is the last-resort text for sales turns that still
	// lack a suggestion after every other pass.
	GenericSuggestion = "Ask a clarifying question or highlight a benefit relevant to the customer's needs."
)

// BandSuggestion maps a closing probability to a fixed advisory sentence.
func BandSuggestion(probability float64) string {
	for _, b := range suggestionBands {
		if probability < b.below {
			return b.text
		}
	}
	return highBandSuggestion
}

// Combine joins content records and metrics records into one record per turn
// of the original conversation.
//
// Both inputs are keyed by their Turn field. Content supplies speaker, message
// and suggestion; metrics supply the scoring bundle and probability. A turn
// missing from either side degrades to the conversation's speaker and text or
// to DefaultMetrics respectively, so a failed upstream half never drops a
// turn. Probability falls back to effectiveness when the metrics record does
// not carry one. Entries whose turn falls outside the conversation are ignored.
func Combine(turns []conversation.Turn, content, metrics []Record) []Record {
	n := len(turns)
	contentByTurn := indexByTurn(content, n)
	metricsByTurn := indexByTurn(metrics, n)

	out := make([]Record, n)
	for i, turn := range turns {
		pos := i + 1
		rec := Record{
			Turn:    pos,
			Speaker: turn.Speaker,
			Message: turn.Text,
			Metrics: DefaultMetrics(),
		}

		if c, ok := contentByTurn[pos]; ok {
			if strings.TrimSpace(c.Speaker) != "" {
				rec.Speaker = strings.TrimSpace(c.Speaker)
			}
			if strings.TrimSpace(c.Message) != "" {
				rec.Message = strings.TrimSpace(c.Message)
			}
			rec.Suggestion = strings.TrimSpace(c.Suggestion)
		}

		if m, ok := metricsByTurn[pos]; ok {
			rec.Metrics = m.Metrics
			rec.Probability = m.Probability
		}

		rec.Metrics = rec.Metrics.Normalize()
		if rec.Probability <= 0 {
			rec.Probability = rec.Effectiveness
		}
		rec.Probability = Clamp(rec.Probability)

		if rec.Suggestion == "" && conversation.Classify(rec.Speaker) == conversation.SalesRole {
			rec.Suggestion = BandSuggestion(rec.Probability)
		}
		out[i] = rec
	}

	EnsureSuggestions(out)
	return out
}

// EnsureSuggestions guarantees every sales-role record carries a non-empty
// suggestion.
func EnsureSuggestions(records []Record) {
	for i := range records {
		if conversation.Classify(records[i].Speaker) != conversation.SalesRole {
			continue
		}
		if strings.TrimSpace(records[i].Suggestion) == "" {
			records[i].Suggestion = GenericSuggestion
		}
	}
}

func indexByTurn(records []Record, n int) map[int]Record {
	m := make(map[int]Record, len(records))
	for _, r := range records {
		if r.Turn < 1 || r.Turn > n {
			continue
		}
		if _, dup := m[r.Turn]; dup {
			continue
		}
		m[r.Turn] = r
	}
	return m
}
