package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

const unknownSpeaker = "Unknown"

// fieldRule extracts one field from a turn block. When pattern does not match,
// or set rejects the captured value, def is applied instead.
type fieldRule struct {
	name    string
	pattern *regexp.Regexp
	set     func(rec *analysis.Record, value string) bool
	def     func(rec *analysis.Record, fallback conversation.Turn)
}

// Value shapes that follow a "**Label:**" marker.
const (
	lineValue    = `([^\n]*)`
	percentValue = `(\d{1,3}(?:\.\d+)?[ \t]*%?)`
	blockValue   = `((?s:.+?))(?:\n[ \t]*\n|\n[ \t]*[-*•]|\n[ \t]*\*\*|\n[ \t]*[A-Za-z][A-Za-z /-]{0,40}:|\z)`
)

// labeled builds a tolerant pattern for "- **Label:** value" lines, accepting
// missing bullets, missing or misplaced bold markers and any letter case.
func labeled(label, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?\*{0,2}[ \t]*` + label + `[ \t]*\*{0,2}[ \t]*:[ \t]*\*{0,2}[ \t]*` + value)
}

var fieldRules = []fieldRule{
	{
		name:    "message",
		pattern: labeled(`What was said`, blockValue),
		set: func(rec *analysis.Record, v string) bool {
			rec.Message = unquote(v)
			return rec.Message != ""
		},
		def: func(rec *analysis.Record, fb conversation.Turn) { rec.Message = fb.Text },
	},
	{
		name:    "sentiment",
		pattern: labeled(`Sentiment`, lineValue),
		set: func(rec *analysis.Record, v string) bool {
			rec.Sentiment = analysis.ParseSentiment(v)
			return true
		},
		def: func(rec *analysis.Record, _ conversation.Turn) { rec.Sentiment = analysis.Neutral },
	},
	{
		name:    "engagement",
		pattern: labeled(`Engagement`, percentValue),
		set:     setPercent(func(r *analysis.Record, v float64) { r.Engagement = v }),
		def:     func(rec *analysis.Record, _ conversation.Turn) { rec.Engagement = 0.5 },
	},
	{
		name:    "effectiveness",
		pattern: labeled(`Effectiveness`, percentValue),
		set:     setPercent(func(r *analysis.Record, v float64) { r.Effectiveness = v }),
		def:     func(rec *analysis.Record, _ conversation.Turn) { rec.Effectiveness = 0.5 },
	},
	{
		name:    "objection",
		pattern: labeled(`Objections?[ \t]+Raised`, lineValue),
		set: func(rec *analysis.Record, v string) bool {
			v = strings.ToLower(v)
			rec.ObjectionRaised = strings.Contains(v, "yes") || strings.Contains(v, "true")
			return true
		},
		def: func(rec *analysis.Record, _ conversation.Turn) { rec.ObjectionRaised = false },
	},
	{
		name:    "next_step_clarity",
		pattern: labeled(`Next[ \t-]+Step[ \t]+Clarity`, percentValue),
		set:     setPercent(func(r *analysis.Record, v float64) { r.NextStepClarity = v }),
		def:     func(rec *analysis.Record, _ conversation.Turn) { rec.NextStepClarity = 0.5 },
	},
	{
		name:    "key_topics",
		pattern: labeled(`Key[ \t]+Topics`, blockValue),
		set: func(rec *analysis.Record, v string) bool {
			rec.KeyTopics = splitTopics(v)
			return true
		},
		def: func(rec *analysis.Record, _ conversation.Turn) { rec.KeyTopics = []string{} },
	},
	{
		name:    "sales_suggestion",
		pattern: labeled(`Sales[ \t]+Rep[ \t]+Suggestion`, blockValue),
		set:     setSuggestion,
		def:     func(*analysis.Record, conversation.Turn) {},
	},
	{
		name:    "general_suggestion",
		pattern: labeled(`General[ \t]+Suggestion`, blockValue),
		set: func(rec *analysis.Record, v string) bool {
			if rec.Suggestion != "" {
				return true
			}
			return setSuggestion(rec, v)
		},
		def: func(*analysis.Record, conversation.Turn) {},
	},
}

// ExtractTurn builds a record from one turn section. index is the 1-based
// position of the section and fallback the conversation turn at that
// position, used for any field the block does not supply. The suggestion is
// left empty when the block has none. ExtractTurn never fails.
func ExtractTurn(sec Section, index int, fallback conversation.Turn) analysis.Record {
	rec := analysis.Record{Turn: index}

	switch {
	case sec.Speaker != "":
		rec.Speaker = sec.Speaker
	case strings.TrimSpace(fallback.Speaker) != "":
		rec.Speaker = fallback.Speaker
	default:
		rec.Speaker = unknownSpeaker
	}

	for _, r := range fieldRules {
		if m := r.pattern.FindStringSubmatch(sec.Body); m != nil && r.set(&rec, strings.TrimSpace(m[1])) {
			continue
		}
		r.def(&rec, fallback)
	}

	rec.Metrics = rec.Metrics.Normalize()
	rec.Probability = rec.Effectiveness
	return rec
}

// ExtractTurns runs ExtractTurn over every section, pairing sections with
// conversation turns by position.
func ExtractTurns(sections []Section, turns []conversation.Turn) []analysis.Record {
	out := make([]analysis.Record, len(sections))
	for i, sec := range sections {
		var fb conversation.Turn
		if i < len(turns) {
			fb = turns[i]
		}
		out[i] = ExtractTurn(sec, i+1, fb)
	}
	return out
}

// Parse splits a completion and extracts every turn record and the merged
// overall advice.
func Parse(text string, turns []conversation.Turn) ([]analysis.Record, analysis.Advice) {
	doc := Split(text)
	return ExtractTurns(doc.Sections, turns), MergeAdvice(doc.Advice)
}

// setPercent accepts "75%", "75" and fractions such as "0.75". A value
// without a percent sign is a fraction only when it carries a decimal point
// and is at most 1.
func setPercent(assign func(*analysis.Record, float64)) func(*analysis.Record, string) bool {
	return func(rec *analysis.Record, v string) bool {
		pct := strings.HasSuffix(v, "%")
		num := strings.TrimSpace(strings.TrimSuffix(v, "%"))
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return false
		}
		if pct || !strings.Contains(num, ".") || n > 1 {
			n /= 100
		}
		assign(rec, analysis.Clamp(n))
		return true
	}
}

var placeholder = regexp.MustCompile(`(?i)^(n/?a|none|null|-|no suggestion\.?)$`)

func setSuggestion(rec *analysis.Record, v string) bool {
	v = collapse(unquote(v))
	if v == "" || placeholder.MatchString(v) {
		return false
	}
	rec.Suggestion = v
	return true
}

func splitTopics(v string) []string {
	v = strings.Trim(collapse(v), "[]")
	var topics []string
	for _, t := range strings.Split(v, ",") {
		t = strings.Trim(strings.TrimSpace(t), ".*")
		if t == "" || placeholder.MatchString(t) {
			continue
		}
		topics = append(topics, t)
	}
	return analysis.DedupeTopics(topics)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”‘’`)
	return strings.TrimSpace(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
