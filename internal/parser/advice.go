package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
)

const (
	// MinAdviceWords is the shortest advice point kept on its own.
	MinAdviceWords = 5
	// MinReplyPoints is the fewest lines a free-form reply must have before
	// it is split into separate points.
	MinReplyPoints = 4
)

var (
	bulletMarker = regexp.MustCompile(`^(?:[-•][ \t]*|\*[ \t]+|\d+[.)][ \t]*)`)
	sentenceEnd  = regexp.MustCompile(`[.!?]["'”’)\]]*$`)
)

// MergeAdvice turns an advice block into complete-sentence points.
//
// Bulleted text is grouped so that each bullet line starts a point and any
// other line continues the current one, then fragments are repaired by
// MergeFragments. Text without bullet markers is split per line only when it
// has at least MinReplyPoints lines; shorter replies are kept whole.
func MergeAdvice(block string) analysis.Advice {
	block = strings.TrimSpace(strings.ReplaceAll(block, "\r\n", "\n"))
	if block == "" {
		return analysis.Advice{}
	}

	var (
		candidates []string
		bulleted   bool
	)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := bulletMarker.FindStringIndex(line); loc != nil {
			bulleted = true
			candidates = append(candidates, line[loc[1]:])
			continue
		}
		if bulleted && len(candidates) > 0 {
			candidates[len(candidates)-1] += " " + line
			continue
		}
		candidates = append(candidates, line)
	}

	if !bulleted && len(candidates) < MinReplyPoints {
		return analysis.Advice{collapse(block)}
	}
	return MergeFragments(candidates)
}

// MergeFragments joins items that are not complete sentences with the item
// after them. An item is complete when it has at least MinAdviceWords words,
// ends in terminal punctuation and is not followed by an item starting in
// lowercase. A short trailing item is folded into its predecessor. Applying
// MergeFragments to its own output returns it unchanged.
func MergeFragments(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, it := range items {
		if it = collapse(it); it != "" {
			cleaned = append(cleaned, it)
		}
	}

	out := make([]string, 0, len(cleaned))
	for i := 0; i < len(cleaned); i++ {
		point := cleaned[i]
		for i < len(cleaned)-1 && incomplete(point, cleaned[i+1]) {
			point += " " + cleaned[i+1]
			i++
		}
		out = append(out, point)
	}

	if n := len(out); n > 1 && wordCount(out[n-1]) < MinAdviceWords {
		out[n-2] += " " + out[n-1]
		out = out[:n-1]
	}
	return out
}

func incomplete(point, next string) bool {
	return wordCount(point) < MinAdviceWords ||
		!sentenceEnd.MatchString(point) ||
		startsLower(next)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}
