package conversation

import (
	"regexp"
	"strings"
)

const (
	defaultSalesSpeaker    = "Sales Rep"
	defaultCustomerSpeaker = "Customer"
)

var labeledLine = regexp.MustCompile(`(?i)^(sales rep|customer)\s*:`)

// ParseTranscript turns a pasted multi-line transcript into turns.
//
// Lines starting with "Sales Rep:" or "Customer:" keep their speaker. Any other
// non-blank line is assigned alternately, starting with the sales rep, based on
// its position among the non-blank lines.
func ParseTranscript(text string) []Turn {
	var turns []Turn
	idx := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if labeledLine.MatchString(line) {
			speaker, rest, _ := strings.Cut(line, ":")
			turns = append(turns, Turn{
				Speaker: strings.TrimSpace(speaker),
				Text:    strings.TrimSpace(rest),
			})
		} else {
			speaker := defaultSalesSpeaker
			if idx%2 == 1 {
				speaker = defaultCustomerSpeaker
			}
			turns = append(turns, Turn{Speaker: speaker, Text: line})
		}
		idx++
	}
	return turns
}

// SplitLine separates a "Speaker: text" line on its first colon. A line
// without a colon yields an empty speaker and the whole line as text.
func SplitLine(line string) (speaker, text string) {
	s, t, ok := strings.Cut(line, ":")
	if !ok {
		return "", strings.TrimSpace(line)
	}
	return strings.TrimSpace(s), strings.TrimSpace(t)
}
