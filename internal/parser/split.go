package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	turnHeader   = regexp.MustCompile(`(?mi)^[ \t]*#{2,4}[ \t]*\**[ \t]*Turn[ \t]+(\d+)([^\n]*)$`)
	adviceHeader = regexp.MustCompile(`(?mi)^[ \t]*#{2,4}[ \t]*\**[ \t]*Overall AI Suggestion[^\n]*$`)
)

// Section is one per-turn block of a model completion.
type Section struct {
	Number  int    // number printed in the header, 0 when unreadable
	Speaker string // speaker printed in the header, if any
	Body    string
}

// Document is a completion segmented into turn sections and the trailing
// overall-advice block.
type Document struct {
	Sections []Section
	Advice   string
}

// Split segments a raw completion on its "## Turn N - Speaker" headers. Text
// before the first header is discarded, and everything after the
// "## Overall AI Suggestion" header becomes the advice block. A completion
// without headers yields no sections.
func Split(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var doc Document
	if loc := adviceHeader.FindStringIndex(text); loc != nil {
		doc.Advice = strings.TrimSpace(text[loc[1]:])
		text = text[:loc[0]]
	}

	matches := turnHeader.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		n, _ := strconv.Atoi(text[m[2]:m[3]])
		doc.Sections = append(doc.Sections, Section{
			Number:  n,
			Speaker: headerSpeaker(text[m[4]:m[5]]),
			Body:    text[m[1]:end],
		})
	}
	return doc
}

// Misnumbered returns the 1-based positions of sections whose header number
// differs from their position. Records are numbered by position, so a gap
// here usually means the model skipped or merged a turn.
func (d Document) Misnumbered() []int {
	var out []int
	for i, sec := range d.Sections {
		if sec.Number != 0 && sec.Number != i+1 {
			out = append(out, i+1)
		}
	}
	return out
}

// headerSpeaker cleans the remainder of a header line, e.g. " - Sales Rep**".
func headerSpeaker(rest string) string {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimLeft(rest, "-–—:* \t")
	rest = strings.TrimRight(rest, "* \t")
	return strings.TrimSpace(rest)
}
