package conversation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyConversation = errors.New("conversation is empty")
	ErrInvalidTurn       = errors.New("invalid turn")
)

// Turn is a single utterance in a sales conversation.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Role is the semantic classification of a speaker.
type Role int

const (
	Unknown Role = iota
	SalesRole
	CustomerRole
)

func (r Role) String() string {
	switch r {
	case SalesRole:
		return "sales_rep"
	case CustomerRole:
		return "customer"
	default:
		return "unknown"
	}
}

// Classify maps free-text speaker labels onto a Role by substring match.
func Classify(speaker string) Role {
	s := strings.ToLower(speaker)
	switch {
	case strings.Contains(s, "sales"):
		return SalesRole
	case strings.Contains(s, "customer"):
		return CustomerRole
	default:
		return Unknown
	}
}

// String renders the turn in "Speaker: text" form.
func (t Turn) String() string {
	return t.Speaker + ": " + t.Text
}

// Validate rejects conversations the analysis pipeline must never see.
func Validate(turns []Turn) error {
	if len(turns) == 0 {
		return ErrEmptyConversation
	}
	for i, t := range turns {
		if strings.TrimSpace(t.Speaker) == "" {
			return fmt.Errorf("turn %d: missing speaker: %w", i+1, ErrInvalidTurn)
		}
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("turn %d: missing text: %w", i+1, ErrInvalidTurn)
		}
	}
	return nil
}

// Lines renders every turn in "Speaker: text" form.
func Lines(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.String()
	}
	return out
}

// Format renders turns as a newline-separated transcript suitable for a prompt.
func Format(turns []Turn) string {
	return strings.Join(Lines(turns), "\n")
}
