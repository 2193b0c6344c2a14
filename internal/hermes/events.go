package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

const (
	// SubjectAnalysisRequested carries conversations to analyse asynchronously.
	SubjectAnalysisRequested = "swarm.pitchcoach.analysis.requested"
	// SubjectAnalysisCompleted is emitted after every completed analysis.
	SubjectAnalysisCompleted = "swarm.pitchcoach.analysis.completed"
	// SubjectAnalysisFailed is emitted when a requested analysis cannot run.
	SubjectAnalysisFailed = "swarm.pitchcoach.analysis.failed"
)

// AnalysisRequested asks for a conversation to be analysed. Either
// Conversation or Transcript must be set.
type AnalysisRequested struct {
	RequestID    string              `json:"request_id"`
	Conversation []conversation.Turn `json:"conversation,omitempty"`
	Transcript   string              `json:"transcript,omitempty"`
	Simulate     bool                `json:"simulate,omitempty"`
}

// AnalysisCompleted summarises a finished analysis for downstream consumers.
type AnalysisCompleted struct {
	AnalysisID       string    `json:"analysis_id"`
	RequestID        string    `json:"request_id,omitempty"`
	Provider         string    `json:"provider"`
	Mode             string    `json:"mode"`
	TurnCount        int       `json:"turn_count"`
	SalesTurns       int       `json:"sales_turns"`
	Objections       int       `json:"objections"`
	AvgEffectiveness float64   `json:"avg_effectiveness"`
	FinalProbability float64   `json:"final_probability"`
	AdvicePoints     int       `json:"advice_points"`
	CompletedAt      time.Time `json:"completed_at"`
}

// AnalysisFailed reports a requested analysis that returned an error.
type AnalysisFailed struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}
