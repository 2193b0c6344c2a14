package backfill

import "github.com/MikeSquared-Agency/pitchcoach/internal/conversation"

// FileSource indicates which loader produced a conversation.
type FileSource int

const (
	SourceText FileSource = iota
	SourceJSON
	SourceJSONL
)

func (s FileSource) String() string {
	switch s {
	case SourceJSON:
		return "json"
	case SourceJSONL:
		return "jsonl"
	default:
		return "text"
	}
}

// Chunk is a window of a long conversation analysed on its own.
type Chunk struct {
	Turns []conversation.Turn
	Ref   string // source file + chunk index
}

// FileSummary aggregates the analyses produced for one transcript file.
type FileSummary struct {
	Path             string
	Source           string
	Turns            int
	Chunks           int
	Objections       int
	AvgEffectiveness float64
	Errors           int
}

// Report is the outcome of a backfill run.
type Report struct {
	FilesProcessed int
	FilesSkipped   int
	Duplicates     int
	Chunks         int
	Errors         int
	DryRun         bool
	Files          []FileSummary
}
