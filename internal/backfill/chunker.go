package backfill

import (
	"fmt"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

const (
	defaultMaxChunkTurns = 40
	minTailTurns         = 4
)

// ChunkConversation splits a long conversation into windows of at most
// maxTurns turns. A tail shorter than minTailTurns joins the previous window.
func ChunkConversation(turns []conversation.Turn, ref string, maxTurns int) []Chunk {
	if len(turns) == 0 {
		return nil
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxChunkTurns
	}

	var bounds [][2]int
	for start := 0; start < len(turns); start += maxTurns {
		end := min(start+maxTurns, len(turns))
		if n := len(bounds); n > 0 && end-start < minTailTurns {
			bounds[n-1][1] = end
			break
		}
		bounds = append(bounds, [2]int{start, end})
	}

	chunks := make([]Chunk, len(bounds))
	for i, b := range bounds {
		c := Chunk{
			Turns: make([]conversation.Turn, b[1]-b[0]),
			Ref:   fmt.Sprintf("%s#chunk-%d", ref, i),
		}
		copy(c.Turns, turns[b[0]:b[1]])
		chunks[i] = c
	}
	return chunks
}
