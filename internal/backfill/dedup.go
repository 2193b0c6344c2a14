package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

// Fingerprint identifies a conversation by content, ignoring case and
// whitespace, so the same call exported in two formats is analysed once.
func Fingerprint(turns []conversation.Turn) string {
	h := sha256.New()
	for _, t := range turns {
		h.Write([]byte(normalize(t.Speaker)))
		h.Write([]byte{0})
		h.Write([]byte(normalize(t.Text)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
