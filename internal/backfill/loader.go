package backfill

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

// Supported reports whether path has an extension LoadFile understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".json", ".jsonl":
		return true
	}
	return false
}

// LoadFile reads a conversation from disk.
//
// Plain text and Markdown files are pasted transcripts. JSON files hold either
// a turn array, {"conversation": [...]} or {"transcript": "..."}. JSONL files
// carry one {"speaker","text"} turn per line.
func LoadFile(path string) ([]conversation.Turn, FileSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		turns, err := loadJSONL(path)
		return turns, SourceJSONL, err
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, SourceJSON, fmt.Errorf("read: %w", err)
		}
		turns, err := parseJSON(data)
		return turns, SourceJSON, err
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, SourceText, fmt.Errorf("read: %w", err)
		}
		return conversation.ParseTranscript(string(data)), SourceText, nil
	}
}

func parseJSON(data []byte) ([]conversation.Turn, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var turns []conversation.Turn
		if err := json.Unmarshal(data, &turns); err != nil {
			return nil, fmt.Errorf("parse turns: %w", err)
		}
		return turns, nil
	}

	var doc struct {
		Conversation []conversation.Turn `json:"conversation"`
		Transcript   string              `json:"transcript"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if len(doc.Conversation) > 0 {
		return doc.Conversation, nil
	}
	return conversation.ParseTranscript(doc.Transcript), nil
}

func loadJSONL(path string) ([]conversation.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var turns []conversation.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		var t conversation.Turn
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			continue
		}
		if strings.TrimSpace(t.Speaker) == "" || strings.TrimSpace(t.Text) == "" {
			continue
		}
		turns = append(turns, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return turns, nil
}
