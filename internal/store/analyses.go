package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/pitchcoach/internal/analysis"
	"github.com/MikeSquared-Agency/pitchcoach/internal/conversation"
)

// Analysis is one persisted conversation analysis.
type Analysis struct {
	ID           uuid.UUID           `json:"id"`
	CreatedAt    time.Time           `json:"createdAt"`
	Provider     string              `json:"provider"`
	Mode         string              `json:"mode"`
	Conversation []conversation.Turn `json:"conversation"`
	Records      []analysis.Record   `json:"analysis"`
	Advice       analysis.Advice     `json:"overallAdvice"`
}

// Summary is the listing view of an analysis.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Provider  string    `json:"provider"`
	Mode      string    `json:"mode"`
	TurnCount int       `json:"turnCount"`
}

// SaveAnalysis inserts a. A zero ID or CreatedAt is filled in.
func (s *Store) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	conv, err := json.Marshal(a.Conversation)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	records, err := json.Marshal(a.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	advice, err := json.Marshal(a.Advice)
	if err != nil {
		return fmt.Errorf("marshal advice: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (id, created_at, provider, mode, turn_count, conversation, records, advice)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CreatedAt, a.Provider, a.Mode, len(a.Conversation), conv, records, advice,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis returns the analysis with the given ID, or ErrNotFound.
func (s *Store) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	a := &Analysis{ID: id}
	var conv, records, advice []byte
	err := s.pool.QueryRow(ctx, `
		SELECT created_at, provider, mode, conversation, records, advice
		FROM analyses WHERE id = $1`, id,
	).Scan(&a.CreatedAt, &a.Provider, &a.Mode, &conv, &records, &advice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	if err := json.Unmarshal(conv, &a.Conversation); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if err := json.Unmarshal(records, &a.Records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	if err := json.Unmarshal(advice, &a.Advice); err != nil {
		return nil, fmt.Errorf("unmarshal advice: %w", err)
	}
	return a, nil
}

// List sizes for ListAnalyses.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListAnalyses returns the most recent analyses, newest first. A non-positive
// limit means DefaultListLimit; larger limits are capped at MaxListLimit.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]Summary, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, provider, mode, turn_count
		FROM analyses ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.Provider, &sum.Mode, &sum.TurnCount); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
