// Package store persists scoring history. The scoring core never touches
// it; the HTTP and CLI layers record results after scoring.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a score record does not exist.
var ErrNotFound = eris.New("store: not found")

// Score record kinds.
const (
	KindSimple        = "simple"
	KindParticipation = "participation"
	KindNearby        = "nearby"
)

// ScoreRecord is one persisted scoring result.
type ScoreRecord struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	BusinessID string          `json:"business_id"`
	Name       string          `json:"name,omitempty"`
	PostalCode string          `json:"postal_code,omitempty"`
	Score      float64         `json:"score"`
	Retained   float64         `json:"retained"`
	PAF        float64         `json:"paf"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ScoreFilter specifies criteria for listing score records.
type ScoreFilter struct {
	BusinessID string `json:"business_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Summary aggregates the score history.
type Summary struct {
	Total           int     `json:"total"`
	AverageScore    float64 `json:"average_score"`
	AverageRetained float64 `json:"average_retained"`
	AveragePAF      float64 `json:"average_paf"`
}

// Store defines the persistence interface for score history.
type Store interface {
	SaveScore(ctx context.Context, rec *ScoreRecord) error
	SaveScores(ctx context.Context, recs []ScoreRecord) (int64, error)
	GetScore(ctx context.Context, id string) (*ScoreRecord, error)
	ListScores(ctx context.Context, filter ScoreFilter) ([]ScoreRecord, error)
	Summary(ctx context.Context) (*Summary, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// prepare assigns an id and timestamp to a record that lacks them.
func prepare(rec *ScoreRecord, now time.Time) error {
	if rec.BusinessID == "" {
		return eris.New("store: business id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	if rec.Kind == "" {
		rec.Kind = KindSimple
	}
	if len(rec.Result) == 0 {
		rec.Result = json.RawMessage("{}")
	}
	return nil
}

func listLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
