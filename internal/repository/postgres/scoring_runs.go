// Package postgres persists scoring run history against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

// ErrNotFound is returned when a scoring run does not exist.
var ErrNotFound = errors.New("scoring run not found")

// ScoringRun is the persisted summary of one bulk scoring run.
type ScoringRun struct {
	ID              string    `json:"id"`
	LocationID      string    `json:"location_id"`
	TotalProcessed  int       `json:"total_processed"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	AverageScore    float64   `json:"average_score"`
	UsedLLM         bool      `json:"used_llm"`
	TokensUsed      *int      `json:"tokens_used,omitempty"`
	TokensSaved     *int      `json:"tokens_saved,omitempty"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// ScoringRunRepo stores scoring run summaries.
type ScoringRunRepo struct{ db *sql.DB }

// NewScoringRunRepo creates a Postgres-backed scoring run repository.
func NewScoringRunRepo(db *sql.DB) *ScoringRunRepo { return &ScoringRunRepo{db: db} }

// FromResult builds a persistable summary from a bulk scoring result.
func FromResult(locationID string, result *scoring.BulkScoringResult) *ScoringRun {
	run := &ScoringRun{
		ID:              result.RunID,
		LocationID:      locationID,
		TotalProcessed:  result.TotalProcessed,
		Successful:      result.Successful,
		Failed:          result.Failed,
		UsedLLM:         result.TokensUsed != nil,
		TokensUsed:      result.TokensUsed,
		TokensSaved:     result.TokensSaved,
		ExecutionTimeMS: result.ExecutionTimeMS,
	}
	if len(result.Scores) > 0 {
		total := 0
		for _, s := range result.Scores {
			total += s.Score
		}
		run.AverageScore = float64(total) / float64(len(result.Scores))
	}
	return run
}

// Save inserts a scoring run summary.
func (r *ScoringRunRepo) Save(ctx context.Context, run *ScoringRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scoring_runs
			(id, location_id, total_processed, successful, failed,
			 average_score, used_llm, tokens_used, tokens_saved,
			 execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, run.ID, run.LocationID, run.TotalProcessed, run.Successful, run.Failed,
		run.AverageScore, run.UsedLLM, run.TokensUsed, run.TokensSaved,
		run.ExecutionTimeMS)
	if err != nil {
		return fmt.Errorf("insert scoring run: %w", err)
	}
	return nil
}

// Get returns one scoring run by ID.
func (r *ScoringRunRepo) Get(ctx context.Context, id string) (*ScoringRun, error) {
	run := &ScoringRun{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, location_id, total_processed, successful, failed,
		       average_score, used_llm, tokens_used, tokens_saved,
		       execution_time_ms, created_at
		FROM scoring_runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.LocationID, &run.TotalProcessed, &run.Successful, &run.Failed,
		&run.AverageScore, &run.UsedLLM, &run.TokensUsed, &run.TokensSaved,
		&run.ExecutionTimeMS, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scoring run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs for a location, newest first.
func (r *ScoringRunRepo) List(ctx context.Context, locationID string, limit int) ([]ScoringRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, location_id, total_processed, successful, failed,
		       average_score, used_llm, tokens_used, tokens_saved,
		       execution_time_ms, created_at
		FROM scoring_runs
		WHERE location_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scoring runs: %w", err)
	}
	defer rows.Close()

	var out []ScoringRun
	for rows.Next() {
		var run ScoringRun
		if err := rows.Scan(
			&run.ID, &run.LocationID, &run.TotalProcessed, &run.Successful, &run.Failed,
			&run.AverageScore, &run.UsedLLM, &run.TokensUsed, &run.TokensSaved,
			&run.ExecutionTimeMS, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scoring run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scoring runs: %w", err)
	}
	return out, nil
}
