package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

var runColumns = []string{
	"id", "location_id", "total_processed", "successful", "failed",
	"average_score", "used_llm", "tokens_used", "tokens_saved",
	"execution_time_ms", "created_at",
}

func TestFromResult(t *testing.T) {
	tokens := 320
	saved := 180
	result := &scoring.BulkScoringResult{
		RunID:          "run-1",
		TotalProcessed: 3,
		Successful:     2,
		Scores: []scoring.ScoredContact{
			{ContactID: "c1", Score: 80},
			{ContactID: "c2", Score: 40},
		},
		ExecutionTimeMS: 125,
		TokensUsed:      &tokens,
		TokensSaved:     &saved,
	}

	run := FromResult("loc-1", result)

	if run.ID != "run-1" || run.LocationID != "loc-1" {
		t.Errorf("identity = %q/%q", run.ID, run.LocationID)
	}
	if run.AverageScore != 60 {
		t.Errorf("AverageScore = %v, want 60", run.AverageScore)
	}
	if !run.UsedLLM {
		t.Error("UsedLLM should be true when token metrics present")
	}
}

func TestFromResultRulesOnly(t *testing.T) {
	run := FromResult("loc-1", &scoring.BulkScoringResult{RunID: "run-2"})
	if run.UsedLLM {
		t.Error("UsedLLM should be false without token metrics")
	}
	if run.AverageScore != 0 {
		t.Errorf("AverageScore = %v, want 0 for empty run", run.AverageScore)
	}
}

func TestSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	tokens := 100
	run := &ScoringRun{
		ID: "run-1", LocationID: "loc-1", TotalProcessed: 5, Successful: 5,
		AverageScore: 55.5, UsedLLM: true, TokensUsed: &tokens, ExecutionTimeMS: 200,
	}

	mock.ExpectExec("INSERT INTO scoring_runs").
		WithArgs("run-1", "loc-1", 5, 5, 0, 55.5, true, &tokens, nil, int64(200)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewScoringRunRepo(db)
	if err := repo.Save(context.Background(), run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSaveGeneratesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO scoring_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &ScoringRun{LocationID: "loc-1"}
	if err := NewScoringRunRepo(db).Save(context.Background(), run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if run.ID == "" {
		t.Error("Save should assign an ID when missing")
	}
}

func TestGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, location_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err = NewScoringRunRepo(db).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, location_id").
		WithArgs("loc-1", 10).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-2", "loc-1", 10, 8, 0, 62.5, true, 300, 150, int64(250), now).
			AddRow("run-1", "loc-1", 5, 5, 0, 48.0, false, nil, nil, int64(90), now.Add(-time.Hour)))

	runs, err := NewScoringRunRepo(db).List(context.Background(), "loc-1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-2" || !runs[0].UsedLLM {
		t.Errorf("first run = %+v", runs[0])
	}
	if runs[0].TokensUsed == nil || *runs[0].TokensUsed != 300 {
		t.Errorf("TokensUsed = %v", runs[0].TokensUsed)
	}
	if runs[1].TokensUsed != nil {
		t.Errorf("rules-only run TokensUsed = %v, want nil", runs[1].TokensUsed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
