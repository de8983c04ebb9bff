// Package api exposes the scoring engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/lead-intelligence/internal/crm"
	"github.com/ignite/lead-intelligence/internal/pkg/logger"
	"github.com/ignite/lead-intelligence/internal/repository/postgres"
	"github.com/ignite/lead-intelligence/internal/scoring"
	"github.com/ignite/lead-intelligence/internal/storage"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	engine    *scoring.Engine
	runs      *postgres.ScoringRunRepo
	snapshots storage.SnapshotStore
}

// NewHandlers creates a Handlers instance over the scoring engine.
func NewHandlers(engine *scoring.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// SetRunRepo sets the scoring run history repository.
func (h *Handlers) SetRunRepo(repo *postgres.ScoringRunRepo) {
	h.runs = repo
}

// SetSnapshotStore sets the insight snapshot store.
func (h *Handlers) SetSnapshotStore(store storage.SnapshotStore) {
	h.snapshots = store
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleScoreContacts runs a bulk scoring request.
// POST /api/scoring/score
func (h *Handlers) HandleScoreContacts(w http.ResponseWriter, r *http.Request) {
	var opts scoring.LeadScoringOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if opts.LocationID == "" {
		respondError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	result, err := h.engine.ScoreContacts(r.Context(), opts)
	if err != nil {
		logger.Error("scoring run failed", "location_id", opts.LocationID, "error", err.Error())
		respondError(w, http.StatusBadGateway, "scoring failed: upstream contact fetch error")
		return
	}

	if h.runs != nil {
		if err := h.runs.Save(r.Context(), postgres.FromResult(opts.LocationID, result)); err != nil {
			logger.Warn("saving scoring run failed", "run_id", result.RunID, "error", err.Error())
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleGetInsights builds the insight report for a location.
// GET /api/scoring/insights?location_id=...&start=...&end=...
func (h *Handlers) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		respondError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	rng, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	insights, err := h.engine.GetLeadInsights(r.Context(), locationID, rng)
	if err != nil {
		logger.Error("insight aggregation failed", "location_id", locationID, "error", err.Error())
		respondError(w, http.StatusBadGateway, "insight aggregation failed")
		return
	}

	if h.snapshots != nil {
		if key, err := h.snapshots.SaveInsights(r.Context(), insights); err != nil {
			logger.Warn("insight snapshot failed", "location_id", locationID, "error", err.Error())
		} else {
			w.Header().Set("X-Snapshot-Key", key)
		}
	}

	respondJSON(w, http.StatusOK, insights)
}

// HandleAnalyzePatterns runs model-backed conversion pattern analysis.
// POST /api/scoring/patterns
func (h *Handlers) HandleAnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocationID string    `json:"location_id"`
		Start      time.Time `json:"start"`
		End        time.Time `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LocationID == "" {
		respondError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	patterns, err := h.engine.AnalyzeConversionPatterns(r.Context(), req.LocationID, scoring.DateRange{
		Start: req.Start,
		End:   req.End,
	})
	if err != nil {
		if errors.Is(err, scoring.ErrProviderRequired) {
			respondError(w, http.StatusPreconditionFailed, err.Error())
			return
		}
		logger.Error("pattern analysis failed", "location_id", req.LocationID, "error", err.Error())
		respondError(w, http.StatusBadGateway, "pattern analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, patterns)
}

// HandlePredictDeal predicts the close outlook for one opportunity.
// GET /api/opportunities/{id}/prediction
func (h *Handlers) HandlePredictDeal(w http.ResponseWriter, r *http.Request) {
	opportunityID := chi.URLParam(r, "id")

	prediction, err := h.engine.PredictDealClose(r.Context(), opportunityID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			respondError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		logger.Error("deal prediction failed", "opportunity_id", opportunityID, "error", err.Error())
		respondError(w, http.StatusBadGateway, "deal prediction failed")
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

// HandleExport scores a location's contacts and returns the compact
// encoding with its size metrics.
// POST /api/scoring/export
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	var opts scoring.LeadScoringOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if opts.LocationID == "" {
		respondError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	result, err := h.engine.ExportScores(r.Context(), opts)
	if err != nil {
		logger.Error("export failed", "location_id", opts.LocationID, "error", err.Error())
		respondError(w, http.StatusBadGateway, "export failed")
		return
	}

	if h.snapshots != nil {
		if key, err := h.snapshots.SaveExport(r.Context(), opts.LocationID, result.EncodedText); err != nil {
			logger.Warn("export snapshot failed", "location_id", opts.LocationID, "error", err.Error())
		} else {
			w.Header().Set("X-Snapshot-Key", key)
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleListRuns returns recent scoring runs for a location.
// GET /api/scoring/runs?location_id=...&limit=...
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusNotImplemented, "run history not configured")
		return
	}

	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		respondError(w, http.StatusBadRequest, "location_id is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.List(r.Context(), locationID, limit)
	if err != nil {
		logger.Error("listing scoring runs failed", "location_id", locationID, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "listing scoring runs failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// parseDateRange extracts start/end query parameters, defaulting to the
// last 30 days.
func parseDateRange(r *http.Request) (scoring.DateRange, error) {
	now := time.Now()
	rng := scoring.DateRange{Start: now.AddDate(0, 0, -30), End: now}

	if v := r.URL.Query().Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return rng, errors.New("invalid start: expected RFC3339 timestamp")
		}
		rng.Start = start
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return rng, errors.New("invalid end: expected RFC3339 timestamp")
		}
		rng.End = end
	}
	if rng.End.Before(rng.Start) {
		return rng, errors.New("end must not precede start")
	}
	return rng, nil
}
