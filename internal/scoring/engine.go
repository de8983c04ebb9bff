package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/lead-intelligence/internal/crm"
	"github.com/ignite/lead-intelligence/internal/pkg/logger"
	"github.com/ignite/lead-intelligence/internal/toon"
)

// ErrProviderRequired is returned by operations that have no rules-based
// fallback when no model provider is attached.
var ErrProviderRequired = errors.New("LLM provider required for pattern analysis")

// llmBatchFields is the column order for batches handed to the model.
var llmBatchFields = []string{
	"id", "name", "email_opens", "page_views", "form_fills",
	"appointments_completed", "days_since_last_activity",
	"total_revenue", "opportunities_won",
}

// Engine is the scoring orchestrator. It owns no state across calls
// except the attached model provider, which may be swapped at runtime.
type Engine struct {
	enricher      *Enricher
	opportunities OpportunitySource
	conversions   ConversionSource

	mu       sync.RWMutex
	provider LLMProvider

	now func() time.Time
}

// NewEngine wires the orchestrator over its collaborators. conversions
// and provider may be nil; operations that need them fail loudly when
// they are missing.
func NewEngine(contacts ContactSource, opportunities OpportunitySource, conversions ConversionSource, cache ContactCache, provider LLMProvider) *Engine {
	return &Engine{
		enricher:      NewEnricher(contacts, cache),
		opportunities: opportunities,
		conversions:   conversions,
		provider:      provider,
		now:           time.Now,
	}
}

// SetLLMProvider attaches or replaces the model provider. Passing nil
// detaches it and every operation degrades to its rules-based path.
func (e *Engine) SetLLMProvider(p LLMProvider) {
	e.mu.Lock()
	e.provider = p
	e.mu.Unlock()
}

func (e *Engine) llmProvider() LLMProvider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider
}

// ScoreContacts runs the full scoring pipeline for a location. Model
// unavailability never fails the run: any error on the LLM branch is
// logged and the rules-only scores are returned instead, with token
// metrics omitted.
func (e *Engine) ScoreContacts(ctx context.Context, opts LeadScoringOptions) (*BulkScoringResult, error) {
	start := e.now()

	enriched, err := e.enricher.GetEnrichedContacts(ctx, opts.LocationID, EnrichmentFilters{
		Tags:       opts.Tags,
		AssignedTo: opts.AssignedTo,
		Limit:      opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("enriching contacts: %w", err)
	}

	scores := CalculateRulesBasedScores(enriched)

	var tokensUsed, tokensSaved *int
	if opts.UseLLM {
		if provider := e.llmProvider(); provider != nil {
			blended, used, saved, llmErr := e.scoreWithLLM(ctx, provider, enriched, scores, opts.Model)
			if llmErr != nil {
				logger.Warn("LLM scoring failed, using rules-based scores",
					"location_id", opts.LocationID, "error", llmErr.Error())
			} else {
				scores = blended
				tokensUsed = &used
				tokensSaved = &saved
			}
		}
	}

	if opts.MinScore != nil {
		filtered := make([]ScoredContact, 0, len(scores))
		for _, s := range scores {
			if s.Score >= *opts.MinScore {
				filtered = append(filtered, s)
			}
		}
		scores = filtered
	}

	if opts.IncludeEnrichedData {
		byID := make(map[string]*EnrichedContact, len(enriched))
		for i := range enriched {
			byID[enriched[i].ID] = &enriched[i]
		}
		for i := range scores {
			scores[i].EnrichedData = byID[scores[i].ContactID]
		}
	}

	return &BulkScoringResult{
		RunID:           uuid.New().String(),
		TotalProcessed:  len(enriched),
		Successful:      len(scores),
		Failed:          0,
		Scores:          scores,
		ExecutionTimeMS: e.now().Sub(start).Milliseconds(),
		TokensUsed:      tokensUsed,
		TokensSaved:     tokensSaved,
	}, nil
}

// scoreWithLLM encodes the batch, asks the provider to score it and
// blends the result into the rules scores. Any failure abandons the
// whole branch.
func (e *Engine) scoreWithLLM(ctx context.Context, provider LLMProvider, enriched []EnrichedContact, rulesScores []ScoredContact, model string) ([]ScoredContact, int, int, error) {
	encoded, err := encodeContacts(enriched)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encoding contact batch: %w", err)
	}

	llmScores, err := provider.ScoreLeads(ctx, encoded.EncodedText, LLMOptions{Model: model})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("scoring leads with provider: %w", err)
	}

	tokensUsed := len(encoded.EncodedText) / 4
	return BlendScores(rulesScores, llmScores), tokensUsed, encoded.SizeMetrics.EstimatedTokensSaved, nil
}

// GetLeadInsights aggregates rules scores and historical conversions
// for a location. The model is never consulted here so the report stays
// reproducible.
func (e *Engine) GetLeadInsights(ctx context.Context, locationID string, rng DateRange) (*LeadInsights, error) {
	enriched, err := e.enricher.GetEnrichedContacts(ctx, locationID, EnrichmentFilters{DateRange: &rng})
	if err != nil {
		return nil, fmt.Errorf("enriching contacts: %w", err)
	}

	scores := CalculateRulesBasedScores(enriched)

	var conversions []ConversionRecord
	if e.conversions != nil {
		conversions, err = e.conversions.GetConversions(ctx, locationID, rng)
		if err != nil {
			return nil, fmt.Errorf("fetching conversions: %w", err)
		}
	}

	return buildInsights(locationID, enriched, scores, conversions), nil
}

// AnalyzeConversionPatterns delegates historical conversion analysis to
// the model provider. There is no rules-based fallback.
func (e *Engine) AnalyzeConversionPatterns(ctx context.Context, locationID string, rng DateRange) (*ConversionPatterns, error) {
	provider := e.llmProvider()
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if e.conversions == nil {
		return nil, errors.New("conversion source not configured")
	}

	conversions, err := e.conversions.GetConversions(ctx, locationID, rng)
	if err != nil {
		return nil, fmt.Errorf("fetching conversions: %w", err)
	}

	encoded, err := encodeConversions(conversions)
	if err != nil {
		return nil, fmt.Errorf("encoding conversion batch: %w", err)
	}

	patterns, err := provider.AnalyzePatterns(ctx, encoded.EncodedText)
	if err != nil {
		return nil, fmt.Errorf("analyzing patterns with provider: %w", err)
	}
	return patterns, nil
}

// PredictDealClose predicts the close outlook for one opportunity,
// delegating to the provider when attached and falling back to the
// rules heuristic otherwise.
func (e *Engine) PredictDealClose(ctx context.Context, opportunityID string) (*DealClosePrediction, error) {
	opp, err := e.opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("fetching opportunity %s: %w", opportunityID, err)
	}

	provider := e.llmProvider()
	if provider == nil {
		return predictWithRules(opp, e.now()), nil
	}

	encoded, err := encodeOpportunity(opp)
	if err != nil {
		return nil, fmt.Errorf("encoding opportunity: %w", err)
	}

	prediction, err := provider.PredictDealClose(ctx, encoded.EncodedText)
	if err != nil {
		return nil, fmt.Errorf("predicting deal close with provider: %w", err)
	}
	return prediction, nil
}

// ExportScores scores a location's contacts and returns the batch in
// the compact encoding, along with its size metrics.
func (e *Engine) ExportScores(ctx context.Context, opts LeadScoringOptions) (*toon.Result, error) {
	result, err := e.ScoreContacts(ctx, opts)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]interface{}, 0, len(result.Scores))
	for _, s := range result.Scores {
		rec := map[string]interface{}{
			"contact_id": s.ContactID,
			"score":      s.Score,
			"engagement": s.Factors.Engagement,
			"behavioral": s.Factors.Behavioral,
			"recency":    s.Factors.Recency,
		}
		if s.Prediction != nil {
			rec["conversion_probability"] = s.Prediction.ConversionProbability
			rec["estimated_days_to_conversion"] = s.Prediction.EstimatedDaysToConversion
		}
		records = append(records, rec)
	}

	encoded, err := toon.Encode(records, toon.Options{
		Fields: []string{
			"contact_id", "score", "engagement", "behavioral", "recency",
			"conversion_probability", "estimated_days_to_conversion",
		},
		LengthMarker: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding scores: %w", err)
	}
	return encoded, nil
}

func encodeContacts(contacts []EnrichedContact) (*toon.Result, error) {
	records := make([]map[string]interface{}, 0, len(contacts))
	for _, c := range contacts {
		records = append(records, map[string]interface{}{
			"id":                       c.ID,
			"name":                     c.Name,
			"email_opens":              c.EmailOpens,
			"page_views":               c.PageViews,
			"form_fills":               c.FormFills,
			"appointments_completed":   c.AppointmentsCompleted,
			"days_since_last_activity": c.DaysSinceLastActivity,
			"total_revenue":            c.TotalRevenue,
			"opportunities_won":        c.OpportunitiesWon,
		})
	}
	return toon.Encode(records, toon.Options{Fields: llmBatchFields, LengthMarker: true})
}

func encodeConversions(conversions []ConversionRecord) (*toon.Result, error) {
	records := make([]map[string]interface{}, 0, len(conversions))
	for _, c := range conversions {
		records = append(records, map[string]interface{}{
			"contact_id":             c.ContactID,
			"days_to_conversion":     c.DaysToConversion,
			"email_opens":            c.EmailOpens,
			"email_clicks":           c.EmailClicks,
			"page_views":             c.PageViews,
			"form_fills":             c.FormFills,
			"appointments_completed": c.AppointmentsCompleted,
			"tags":                   c.Tags,
			"source":                 c.Source,
			"deal_value":             c.DealValue,
		})
	}
	return toon.Encode(records, toon.Options{
		Fields: []string{
			"contact_id", "days_to_conversion", "email_opens", "email_clicks",
			"page_views", "form_fills", "appointments_completed", "tags",
			"source", "deal_value",
		},
		LengthMarker: true,
	})
}

func encodeOpportunity(opp *crm.Opportunity) (*toon.Result, error) {
	daysInStage := 0
	if opp.LastStageChangeAt != nil {
		daysInStage = opp.DaysInStage(time.Now())
	}
	record := map[string]interface{}{
		"id":             opp.ID,
		"name":           opp.Name,
		"status":         opp.Status,
		"monetary_value": opp.MonetaryValue,
		"pipeline_stage": opp.PipelineStageName,
		"days_in_stage":  daysInStage,
	}
	return toon.Encode([]map[string]interface{}{record}, toon.Options{
		Fields: []string{"id", "name", "status", "monetary_value", "pipeline_stage", "days_in_stage"},
	})
}
