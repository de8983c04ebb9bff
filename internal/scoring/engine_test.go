package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/lead-intelligence/internal/crm"
)

type stubOpportunitySource struct {
	opp *crm.Opportunity
	err error
}

func (s *stubOpportunitySource) GetOpportunity(ctx context.Context, id string) (*crm.Opportunity, error) {
	return s.opp, s.err
}

type stubConversionSource struct {
	records []ConversionRecord
	err     error
}

func (s *stubConversionSource) GetConversions(ctx context.Context, locationID string, rng DateRange) ([]ConversionRecord, error) {
	return s.records, s.err
}

type stubProvider struct {
	scores     []LLMScore
	patterns   *ConversionPatterns
	prediction *DealClosePrediction
	err        error

	gotBatch string
}

func (p *stubProvider) ScoreLeads(ctx context.Context, encodedBatch string, opts LLMOptions) ([]LLMScore, error) {
	p.gotBatch = encodedBatch
	return p.scores, p.err
}

func (p *stubProvider) AnalyzePatterns(ctx context.Context, encodedBatch string) (*ConversionPatterns, error) {
	p.gotBatch = encodedBatch
	return p.patterns, p.err
}

func (p *stubProvider) PredictDealClose(ctx context.Context, encodedRecord string) (*DealClosePrediction, error) {
	p.gotBatch = encodedRecord
	return p.prediction, p.err
}

func activeContacts(now time.Time) []crm.Contact {
	return []crm.Contact{
		{ID: "c1", FirstName: "Alice", LocationID: "loc-1", DateUpdated: timePtr(now.AddDate(0, 0, -2))},
		{ID: "c2", FirstName: "Bob", LocationID: "loc-1", DateUpdated: timePtr(now.AddDate(0, 0, -20))},
		{ID: "c3", FirstName: "Carol", LocationID: "loc-1"},
	}
}

func TestScoreContactsRulesOnly(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	engine := NewEngine(source, nil, nil, nil, nil)

	result, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Len(t, result.Scores, 3)
	assert.Nil(t, result.TokensUsed)
	assert.Nil(t, result.TokensSaved)
	assert.NotEmpty(t, result.RunID)
	for _, s := range result.Scores {
		assert.GreaterOrEqual(t, s.Score, 0)
		assert.LessOrEqual(t, s.Score, 100)
		assert.Nil(t, s.EnrichedData)
	}
}

func TestScoreContactsLLMBlends(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	provider := &stubProvider{scores: []LLMScore{
		{ContactID: "c1", Score: 100, Reasoning: "high intent"},
	}}
	engine := NewEngine(source, nil, nil, nil, provider)

	rulesOnly, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)

	result, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1", UseLLM: true})
	require.NoError(t, err)

	require.NotNil(t, result.TokensUsed)
	require.NotNil(t, result.TokensSaved)
	assert.Positive(t, *result.TokensUsed)
	assert.Contains(t, provider.gotBatch, "email_opens")
	assert.Contains(t, provider.gotBatch, "c1")

	// c1's score moved toward the model's 100; the others are untouched.
	assert.NotEqual(t, rulesOnly.Scores[0].Score, result.Scores[0].Score)
	assert.Equal(t, rulesOnly.Scores[1].Score, result.Scores[1].Score)
	assert.Equal(t, 0.9, result.Scores[0].Prediction.Confidence)
}

func TestScoreContactsLLMFailureFallsBack(t *testing.T) {
	now := time.Now()
	source := &stubContactSource{contacts: activeContacts(now)}
	engine := NewEngine(source, nil, nil, nil, &stubProvider{err: errors.New("model overloaded")})

	withLLM, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1", UseLLM: true})
	require.NoError(t, err, "LLM failure must never fail the run")

	source2 := &stubContactSource{contacts: activeContacts(now)}
	rulesOnly, err := NewEngine(source2, nil, nil, nil, nil).
		ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)

	assert.Nil(t, withLLM.TokensUsed)
	assert.Nil(t, withLLM.TokensSaved)
	require.Len(t, withLLM.Scores, len(rulesOnly.Scores))
	for i := range withLLM.Scores {
		assert.Equal(t, rulesOnly.Scores[i].Score, withLLM.Scores[i].Score)
		assert.Equal(t, rulesOnly.Scores[i].Prediction.Confidence, withLLM.Scores[i].Prediction.Confidence)
	}
}

func TestScoreContactsNoProviderIgnoresUseLLM(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	engine := NewEngine(source, nil, nil, nil, nil)

	result, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1", UseLLM: true})
	require.NoError(t, err)
	assert.Nil(t, result.TokensUsed)
}

func TestScoreContactsMinScoreInclusive(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	engine := NewEngine(source, nil, nil, nil, nil)

	all, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)

	// Pick one of the actual scores as the boundary.
	boundary := all.Scores[1].Score
	minScore := boundary
	filtered, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{
		LocationID: "loc-1",
		MinScore:   &minScore,
	})
	require.NoError(t, err)

	found := false
	for _, s := range filtered.Scores {
		require.GreaterOrEqual(t, s.Score, boundary)
		if s.Score == boundary {
			found = true
		}
	}
	assert.True(t, found, "boundary score must be retained (inclusive filter)")
	assert.Equal(t, 3, filtered.TotalProcessed, "totalProcessed reflects enriched count, not filtered")
}

func TestScoreContactsIncludeEnrichedData(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	engine := NewEngine(source, nil, nil, nil, nil)

	result, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{
		LocationID:          "loc-1",
		IncludeEnrichedData: true,
	})
	require.NoError(t, err)
	for _, s := range result.Scores {
		require.NotNil(t, s.EnrichedData)
		assert.Equal(t, s.ContactID, s.EnrichedData.ID)
	}
}

func TestScoreContactsEnrichmentErrorFatal(t *testing.T) {
	source := &stubContactSource{err: errors.New("crm timeout")}
	engine := NewEngine(source, nil, nil, nil, nil)

	_, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enriching contacts")
}

func TestScoreContactsEmptyPopulation(t *testing.T) {
	source := &stubContactSource{}
	engine := NewEngine(source, nil, nil, nil, nil)

	result, err := engine.ScoreContacts(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)
	assert.Zero(t, result.TotalProcessed)
	assert.Zero(t, result.Successful)
	assert.Empty(t, result.Scores)
}

func TestGetLeadInsights(t *testing.T) {
	now := time.Now()
	source := &stubContactSource{contacts: []crm.Contact{
		{ID: "c1", LocationID: "loc-1", Tags: []string{"vip"}, DateUpdated: timePtr(now.AddDate(0, 0, -2))},
		{ID: "c2", LocationID: "loc-1", Tags: []string{"vip"}, DateUpdated: timePtr(now.AddDate(0, 0, -10))},
	}}
	conversions := &stubConversionSource{records: []ConversionRecord{
		{ContactID: "c1", DaysToConversion: 12, Tags: []string{"vip"}},
	}}
	engine := NewEngine(source, nil, conversions, nil, nil)

	rng := DateRange{Start: now.AddDate(0, 0, -30), End: now}
	insights, err := engine.GetLeadInsights(context.Background(), "loc-1", rng)
	require.NoError(t, err)

	assert.Equal(t, "loc-1", insights.LocationID)
	assert.Equal(t, 2, insights.TotalLeads)
	assert.Equal(t, 0.5, insights.ConversionRate)
	assert.Equal(t, 12.0, insights.AverageTimeToConversion)
	require.NotEmpty(t, insights.TopPerformingTags)
	assert.Equal(t, "vip", insights.TopPerformingTags[0].Tag)
}

func TestGetLeadInsightsEmptyRange(t *testing.T) {
	engine := NewEngine(&stubContactSource{}, nil, &stubConversionSource{}, nil, nil)

	insights, err := engine.GetLeadInsights(context.Background(), "loc-1", DateRange{
		Start: time.Now().AddDate(0, 0, -7),
		End:   time.Now(),
	})
	require.NoError(t, err)
	assert.Zero(t, insights.TotalLeads)
	assert.Zero(t, insights.AverageScore)
	assert.Zero(t, insights.ConversionRate)
}

func TestAnalyzeConversionPatternsRequiresProvider(t *testing.T) {
	engine := NewEngine(&stubContactSource{}, nil, &stubConversionSource{}, nil, nil)

	_, err := engine.AnalyzeConversionPatterns(context.Background(), "loc-1", DateRange{})
	require.ErrorIs(t, err, ErrProviderRequired)
}

func TestAnalyzeConversionPatterns(t *testing.T) {
	conversions := &stubConversionSource{records: []ConversionRecord{
		{ContactID: "c1", DaysToConversion: 9, Source: "webinar"},
	}}
	provider := &stubProvider{patterns: &ConversionPatterns{
		CommonTraits: []string{"attended webinar"},
		Summary:      "webinar attendees convert fastest",
	}}
	engine := NewEngine(&stubContactSource{}, nil, conversions, nil, provider)

	patterns, err := engine.AnalyzeConversionPatterns(context.Background(), "loc-1", DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "webinar attendees convert fastest", patterns.Summary)
	assert.Contains(t, provider.gotBatch, "days_to_conversion")
}

func TestPredictDealCloseFallback(t *testing.T) {
	now := time.Now()
	opps := &stubOpportunitySource{opp: &crm.Opportunity{
		ID: "opp-1", Status: "open", LastStageChangeAt: timePtr(now.AddDate(0, 0, -45)),
	}}
	engine := NewEngine(&stubContactSource{}, opps, nil, nil, nil)

	p, err := engine.PredictDealClose(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.CloseProbability, 1e-9)
	assert.Equal(t, 0.6, p.Confidence)
	assert.Len(t, p.RiskFactors, 1)
	assert.Len(t, p.Accelerators, 1)
}

func TestPredictDealCloseWithProvider(t *testing.T) {
	opps := &stubOpportunitySource{opp: &crm.Opportunity{ID: "opp-1", Status: "open"}}
	provider := &stubProvider{prediction: &DealClosePrediction{
		OpportunityID:    "opp-1",
		CloseProbability: 0.82,
		Confidence:       0.88,
	}}
	engine := NewEngine(&stubContactSource{}, opps, nil, nil, provider)

	p, err := engine.PredictDealClose(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 0.82, p.CloseProbability, "provider result returned verbatim")
	assert.Contains(t, provider.gotBatch, "opp-1")
}

func TestPredictDealCloseFetchError(t *testing.T) {
	opps := &stubOpportunitySource{err: crm.ErrNotFound}
	engine := NewEngine(&stubContactSource{}, opps, nil, nil, nil)

	_, err := engine.PredictDealClose(context.Background(), "missing")
	require.ErrorIs(t, err, crm.ErrNotFound)
}

func TestSetLLMProvider(t *testing.T) {
	engine := NewEngine(&stubContactSource{}, nil, &stubConversionSource{}, nil, nil)

	_, err := engine.AnalyzeConversionPatterns(context.Background(), "loc-1", DateRange{})
	require.ErrorIs(t, err, ErrProviderRequired)

	engine.SetLLMProvider(&stubProvider{patterns: &ConversionPatterns{}})
	_, err = engine.AnalyzeConversionPatterns(context.Background(), "loc-1", DateRange{})
	require.NoError(t, err)

	engine.SetLLMProvider(nil)
	_, err = engine.AnalyzeConversionPatterns(context.Background(), "loc-1", DateRange{})
	require.ErrorIs(t, err, ErrProviderRequired)
}

func TestExportScores(t *testing.T) {
	source := &stubContactSource{contacts: activeContacts(time.Now())}
	engine := NewEngine(source, nil, nil, nil, nil)

	result, err := engine.ExportScores(context.Background(), LeadScoringOptions{LocationID: "loc-1"})
	require.NoError(t, err)
	assert.Contains(t, result.EncodedText, "#3\n")
	assert.Contains(t, result.EncodedText, "contact_id|score")
	assert.Contains(t, result.EncodedText, "c1")
}
