// Package scoring contains the lead scoring and predictive analytics
// engine: contact enrichment, rules-based scoring, LLM score blending,
// insight aggregation and deal close prediction.
package scoring

import (
	"context"
	"time"

	"github.com/ignite/lead-intelligence/internal/crm"
)

// daysSinceSentinel marks contacts with no update timestamp as
// "effectively cold / never seen".
const daysSinceSentinel = 999

// EnrichedContact is a contact normalized for scoring, built fresh per
// request from a CRM fetch and discarded afterward.
type EnrichedContact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	LocationID string `json:"location_id"`

	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`

	EmailOpens  int `json:"email_opens"`
	EmailClicks int `json:"email_clicks"`
	PageViews   int `json:"page_views"`
	FormFills   int `json:"form_fills"`

	Conversations         int `json:"conversations"`
	AppointmentsScheduled int `json:"appointments_scheduled"`
	AppointmentsCompleted int `json:"appointments_completed"`
	AppointmentsNoShow    int `json:"appointments_no_show"`

	OpportunityCount  int    `json:"opportunity_count"`
	OpportunitiesWon  int    `json:"opportunities_won"`
	OpportunitiesLost int    `json:"opportunities_lost"`
	CurrentStage      string `json:"current_stage,omitempty"`

	TotalRevenue      float64 `json:"total_revenue"`
	TransactionCount  int     `json:"transaction_count"`
	AverageOrderValue float64 `json:"average_order_value"`

	DaysSinceLastActivity int        `json:"days_since_last_activity"`
	LastActivityDate      *time.Time `json:"last_activity_date,omitempty"`
	LastActivityType      string     `json:"last_activity_type,omitempty"`

	CreatedAt      *time.Time `json:"created_at,omitempty"`
	LifecycleStage string     `json:"lifecycle_stage,omitempty"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
}

// LeadScoringFactors breaks a score into its three weighted buckets.
// The sum of the buckets, capped at 100, equals the overall score.
type LeadScoringFactors struct {
	Engagement float64 `json:"engagement"`
	Behavioral float64 `json:"behavioral"`
	Recency    float64 `json:"recency"`
}

// Prediction carries the conversion outlook attached to a scored contact.
type Prediction struct {
	ConversionProbability     float64  `json:"conversion_probability"`
	Confidence                float64  `json:"confidence"`
	EstimatedDaysToConversion int      `json:"estimated_days_to_conversion"`
	RecommendedActions        []string `json:"recommended_actions"`
}

// ScoredContact is the scoring outcome for one contact.
type ScoredContact struct {
	ContactID    string             `json:"contact_id"`
	Score        int                `json:"score"`
	Factors      LeadScoringFactors `json:"factors"`
	Prediction   *Prediction        `json:"prediction,omitempty"`
	EnrichedData *EnrichedContact   `json:"enriched_data,omitempty"`
}

// LLMScore is one model-produced score with its reasoning.
type LLMScore struct {
	ContactID string `json:"contact_id"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// LeadScoringOptions selects and shapes a bulk scoring run.
type LeadScoringOptions struct {
	LocationID          string   `json:"location_id"`
	Tags                []string `json:"tags,omitempty"`
	AssignedTo          string   `json:"assigned_to,omitempty"`
	Limit               int      `json:"limit,omitempty"`
	MinScore            *int     `json:"min_score,omitempty"`
	UseLLM              bool     `json:"use_llm"`
	IncludeEnrichedData bool     `json:"include_enriched_data"`
	Model               string   `json:"model,omitempty"`
}

// BulkScoringResult is the aggregate outcome of one scoring run.
// TokensUsed and TokensSaved are set only when the LLM path executed.
type BulkScoringResult struct {
	RunID           string          `json:"run_id"`
	TotalProcessed  int             `json:"total_processed"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	Scores          []ScoredContact `json:"scores"`
	Errors          []string        `json:"errors,omitempty"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	TokensUsed      *int            `json:"tokens_used,omitempty"`
	TokensSaved     *int            `json:"tokens_saved,omitempty"`
}

// DateRange bounds a historical query.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConversionRecord is one historical conversion used for pattern analysis.
type ConversionRecord struct {
	ContactID             string    `json:"contact_id"`
	LocationID            string    `json:"location_id"`
	DaysToConversion      int       `json:"days_to_conversion"`
	EmailOpens            int       `json:"email_opens"`
	EmailClicks           int       `json:"email_clicks"`
	PageViews             int       `json:"page_views"`
	FormFills             int       `json:"form_fills"`
	AppointmentsCompleted int       `json:"appointments_completed"`
	Tags                  []string  `json:"tags,omitempty"`
	Source                string    `json:"source,omitempty"`
	DealValue             float64   `json:"deal_value"`
	ConvertedAt           time.Time `json:"converted_at"`
}

// TagPerformance summarizes how one tag's contacts score and convert.
type TagPerformance struct {
	Tag            string  `json:"tag"`
	AverageScore   float64 `json:"average_score"`
	ConversionRate float64 `json:"conversion_rate"`
	Count          int     `json:"count"`
	Conversions    int     `json:"conversions"`
}

// LeadInsights is the aggregate report for a location and date range.
type LeadInsights struct {
	LocationID              string           `json:"location_id"`
	TotalLeads              int              `json:"total_leads"`
	HotLeads                int              `json:"hot_leads"`
	WarmLeads               int              `json:"warm_leads"`
	ColdLeads               int              `json:"cold_leads"`
	AverageScore            float64          `json:"average_score"`
	ConversionRate          float64          `json:"conversion_rate"`
	AverageTimeToConversion float64          `json:"average_time_to_conversion"`
	TopPerformingTags       []TagPerformance `json:"top_performing_tags"`
	ScoringDistribution     map[string]int   `json:"scoring_distribution"`
}

// ConversionPatterns is the provider-produced analysis of historical
// conversions.
type ConversionPatterns struct {
	CommonTraits       []string `json:"common_traits"`
	OptimalContactTime string   `json:"optimal_contact_time,omitempty"`
	AverageTouchpoints float64  `json:"average_touchpoints,omitempty"`
	KeyIndicators      []string `json:"key_indicators,omitempty"`
	Summary            string   `json:"summary,omitempty"`
}

// DealClosePrediction is the close outlook for one pipeline opportunity.
type DealClosePrediction struct {
	OpportunityID      string    `json:"opportunity_id"`
	CloseProbability   float64   `json:"close_probability"`
	Confidence         float64   `json:"confidence"`
	EstimatedCloseDate time.Time `json:"estimated_close_date"`
	RiskFactors        []string  `json:"risk_factors"`
	Accelerators       []string  `json:"accelerators"`
	RecommendedActions []string  `json:"recommended_actions"`
}

// LLMOptions tunes a provider call.
type LLMOptions struct {
	Model string `json:"model,omitempty"`
}

// ContactSource fetches raw contacts from the CRM.
type ContactSource interface {
	GetContacts(ctx context.Context, locationID string, limit int) ([]crm.Contact, error)
}

// OpportunitySource fetches pipeline opportunities from the CRM.
type OpportunitySource interface {
	GetOpportunity(ctx context.Context, opportunityID string) (*crm.Opportunity, error)
}

// ConversionSource fetches historical conversion records.
type ConversionSource interface {
	GetConversions(ctx context.Context, locationID string, rng DateRange) ([]ConversionRecord, error)
}

// LLMProvider is the capability set a language model backend offers the
// engine. At most one provider is attached at a time.
type LLMProvider interface {
	ScoreLeads(ctx context.Context, encodedBatch string, opts LLMOptions) ([]LLMScore, error)
	AnalyzePatterns(ctx context.Context, encodedBatch string) (*ConversionPatterns, error)
	PredictDealClose(ctx context.Context, encodedRecord string) (*DealClosePrediction, error)
}
