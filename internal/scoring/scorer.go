package scoring

import "math"

// Action strings appended by the rules scorer.
const (
	actionEngagingEmail = "send engaging email campaign"
	actionContentOffer  = "promote high-value content offer"
	actionReEngage      = "re-engagement campaign needed"
	actionDiscoveryCall = "schedule discovery call"
)

// CalculateRulesBasedScores maps enriched contacts to scored contacts
// using fixed weighting rules. Pure and deterministic; this is the
// fallback path the whole system relies on when no model is configured,
// so it never fails for well-formed input.
func CalculateRulesBasedScores(contacts []EnrichedContact) []ScoredContact {
	scores := make([]ScoredContact, 0, len(contacts))
	for i := range contacts {
		scores = append(scores, scoreContact(&contacts[i]))
	}
	return scores
}

func scoreContact(c *EnrichedContact) ScoredContact {
	engagement := math.Min(float64(c.EmailOpens)*2, 20) + math.Min(float64(c.PageViews), 20)
	behavioral := math.Min(float64(c.FormFills)*10, 20) + math.Min(float64(c.AppointmentsCompleted)*5, 10)

	var recency float64
	switch {
	case c.DaysSinceLastActivity < 7:
		recency = 30
	case c.DaysSinceLastActivity < 14:
		recency = 20
	case c.DaysSinceLastActivity < 30:
		recency = 10
	}

	score := int(math.Min(engagement+behavioral+recency, 100))

	var estimatedDays int
	switch {
	case score >= 70:
		estimatedDays = 7
	case score >= 40:
		estimatedDays = 21
	default:
		estimatedDays = 45
	}

	actions := []string{}
	if c.EmailOpens < 5 {
		actions = append(actions, actionEngagingEmail)
	}
	if c.FormFills == 0 {
		actions = append(actions, actionContentOffer)
	}
	if c.DaysSinceLastActivity > 14 {
		actions = append(actions, actionReEngage)
	}
	if c.AppointmentsCompleted == 0 && score >= 50 {
		actions = append(actions, actionDiscoveryCall)
	}

	return ScoredContact{
		ContactID: c.ID,
		Score:     score,
		Factors: LeadScoringFactors{
			Engagement: engagement,
			Behavioral: behavioral,
			Recency:    recency,
		},
		Prediction: &Prediction{
			ConversionProbability:     float64(score) / 100,
			Confidence:                0.75,
			EstimatedDaysToConversion: estimatedDays,
			RecommendedActions:        actions,
		},
	}
}
