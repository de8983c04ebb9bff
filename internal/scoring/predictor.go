package scoring

import (
	"time"

	"github.com/ignite/lead-intelligence/internal/crm"
)

const (
	riskStagnant        = "Deal stagnant for 30+ days"
	acceleratorActive   = "Deal actively being worked"
	fallbackConfidence  = 0.6
	fallbackCloseOffset = 14 * 24 * time.Hour
)

// predictWithRules is the deal close fallback used when no model
// provider is attached. It reads stage age and deal status only.
func predictWithRules(opp *crm.Opportunity, now time.Time) *DealClosePrediction {
	prediction := &DealClosePrediction{
		OpportunityID:      opp.ID,
		CloseProbability:   0.5,
		Confidence:         fallbackConfidence,
		EstimatedCloseDate: now.Add(fallbackCloseOffset),
		RiskFactors:        []string{},
		Accelerators:       []string{},
	}

	if opp.DaysInStage(now) > 30 {
		prediction.CloseProbability -= 0.2
		prediction.RiskFactors = append(prediction.RiskFactors, riskStagnant)
	}
	if opp.Status == "open" {
		prediction.CloseProbability += 0.2
		prediction.Accelerators = append(prediction.Accelerators, acceleratorActive)
	}

	if prediction.CloseProbability < 0 {
		prediction.CloseProbability = 0
	}
	if prediction.CloseProbability > 1 {
		prediction.CloseProbability = 1
	}

	if len(prediction.RiskFactors) > 0 {
		prediction.RecommendedActions = []string{"Schedule follow-up call", "Send proposal"}
	} else {
		prediction.RecommendedActions = []string{"Continue nurturing"}
	}

	return prediction
}
