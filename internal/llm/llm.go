// Package llm provides the model backends the scoring engine can
// delegate to: OpenAI chat completions and AWS Bedrock (Claude). Both
// implement scoring.LLMProvider over compact-encoded batches.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

const scoreLeadsSystemPrompt = `You are a lead scoring analyst for a CRM platform. You receive a batch of leads in a compact pipe-delimited format: the first line may carry a "#N" record count, the second line names the columns, and each following line is one lead.

Score every lead from 0 to 100 based on engagement (email opens, page views), buying behavior (form fills, completed appointments), recency of activity, and revenue history. A lead with recent activity, completed appointments and prior won deals is hot; a lead with no activity for months is cold.

Respond with ONLY a JSON array, one entry per lead:
[{"contact_id": "...", "score": 85, "reasoning": "one sentence"}]`

const analyzePatternsSystemPrompt = `You are a revenue analyst. You receive historical lead conversions in a compact pipe-delimited format (first line may carry a "#N" record count, second line names the columns).

Identify what converted leads have in common: shared traits, how many touchpoints they needed, which signals predicted conversion.

Respond with ONLY a JSON object:
{"common_traits": ["..."], "optimal_contact_time": "...", "average_touchpoints": 4.2, "key_indicators": ["..."], "summary": "..."}`

const predictDealSystemPrompt = `You are a sales pipeline analyst. You receive one pipeline opportunity in a compact pipe-delimited format (header line then one data row).

Predict whether and when the deal will close, based on its stage age, status and value.

Respond with ONLY a JSON object:
{"opportunity_id": "...", "close_probability": 0.7, "confidence": 0.8, "estimated_close_date": "2026-09-15T00:00:00Z", "risk_factors": ["..."], "accelerators": ["..."], "recommended_actions": ["..."]}`

// extractJSON strips markdown code fences models sometimes wrap around
// JSON output despite instructions.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

func parseLeadScores(text string) ([]scoring.LLMScore, error) {
	var scores []scoring.LLMScore
	if err := json.Unmarshal([]byte(extractJSON(text)), &scores); err != nil {
		return nil, fmt.Errorf("parsing lead scores from model output: %w", err)
	}
	return scores, nil
}

func parsePatterns(text string) (*scoring.ConversionPatterns, error) {
	var patterns scoring.ConversionPatterns
	if err := json.Unmarshal([]byte(extractJSON(text)), &patterns); err != nil {
		return nil, fmt.Errorf("parsing conversion patterns from model output: %w", err)
	}
	return &patterns, nil
}

func parseDealPrediction(text string) (*scoring.DealClosePrediction, error) {
	var prediction scoring.DealClosePrediction
	if err := json.Unmarshal([]byte(extractJSON(text)), &prediction); err != nil {
		return nil, fmt.Errorf("parsing deal prediction from model output: %w", err)
	}
	return &prediction, nil
}
