package scoring

import "math"

// Weighting applied when a model score corroborates a rules score.
// Rules stay dominant.
const (
	rulesWeight = 0.6
	llmWeight   = 0.4

	// Model corroboration raises confidence to this fixed value.
	blendedConfidence = 0.9
)

// BlendScores merges model scores into rules scores by contact ID.
// Rules scores with no model counterpart pass through unchanged; no
// contact with a rules score is ever dropped.
func BlendScores(rulesScores []ScoredContact, llmScores []LLMScore) []ScoredContact {
	byContact := make(map[string]LLMScore, len(llmScores))
	for _, ls := range llmScores {
		byContact[ls.ContactID] = ls
	}

	blended := make([]ScoredContact, len(rulesScores))
	for i, rs := range rulesScores {
		ls, ok := byContact[rs.ContactID]
		if !ok {
			blended[i] = rs
			continue
		}

		rs.Score = int(math.Round(float64(rs.Score)*rulesWeight + float64(ls.Score)*llmWeight))
		if rs.Prediction != nil {
			p := *rs.Prediction
			p.Confidence = blendedConfidence
			actions := make([]string, 0, len(p.RecommendedActions)+1)
			actions = append(actions, p.RecommendedActions...)
			actions = append(actions, "AI Insight: "+ls.Reasoning)
			p.RecommendedActions = actions
			rs.Prediction = &p
		}
		blended[i] = rs
	}
	return blended
}
