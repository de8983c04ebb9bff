package scoring

import "sort"

// Score thresholds for lead temperature.
const (
	hotThreshold  = 70
	warmThreshold = 40
)

var distributionBuckets = []struct {
	label string
	upper int
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", 100},
}

type tagAccumulator struct {
	totalScore  int
	count       int
	conversions int
}

// buildInsights aggregates rules scores and historical conversions into
// a location-level report. Every ratio is guarded against an empty
// population.
func buildInsights(locationID string, contacts []EnrichedContact, scores []ScoredContact, conversions []ConversionRecord) *LeadInsights {
	insights := &LeadInsights{
		LocationID:          locationID,
		TotalLeads:          len(contacts),
		ScoringDistribution: make(map[string]int, len(distributionBuckets)),
		TopPerformingTags:   []TagPerformance{},
	}
	for _, b := range distributionBuckets {
		insights.ScoringDistribution[b.label] = 0
	}

	totalScore := 0
	for _, s := range scores {
		totalScore += s.Score
		switch {
		case s.Score >= hotThreshold:
			insights.HotLeads++
		case s.Score >= warmThreshold:
			insights.WarmLeads++
		default:
			insights.ColdLeads++
		}
		insights.ScoringDistribution[bucketFor(s.Score)]++
	}
	if len(scores) > 0 {
		insights.AverageScore = float64(totalScore) / float64(len(scores))
	}

	if len(contacts) > 0 {
		insights.ConversionRate = float64(len(conversions)) / float64(len(contacts))
	}
	if len(conversions) > 0 {
		totalDays := 0
		for _, c := range conversions {
			totalDays += c.DaysToConversion
		}
		insights.AverageTimeToConversion = float64(totalDays) / float64(len(conversions))
	}

	insights.TopPerformingTags = rankTags(contacts, scores, conversions)
	return insights
}

// bucketFor maps a score to its distribution label. Upper bounds are
// inclusive, so 20 lands in "0-20" and 40 in "21-40".
func bucketFor(score int) string {
	for _, b := range distributionBuckets {
		if score <= b.upper {
			return b.label
		}
	}
	return distributionBuckets[len(distributionBuckets)-1].label
}

// rankTags correlates tag membership with scores and conversions.
// Conversion tags never seen on an enriched contact are dropped; only
// tags with an observed population can be ranked.
func rankTags(contacts []EnrichedContact, scores []ScoredContact, conversions []ConversionRecord) []TagPerformance {
	scoreByContact := make(map[string]int, len(scores))
	for _, s := range scores {
		scoreByContact[s.ContactID] = s.Score
	}

	tagStats := make(map[string]*tagAccumulator)
	for _, c := range contacts {
		score := scoreByContact[c.ID]
		for _, tag := range c.Tags {
			acc, ok := tagStats[tag]
			if !ok {
				acc = &tagAccumulator{}
				tagStats[tag] = acc
			}
			acc.totalScore += score
			acc.count++
		}
	}

	for _, conv := range conversions {
		for _, tag := range conv.Tags {
			if acc, ok := tagStats[tag]; ok {
				acc.conversions++
			}
		}
	}

	ranked := make([]TagPerformance, 0, len(tagStats))
	for tag, acc := range tagStats {
		perf := TagPerformance{
			Tag:         tag,
			Count:       acc.count,
			Conversions: acc.conversions,
		}
		if acc.count > 0 {
			perf.AverageScore = float64(acc.totalScore) / float64(acc.count)
			perf.ConversionRate = float64(acc.conversions) / float64(acc.count)
		}
		ranked = append(ranked, perf)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ConversionRate != ranked[j].ConversionRate {
			return ranked[i].ConversionRate > ranked[j].ConversionRate
		}
		return ranked[i].Tag < ranked[j].Tag
	})

	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	return ranked
}
