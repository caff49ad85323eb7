package service

import (
	"strings"

	"careergate/internal/upstream"
)

// personalizationColumns is the fixed schema of the personalization record.
var personalizationColumns = []string{
	"name",
	"target_role",
	"top_strength",
	"keyword_gaps",
	"strategy",
}

// samplePersonalizationData is the bundled fallback dataset used when the
// client skips the analyze step. It keeps the personalized demo working with
// a generic but believable profile.
var samplePersonalizationData = map[string]string{
	"name":         "Alex Morgan",
	"target_role":  "Senior Software Engineer",
	"top_strength": "Led cross-functional delivery of a customer-facing platform",
	"keyword_gaps": "Kubernetes, system design, stakeholder management",
	"strategy":     "Position recent platform work as senior-level scope and quantify the outcomes.",
}

// personalizationData builds the record from an analysis, falling back to the
// sample profile when no analysis exists.
func personalizationData(result *upstream.AnalysisResult) map[string]string {
	if result == nil {
		return samplePersonalizationData
	}

	data := map[string]string{
		"name":         result.CandidateName,
		"strategy":     result.Strategy,
		"target_role":  first(result.PotentialTitles),
		"top_strength": first(result.Strengths),
		"keyword_gaps": strings.Join(result.KeywordGaps, ", "),
	}
	for column, fallback := range samplePersonalizationData {
		if data[column] == "" {
			data[column] = fallback
		}
	}
	return data
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
