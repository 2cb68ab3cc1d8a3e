package recommender

import (
	"time"

	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// Stable IDs for the static fallback set, so callers (and tests) can
// assert on identity across repeated fallback invocations rather than
// just shape.
const (
	staticDropDebugLogsRecID    = "static-drop-debug-logs-rec"
	staticDropDebugLogsRuleID   = "static-drop-debug-logs-rule"
	staticRequireEnvLabelRecID  = "static-require-env-label-rec"
	staticRequireEnvLabelRuleID = "static-require-env-label-rule"
)

// staticRecommendations is the fallback set returned when the LLM call
// fails and fallback is enabled: two conservative, broadly-applicable
// rules that do not require analyzing the sample at all.
func staticRecommendations(now time.Time) *parser.ParsedRecommendations {
	recs := []parser.Recommendation{
		{
			ID:          staticDropDebugLogsRecID,
			Type:        parser.RecommendationTypeDropSignal,
			Priority:    parser.PriorityMedium,
			Description: "Drop debug level logs to reduce noise",
			Rationale:   "Debug logs are typically high volume and low value in production",
			FilterRules: []parser.FilterRule{
				{
					ID:          staticDropDebugLogsRuleID,
					Name:        "drop-debug-logs",
					Type:        signal.KindLog,
					Condition:   `attributes["level"] == "DEBUG"`,
					Action:      "drop",
					Description: "Drop debug level logs",
				},
			},
			EstimatedSavings: "10-20%",
			CreatedAt:        now,
		},
		{
			ID:          staticRequireEnvLabelRecID,
			Type:        parser.RecommendationTypeLabelPolicy,
			Priority:    parser.PriorityHigh,
			Description: "Enforce environment label presence",
			Rationale:   "Environment labels are required for proper data organization",
			FilterRules: []parser.FilterRule{
				{
					ID:          staticRequireEnvLabelRuleID,
					Name:        "require-env-label",
					Type:        signal.KindTrace,
					Condition:   `resource.attributes["environment"] == nil`,
					Action:      "drop",
					Description: "Drop spans without environment label",
				},
			},
			EstimatedSavings: "10-20%",
			CreatedAt:        now,
		},
	}

	return &parser.ParsedRecommendations{
		Recommendations: recs,
		Summary: parser.Summary{
			TotalRecommendations: len(recs),
			ByType: map[parser.RecommendationType]int{
				parser.RecommendationTypeDropSignal:  1,
				parser.RecommendationTypeLabelPolicy: 1,
			},
			ByPriority: map[parser.Priority]int{
				parser.PriorityHigh:   1,
				parser.PriorityMedium: 1,
			},
			EstimatedSavings: "10-20%",
		},
		GeneratedAt: now,
	}
}
