package tagging

import (
	"fmt"
	"sort"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
)

// Severity per rule type: missing required tag -> High, empty tag value -> Low.
const (
	issueMissingTag    = "missing_required_tag"
	issueEmptyTagValue = "empty_tag_value"
	recommendMissing   = "Add the required tag so the resource is attributable in governance and cost reports."
	recommendEmpty     = "Populate the tag with a meaningful value; empty values defeat reporting."
)

var defaultRequiredTags = []string{"env", "owner", "cost-center"}

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Kind() domain.Category {
	return domain.CategoryTagging
}

func (a *Analyzer) Analyze(inv domain.Inventory, prefs domain.PolicyPreferences) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Category:    domain.CategoryTagging,
		PerResource: map[string]float64{},
		Evaluated:   true,
		Summary:     map[string]any{},
	}

	required := prefs.Tagging.RequiredTags
	if len(required) == 0 {
		required = defaultRequiredTags
		result.Summary["default_required_tags_applied"] = true
	}

	frequency := map[string]int{}
	fullyTagged := 0
	var coverageSum float64
	scored := 0

	for _, res := range inv.Resources {
		if res.Name == "" && res.ID == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s/<unnamed>", res.SubscriptionID))
			continue
		}

		for tag := range res.Tags {
			frequency[tag]++
		}

		present := 0
		for _, tag := range required {
			value, ok := res.Tags[tag]
			if !ok {
				result.Violations = append(result.Violations, violation(res, tag, issueMissingTag, domain.SeverityHigh, recommendMissing))
				continue
			}
			present++
			if value == "" {
				result.Violations = append(result.Violations, violation(res, tag, issueEmptyTagValue, domain.SeverityLow, recommendEmpty))
			}
		}

		coverage := float64(present) / float64(len(required)) * 100
		result.PerResource[resourceKey(res)] = coverage
		coverageSum += coverage
		scored++
		if present == len(required) {
			fullyTagged++
		}
	}

	if scored > 0 {
		result.Score = coverageSum / float64(scored)
	} else {
		result.Score = 100
	}

	result.Summary["tag_frequency"] = sortedFrequency(frequency)
	result.Summary["resources_evaluated"] = scored
	result.Summary["resources_fully_tagged"] = fullyTagged
	result.Summary["required_tags"] = append([]string{}, required...)

	return result
}

func violation(res domain.ResourceSnapshot, tag, issue string, severity domain.Severity, recommendation string) domain.Finding {
	return domain.Finding{
		Resource: domain.ResourceRef{
			ID:   res.ID,
			Name: res.Name,
			Type: res.Type,
		},
		Category:       domain.CategoryTagging,
		Severity:       severity,
		Issue:          fmt.Sprintf("%s: %s", issue, tag),
		Recommendation: recommendation,
		Effort:         "low",
	}
}

// sortedFrequency returns tag counts in a deterministic order so two runs
// over the same inventory produce identical summaries.
func sortedFrequency(frequency map[string]int) []map[string]any {
	tags := make([]string, 0, len(frequency))
	for tag := range frequency {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	out := make([]map[string]any, 0, len(tags))
	for _, tag := range tags {
		out = append(out, map[string]any{"tag": tag, "count": frequency[tag]})
	}
	return out
}

func resourceKey(res domain.ResourceSnapshot) string {
	if res.ID != "" {
		return res.ID
	}
	return fmt.Sprintf("%s/%s", res.SubscriptionID, res.Name)
}

var _ analyzers.Analyzer = (*Analyzer)(nil)
