package cost

import (
	"sort"
	"strings"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
)

const (
	issueUntaggedSpend   = "untagged_spend"
	recommendCostTagging = "Tag the resource with the cost-allocation tag so its spend can be attributed."
	defaultAllocationTag = "cost-center"
	topSpenders          = 10
)

// Analyzer flags the largest spenders that carry no cost-allocation tag.
// It evaluates only when the cost collector produced data for the run.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Kind() domain.Category {
	return domain.CategoryCost
}

func (a *Analyzer) Analyze(inv domain.Inventory, prefs domain.PolicyPreferences) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Category:    domain.CategoryCost,
		PerResource: map[string]float64{},
		Summary:     map[string]any{},
	}

	if len(inv.Costs) == 0 {
		// No data collected this run; excluded from score aggregation so
		// "no cost data" is never mistaken for "no cost violations".
		return result
	}
	result.Evaluated = true

	allocationTag := prefs.Tagging.CostAllocationTag
	if allocationTag == "" {
		allocationTag = defaultAllocationTag
	}

	byID := make(map[string]domain.ResourceSnapshot, len(inv.Resources))
	for _, res := range inv.Resources {
		byID[strings.ToLower(res.ID)] = res
	}

	rows := append([]domain.CostRow{}, inv.Costs...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Amount != rows[j].Amount {
			return rows[i].Amount > rows[j].Amount
		}
		return rows[i].ResourceID < rows[j].ResourceID
	})
	if len(rows) > topSpenders {
		rows = rows[:topSpenders]
	}

	considered, flagged := 0, 0
	for _, row := range rows {
		res, ok := byID[strings.ToLower(row.ResourceID)]
		if !ok {
			continue
		}
		considered++

		if _, tagged := res.Tags[allocationTag]; tagged {
			result.PerResource[res.ID] = 100
			continue
		}

		flagged++
		result.PerResource[res.ID] = 0
		result.Violations = append(result.Violations, domain.Finding{
			Resource: domain.ResourceRef{
				ID:   res.ID,
				Name: res.Name,
				Type: res.Type,
			},
			Category:       domain.CategoryCost,
			Severity:       domain.SeverityMedium,
			Issue:          issueUntaggedSpend,
			Recommendation: recommendCostTagging,
			Effort:         "low",
		})
	}

	if considered > 0 {
		result.Score = float64(considered-flagged) / float64(considered) * 100
	} else {
		result.Score = 100
	}
	result.Summary["top_spenders_considered"] = considered
	result.Summary["top_spenders_untagged"] = flagged
	result.Summary["allocation_tag"] = allocationTag

	return result
}

var _ analyzers.Analyzer = (*Analyzer)(nil)
