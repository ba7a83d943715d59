package analyzers

import (
	"fmt"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
)

// Analyzer scores an inventory against policy preferences. Implementations
// must be pure: no I/O, no hidden state, identical input yields an identical
// result.
type Analyzer interface {
	Kind() domain.Category
	Analyze(inv domain.Inventory, prefs domain.PolicyPreferences) domain.AnalysisResult
}

// DefaultWeights is the documented score weighting: naming and tagging split
// the score evenly; the cost analyzer contributes a 0.25 share when cost data
// was collected. Aggregate renormalizes over the analyzers that actually
// evaluated, so naming/tagging-only runs score 50/50.
func DefaultWeights() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryNaming:  0.5,
		domain.CategoryTagging: 0.5,
		domain.CategoryCost:    0.25,
	}
}

// Registry holds the closed set of analyzers in a fixed run order.
type Registry struct {
	analyzers map[domain.Category]Analyzer
	order     []domain.Category
}

func NewRegistry(analyzers ...Analyzer) (*Registry, error) {
	r := &Registry{
		analyzers: make(map[domain.Category]Analyzer),
	}

	for _, a := range analyzers {
		kind := a.Kind()
		if _, exists := r.analyzers[kind]; exists {
			return nil, fmt.Errorf("duplicate analyzer for category: %s", kind)
		}
		r.analyzers[kind] = a
		r.order = append(r.order, kind)
	}

	if len(r.analyzers) == 0 {
		return nil, fmt.Errorf("at least one analyzer must be provided")
	}
	return r, nil
}

func (r *Registry) Categories() []domain.Category {
	return append([]domain.Category{}, r.order...)
}

// Run executes every analyzer in registration order.
func (r *Registry) Run(inv domain.Inventory, prefs domain.PolicyPreferences) []domain.AnalysisResult {
	results := make([]domain.AnalysisResult, 0, len(r.order))
	for _, kind := range r.order {
		results = append(results, r.analyzers[kind].Analyze(inv, prefs))
	}
	return results
}

// Aggregate computes the overall assessment score as the weighted mean of
// the evaluated analyzer scores. Weights missing from the map fall back to
// DefaultWeights; analyzers that did not evaluate are excluded and the
// remaining weights renormalized.
func Aggregate(results []domain.AnalysisResult, weights map[domain.Category]float64) float64 {
	defaults := DefaultWeights()

	var weighted, total float64
	for _, res := range results {
		if !res.Evaluated {
			continue
		}
		w, ok := weights[res.Category]
		if !ok {
			w = defaults[res.Category]
		}
		if w <= 0 {
			continue
		}
		weighted += res.Score * w
		total += w
	}

	if total == 0 {
		return 0
	}
	return weighted / total
}

// CategoryScores flattens results into the per-category map persisted with
// the assessment.
func CategoryScores(results []domain.AnalysisResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, res := range results {
		if res.Evaluated {
			scores[string(res.Category)] = res.Score
		}
	}
	return scores
}
