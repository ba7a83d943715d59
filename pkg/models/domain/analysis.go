package domain

// AnalysisResult is the output of one analyzer over one inventory.
// Producing it must be pure: identical input yields an identical result.
type AnalysisResult struct {
	Category Category
	// Score is 0-100.
	Score      float64
	Violations []Finding
	// PerResource holds the per-resource score breakdown keyed by resource ID.
	PerResource map[string]float64
	// Skipped lists resource IDs that could not be evaluated (malformed
	// data); they are excluded from the score, never counted as passing.
	Skipped []string
	// Evaluated is false when the analyzer had no applicable input at all
	// (e.g. cost analyzer without cost data); such results are excluded
	// from score aggregation.
	Evaluated bool
	// Summary carries analyzer-specific reporting figures, e.g. tag usage
	// frequency.
	Summary map[string]any
}
