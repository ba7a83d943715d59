package domain

// NamingRules configures the naming analyzer. Empty fields fall back to the
// built-in default pattern set so a resource is never silently skipped.
type NamingRules struct {
	// AllowedPatterns are regular expressions; a name passing any one of
	// them satisfies the pattern rule.
	AllowedPatterns []string
	// RequiredPrefixes maps a resource type (e.g.
	// "microsoft.compute/virtualmachines") to the prefix its names must
	// carry.
	RequiredPrefixes map[string]string
	// EnvironmentIndicators are tokens one of which must appear in a
	// resource name (e.g. dev, test, prod).
	EnvironmentIndicators []string
}

// TagRules configures the tagging analyzer.
type TagRules struct {
	RequiredTags []string
	// CostAllocationTag is the tag the cost analyzer expects on resources
	// that carry significant spend.
	CostAllocationTag string
}

// PolicyPreferences is the per-client analyzer configuration. A zero value
// means "use the built-in default policy".
type PolicyPreferences struct {
	Naming  NamingRules
	Tagging TagRules
	// Weights drive score aggregation across analyzers. Missing entries use
	// the documented defaults; weights of analyzers that did not evaluate
	// are renormalized away.
	Weights map[Category]float64
}
