package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
)

// Severity is fixed per rule type so the same rule always yields the same
// severity regardless of resource type:
//
//	malformed resource data  -> High
//	missing type prefix      -> High
//	pattern mismatch         -> Medium
//	missing env indicator    -> Low
const (
	issueMalformed     = "malformed_resource"
	issuePattern       = "invalid_name_pattern"
	issuePrefix        = "missing_type_prefix"
	issueEnvIndicator  = "missing_environment_indicator"
	recommendMalformed = "Inspect the resource in the portal; its inventory record is missing a name and could not be evaluated."
	recommendPattern   = "Rename the resource to match the organization's naming pattern."
	recommendPrefix    = "Prefix the resource name with the standard abbreviation for its type."
	recommendEnv       = "Include an environment indicator (e.g. dev, test, prod) in the resource name."
)

// defaultPatterns evaluate when a client configures no patterns of its own,
// so a resource is never silently skipped: kebab-case names plus the
// dash-less storage-account form.
var defaultPatterns = []string{
	`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`,
	`^[a-z0-9]{3,24}$`,
}

var defaultPrefixes = map[string]string{
	"microsoft.compute/virtualmachines":          "vm",
	"microsoft.storage/storageaccounts":          "st",
	"microsoft.network/virtualnetworks":          "vnet",
	"microsoft.network/networksecuritygroups":    "nsg",
	"microsoft.keyvault/vaults":                  "kv",
	"microsoft.web/sites":                        "app",
	"microsoft.sql/servers":                      "sql",
	"microsoft.containerservice/managedclusters": "aks",
}

var defaultEnvIndicators = []string{"dev", "test", "qa", "stage", "staging", "prod", "shared", "sandbox"}

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Kind() domain.Category {
	return domain.CategoryNaming
}

func (a *Analyzer) Analyze(inv domain.Inventory, prefs domain.PolicyPreferences) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Category:    domain.CategoryNaming,
		PerResource: map[string]float64{},
		Evaluated:   true,
		Summary:     map[string]any{},
	}

	patterns, invalid := compilePatterns(prefs.Naming.AllowedPatterns)
	if len(invalid) > 0 {
		result.Summary["invalid_patterns"] = invalid
	}
	if len(patterns) == 0 {
		patterns, _ = compilePatterns(defaultPatterns)
		result.Summary["default_patterns_applied"] = true
	}

	prefixes := prefs.Naming.RequiredPrefixes
	if len(prefixes) == 0 {
		prefixes = defaultPrefixes
	}
	indicators := prefs.Naming.EnvironmentIndicators
	if len(indicators) == 0 {
		indicators = defaultEnvIndicators
	}

	var scoreSum float64
	scored := 0

	for _, res := range inv.Resources {
		if res.Name == "" {
			result.Skipped = append(result.Skipped, resourceKey(res))
			result.Violations = append(result.Violations, violation(res, issueMalformed, domain.SeverityHigh, recommendMalformed))
			continue
		}

		applicable, passed := 0, 0
		name := strings.ToLower(res.Name)

		applicable++
		if matchesAny(patterns, name) {
			passed++
		} else {
			result.Violations = append(result.Violations, violation(res, issuePattern, domain.SeverityMedium, recommendPattern))
		}

		if prefix, ok := prefixes[strings.ToLower(res.Type)]; ok {
			applicable++
			if strings.HasPrefix(name, strings.ToLower(prefix)) {
				passed++
			} else {
				result.Violations = append(result.Violations, violation(res, issuePrefix, domain.SeverityHigh, recommendPrefix))
			}
		}

		applicable++
		if containsAny(name, indicators) {
			passed++
		} else {
			result.Violations = append(result.Violations, violation(res, issueEnvIndicator, domain.SeverityLow, recommendEnv))
		}

		score := float64(passed) / float64(applicable) * 100
		result.PerResource[resourceKey(res)] = score
		scoreSum += score
		scored++
	}

	if scored > 0 {
		result.Score = scoreSum / float64(scored)
	} else {
		// An empty estate has nothing misnamed.
		result.Score = 100
	}
	result.Summary["resources_evaluated"] = scored
	result.Summary["resources_skipped"] = len(result.Skipped)

	return result
}

func violation(res domain.ResourceSnapshot, issue string, severity domain.Severity, recommendation string) domain.Finding {
	return domain.Finding{
		Resource: domain.ResourceRef{
			ID:   res.ID,
			Name: res.Name,
			Type: res.Type,
		},
		Category:       domain.CategoryNaming,
		Severity:       severity,
		Issue:          issue,
		Recommendation: recommendation,
		Effort:         "low",
	}
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, []string) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	var invalid []string
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled, invalid
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func containsAny(name string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(name, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func resourceKey(res domain.ResourceSnapshot) string {
	if res.ID != "" {
		return res.ID
	}
	return fmt.Sprintf("%s/%s", res.SubscriptionID, res.Name)
}

var _ analyzers.Analyzer = (*Analyzer)(nil)
