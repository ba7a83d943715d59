package tagging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
)

func resource(name string, tags map[string]string) domain.ResourceSnapshot {
	return domain.ResourceSnapshot{
		ID:             "/subscriptions/sub-a/resourceGroups/rg-app/providers/Microsoft.Compute/virtualMachines/" + name,
		Name:           name,
		Type:           "microsoft.compute/virtualmachines",
		SubscriptionID: "sub-a",
		Tags:           tags,
	}
}

func TestAnalyze_MissingRequiredTag(t *testing.T) {
	a := NewAnalyzer()

	prefs := domain.PolicyPreferences{
		Tagging: domain.TagRules{RequiredTags: []string{"env", "owner"}},
	}
	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", map[string]string{"env": "prod"}),
		},
	}, prefs)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, "missing_required_tag: owner", result.Violations[0].Issue)
	assert.Equal(t, domain.SeverityHigh, result.Violations[0].Severity)
	assert.Equal(t, float64(50), result.Score)
}

func TestAnalyze_FullyTagged(t *testing.T) {
	a := NewAnalyzer()

	prefs := domain.PolicyPreferences{
		Tagging: domain.TagRules{RequiredTags: []string{"env", "owner"}},
	}
	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", map[string]string{"env": "prod", "owner": "team-billing"}),
		},
	}, prefs)

	assert.Empty(t, result.Violations)
	assert.Equal(t, float64(100), result.Score)
	assert.Equal(t, 1, result.Summary["resources_fully_tagged"])
}

func TestAnalyze_DefaultRequiredTags(t *testing.T) {
	a := NewAnalyzer()

	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", nil),
		},
	}, domain.PolicyPreferences{})

	assert.Equal(t, true, result.Summary["default_required_tags_applied"])
	assert.Len(t, result.Violations, len(defaultRequiredTags))
	assert.Equal(t, float64(0), result.Score)
}

func TestAnalyze_EmptyTagValueFlaggedLow(t *testing.T) {
	a := NewAnalyzer()

	prefs := domain.PolicyPreferences{
		Tagging: domain.TagRules{RequiredTags: []string{"owner"}},
	}
	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", map[string]string{"owner": ""}),
		},
	}, prefs)

	require.Len(t, result.Violations, 1)
	assert.Equal(t, "empty_tag_value: owner", result.Violations[0].Issue)
	assert.Equal(t, domain.SeverityLow, result.Violations[0].Severity)
	// the tag is present, so coverage counts it
	assert.Equal(t, float64(100), result.Score)
}

func TestAnalyze_ScoreIsMeanCoverage(t *testing.T) {
	a := NewAnalyzer()

	prefs := domain.PolicyPreferences{
		Tagging: domain.TagRules{RequiredTags: []string{"env", "owner"}},
	}
	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", map[string]string{"env": "prod", "owner": "team-billing"}),
			resource("vm-prod-002", nil),
		},
	}, prefs)

	assert.Equal(t, float64(50), result.Score)
}

func TestAnalyze_TagFrequencySorted(t *testing.T) {
	a := NewAnalyzer()

	result := a.Analyze(domain.Inventory{
		Resources: []domain.ResourceSnapshot{
			resource("vm-prod-001", map[string]string{"env": "prod", "owner": "a"}),
			resource("vm-prod-002", map[string]string{"env": "dev"}),
		},
	}, domain.PolicyPreferences{})

	freq, ok := result.Summary["tag_frequency"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, freq, 2)
	assert.Equal(t, "env", freq[0]["tag"])
	assert.Equal(t, 2, freq[0]["count"])
	assert.Equal(t, "owner", freq[1]["tag"])
}

func TestAnalyze_EmptyEstate(t *testing.T) {
	a := NewAnalyzer()

	result := a.Analyze(domain.Inventory{}, domain.PolicyPreferences{})

	assert.True(t, result.Evaluated)
	assert.Equal(t, float64(100), result.Score)
}
