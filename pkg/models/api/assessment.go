package api

import "time"

type StartAssessmentRequest struct {
	EnvironmentID string       `json:"environment_id"`
	Type          string       `json:"type"`
	Preferences   *Preferences `json:"preferences,omitempty"`
}

// Preferences overrides the built-in default policy for one assessment.
// Omitted sections keep their defaults.
type Preferences struct {
	Naming  NamingRules        `json:"naming"`
	Tagging TagRules           `json:"tagging"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

type NamingRules struct {
	AllowedPatterns       []string          `json:"allowed_patterns,omitempty"`
	RequiredPrefixes      map[string]string `json:"required_prefixes,omitempty"`
	EnvironmentIndicators []string          `json:"environment_indicators,omitempty"`
}

type TagRules struct {
	RequiredTags      []string `json:"required_tags,omitempty"`
	CostAllocationTag string   `json:"cost_allocation_tag,omitempty"`
}

type StartAssessmentResponse struct {
	ID string `json:"id"`
}

type Assessment struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	ClientID       *string    `json:"client_id,omitempty"`
	EnvironmentID  string     `json:"environment_id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Score          *float64   `json:"score,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	CredentialPath string     `json:"credential_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type AssessmentResult struct {
	AssessmentID  string             `json:"assessment_id"`
	Score         float64            `json:"score"`
	ByCategory    map[string]float64 `json:"by_category"`
	ResourceCount int                `json:"resource_count"`
	FindingCount  int                `json:"finding_count"`
	CompletedAt   time.Time          `json:"completed_at"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AdmissionError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	CurrentUsage int    `json:"current_usage"`
	MaxAllowed   int    `json:"max_allowed"`
}
