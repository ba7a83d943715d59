package api

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type ResourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Finding struct {
	ID             string      `json:"id"`
	Resource       ResourceRef `json:"resource"`
	Category       string      `json:"category"`
	Severity       Severity    `json:"severity"`
	Issue          string      `json:"issue"`
	Recommendation string      `json:"recommendation"`
	Effort         string      `json:"effort,omitempty"`
}

type FindingsPage struct {
	AssessmentID string    `json:"assessment_id"`
	Findings     []Finding `json:"findings"`
	Total        int       `json:"total"`
	Offset       int       `json:"offset"`
	Limit        int       `json:"limit"`
}
