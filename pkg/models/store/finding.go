package store

type Finding struct {
	ID             string
	AssessmentID   string
	ResourceID     string
	ResourceName   string
	ResourceType   string
	Category       string
	Severity       int
	Issue          string
	Recommendation string
	Effort         string
}
