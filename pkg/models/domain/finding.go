package domain

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Category identifies the analyzer that produced a finding. The set is
// closed; dispatch happens over these values, never over free-form strings.
type Category string

const (
	CategoryNaming  Category = "naming"
	CategoryTagging Category = "tagging"
	CategoryCost    Category = "cost"
)

type ResourceRef struct {
	ID   string
	Name string
	Type string
}

// Finding is one policy violation discovered for one resource during one
// assessment. Immutable once written; removed only by cascading assessment
// deletion.
type Finding struct {
	ID             string
	AssessmentID   string
	Resource       ResourceRef
	Category       Category
	Severity       Severity
	Issue          string
	Recommendation string
	Effort         string
}
