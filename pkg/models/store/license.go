package store

// Plan holds an organization's limits. Nil limits mean unlimited.
type Plan struct {
	OrgID                  string
	Name                   string
	MaxAssessmentsPerMonth *int
	MaxSubscriptions       *int
	Features               map[string]bool
}
