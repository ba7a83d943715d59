package store

// StoredResource is a resource snapshot persisted for an assessment so
// results can be paginated and exported after the run.
type StoredResource struct {
	ID             string
	AssessmentID   string
	Name           string
	Type           string
	ResourceGroup  string
	Location       string
	SubscriptionID string
	Tags           map[string]string
	SKU            string
	Kind           string
}
