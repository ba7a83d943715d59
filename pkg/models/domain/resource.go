package domain

// ResourceSnapshot is one resource as returned by the resource graph during a
// single fetch cycle. Tag keys are unique.
type ResourceSnapshot struct {
	ID             string
	Name           string
	Type           string
	ResourceGroup  string
	Location       string
	SubscriptionID string
	Tags           map[string]string
	SKU            string
	Kind           string
}

// SubscriptionError reports a per-subscription fetch failure. One bad
// subscription never aborts the whole batch; it is excluded from the result
// set and carried here instead.
type SubscriptionError struct {
	SubscriptionID string
	Message        string
}

// CostRow is one per-resource spend figure gathered by the cost collector.
type CostRow struct {
	ResourceID     string
	ResourceName   string
	SubscriptionID string
	Amount         float64
	Currency       string
}

// Inventory is the durable output of the fetch stage, handed to analyzers
// only once every subscription has finished or failed individually.
type Inventory struct {
	Resources []ResourceSnapshot
	Errors    []SubscriptionError
	Costs     []CostRow
}
