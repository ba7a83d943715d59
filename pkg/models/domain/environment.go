package domain

import "time"

// Environment is an organization- or client-scoped set of subscription IDs
// plus tenant/credential references. Read-only from the engine's perspective
// except for connection-test results.
type Environment struct {
	ID              string
	OrgID           string
	ClientID        *string
	Name            string
	TenantID        string
	SubscriptionIDs []string
	LastTestAt      *time.Time
	LastTestOK      *bool
}
