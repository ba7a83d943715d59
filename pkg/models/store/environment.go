package store

import "time"

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
