package store

import "time"

// Credential is the per (client, organization) delegated token record.
// Consumers must re-validate expiry before use; a stale record is never
// silently treated as valid.
type Credential struct {
	ClientID     string
	OrgID        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	UpdatedAt    time.Time
}
