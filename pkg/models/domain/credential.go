package domain

import "time"

// Token is a delegated access token resolved by the credential vault.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Scopes      []string
}

// AccessStatus is the outcome of a credential access test. The three states
// require different remediation (initial setup, re-authentication, nothing)
// and must never be collapsed into one another.
type AccessStatus string

const (
	AccessStatusNoCredential AccessStatus = "no_credential"
	AccessStatusInsufficient AccessStatus = "insufficient_permission"
	AccessStatusValid        AccessStatus = "valid"
)
