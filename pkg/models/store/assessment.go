package store

import "time"

type Assessment struct {
	ID             string
	OrgID          string
	ClientID       *string
	EnvironmentID  string
	Type           string
	Status         string
	Score          *float64
	CategoryScores map[string]float64
	FailureReason  *string
	FailureDetail  *string
	CredentialPath string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}
