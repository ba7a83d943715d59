package domain

import "time"

type AssessmentStatus string

const (
	AssessmentStatusPending    AssessmentStatus = "pending"
	AssessmentStatusInProgress AssessmentStatus = "in_progress"
	AssessmentStatusCompleted  AssessmentStatus = "completed"
	AssessmentStatusFailed     AssessmentStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s AssessmentStatus) Terminal() bool {
	return s == AssessmentStatusCompleted || s == AssessmentStatusFailed
}

type AssessmentType string

const (
	AssessmentTypeGovernance AssessmentType = "governance"
	AssessmentTypeQuickScan  AssessmentType = "quick_scan"
)

// FailureReason classifies why an assessment ended in the failed state.
type FailureReason string

const (
	FailureReasonCredentialInvalid FailureReason = "CredentialInvalid"
	FailureReasonFetchFailed       FailureReason = "FetchFailed"
	FailureReasonPersistenceFailed FailureReason = "PersistenceFailed"
	FailureReasonCancelled         FailureReason = "Cancelled"
	FailureReasonInternal          FailureReason = "Internal"
)

// CredentialPath records which credential resolution succeeded for a run.
// Delegated OAuth working and the platform fallback working are different
// health states even though both return resources.
type CredentialPath string

const (
	CredentialPathDelegated CredentialPath = "delegated"
	CredentialPathPlatform  CredentialPath = "platform"
)

type Assessment struct {
	ID             string
	OrgID          string
	ClientID       *string
	EnvironmentID  string
	Type           AssessmentType
	Status         AssessmentStatus
	Score          *float64
	FailureReason  *FailureReason
	FailureDetail  *string
	CredentialPath CredentialPath
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// AssessmentResult is the completed view of an assessment: the overall score
// plus the per-analyzer breakdown persisted at completion time.
type AssessmentResult struct {
	AssessmentID  string
	Score         float64
	ByCategory    map[Category]float64
	ResourceCount int
	FindingCount  int
	CompletedAt   time.Time
}
