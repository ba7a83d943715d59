package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/estate-atlas/pkg/adapters"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
	"github.com/de-tools/estate-atlas/pkg/services/credential"
	"github.com/de-tools/estate-atlas/pkg/services/inventory"
	"github.com/de-tools/estate-atlas/pkg/services/license"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/assessment"
	environmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/environment"
	findingstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/finding"
	resourcestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/resource"
)

var (
	// ErrNotFound covers both unknown assessments and assessments belonging
	// to another organization; callers cannot tell the two apart.
	ErrNotFound = errors.New("assessment not found")

	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrAssessmentRunning is returned by Delete for an in-flight assessment;
	// it must be cancelled first.
	ErrAssessmentRunning = errors.New("assessment still running")

	// ErrNoSubscriptions rejects operations on an environment with no
	// subscriptions before any row is created or usage charged.
	ErrNoSubscriptions = errors.New("environment has no subscriptions")
)

// AdmissionError carries the license gate's denial back to the API layer so
// it can render usage and limit alongside the refusal.
type AdmissionError struct {
	Admission domain.Admission
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("assessment not admitted: %s", e.Admission.ReasonCode)
}

// NotReadyError is returned by GetResult while the assessment has not
// completed; the status tells the caller whether to keep polling.
type NotReadyError struct {
	Status domain.AssessmentStatus
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("assessment result not ready: status %s", e.Status)
}

// Identity is the caller's resolved org scope. Every operation checks the
// target record against it; there is no ambient tenant state.
type Identity struct {
	OrgID    string
	ClientID *string
}

type StartRequest struct {
	EnvironmentID string
	Type          domain.AssessmentType
	Preferences   domain.PolicyPreferences
}

type Orchestrator interface {
	StartAssessment(ctx context.Context, id Identity, req StartRequest) (domain.Assessment, error)
	GetStatus(ctx context.Context, id Identity, assessmentID string) (domain.Assessment, error)
	GetResult(ctx context.Context, id Identity, assessmentID string) (domain.AssessmentResult, error)
	GetFindings(ctx context.Context, id Identity, assessmentID string, offset, limit int) ([]domain.Finding, int, error)
	ListAssessments(ctx context.Context, id Identity) ([]domain.Assessment, error)
	Cancel(ctx context.Context, id Identity, assessmentID string) error
	Delete(ctx context.Context, id Identity, assessmentID string) error
	TestEnvironment(ctx context.Context, id Identity, environmentID string) (domain.AccessStatus, error)
}

type runDescriptor struct {
	cancelFunc context.CancelFunc
	runner     *Runner
}

type Deps struct {
	DB           *sql.DB
	Assessments  assessmentstore.Store
	Findings     findingstore.Store
	Resources    resourcestore.Store
	Environments environmentstore.Store
	Vault        credential.Vault
	Gate         license.Gate
	Registry     *analyzers.Registry
	GraphFactory inventory.GraphClientFactory
	CostFactory  inventory.CostCollectorFactory
	Platform     func() (inventory.GraphClient, inventory.CostCollector, error)
	FetchOptions inventory.Options
}

type DefaultOrchestrator struct {
	deps Deps

	mu   sync.Mutex
	runs map[string]runDescriptor
}

func NewOrchestrator(deps Deps) (*DefaultOrchestrator, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("analyzer registry is nil")
	}
	if deps.GraphFactory == nil {
		return nil, fmt.Errorf("graph client factory is nil")
	}
	return &DefaultOrchestrator{
		deps: deps,
		runs: make(map[string]runDescriptor),
	}, nil
}

func (o *DefaultOrchestrator) StartAssessment(ctx context.Context, id Identity, req StartRequest) (domain.Assessment, error) {
	env, err := o.environment(ctx, id, req.EnvironmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if len(env.SubscriptionIDs) == 0 {
		return domain.Assessment{}, ErrNoSubscriptions
	}

	admission, err := o.deps.Gate.CanStartAssessment(ctx, id.OrgID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if !admission.Allowed {
		return domain.Assessment{}, &AdmissionError{Admission: admission}
	}

	if maxSubs, err := o.deps.Gate.MaxSubscriptions(ctx, id.OrgID); err != nil {
		return domain.Assessment{}, err
	} else if maxSubs != nil && len(env.SubscriptionIDs) > *maxSubs {
		return domain.Assessment{}, &AdmissionError{Admission: domain.Admission{
			ReasonCode:   domain.AdmissionReasonLimitReached,
			CurrentUsage: len(env.SubscriptionIDs),
			MaxAllowed:   *maxSubs,
		}}
	}

	assessmentType := req.Type
	if assessmentType == "" {
		assessmentType = domain.AssessmentTypeGovernance
	}

	rec := store.Assessment{
		ID:            uuid.NewString(),
		OrgID:         id.OrgID,
		ClientID:      id.ClientID,
		EnvironmentID: env.ID,
		Type:          string(assessmentType),
		Status:        string(domain.AssessmentStatusPending),
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.deps.Assessments.Create(ctx, rec); err != nil {
		return domain.Assessment{}, fmt.Errorf("create assessment: %w", err)
	}

	// Usage is charged at admission. A run that later fails or is cancelled
	// still counts against the monthly limit.
	if err := o.deps.Gate.RecordUsage(ctx, id.OrgID, domain.MetricAssessments); err != nil {
		return domain.Assessment{}, fmt.Errorf("record usage: %w", err)
	}

	o.startRun(ctx, rec, env, req.Preferences)
	return adapters.MapAssessmentStoreToDomain(rec), nil
}

// startRun launches the runner on a context detached from the request so an
// HTTP disconnect never cancels an admitted run. The request logger is
// carried over.
func (o *DefaultOrchestrator) startRun(ctx context.Context, rec store.Assessment, env domain.Environment, prefs domain.PolicyPreferences) {
	o.mu.Lock()
	defer o.mu.Unlock()

	runCtx := zerolog.Ctx(ctx).With().
		Str("assessment_id", rec.ID).
		Str("org_id", rec.OrgID).
		Logger().WithContext(context.Background())
	runCtx, cancel := context.WithCancel(runCtx)

	runner := NewRunner(rec, env, prefs, o.deps)
	o.runs[rec.ID] = runDescriptor{cancelFunc: cancel, runner: runner}

	go func() {
		runner.Run(runCtx)
		o.mu.Lock()
		delete(o.runs, rec.ID)
		o.mu.Unlock()
	}()
}

func (o *DefaultOrchestrator) GetStatus(ctx context.Context, id Identity, assessmentID string) (domain.Assessment, error) {
	rec, err := o.owned(ctx, id, assessmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	return adapters.MapAssessmentStoreToDomain(*rec), nil
}

func (o *DefaultOrchestrator) GetResult(ctx context.Context, id Identity, assessmentID string) (domain.AssessmentResult, error) {
	rec, err := o.owned(ctx, id, assessmentID)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	if rec.Status != string(domain.AssessmentStatusCompleted) {
		return domain.AssessmentResult{}, &NotReadyError{Status: domain.AssessmentStatus(rec.Status)}
	}

	resourceCount, err := o.deps.Resources.Count(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	findingCount, err := o.deps.Findings.Count(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentResult{}, err
	}

	result := domain.AssessmentResult{
		AssessmentID:  rec.ID,
		ByCategory:    map[domain.Category]float64{},
		ResourceCount: resourceCount,
		FindingCount:  findingCount,
	}
	if rec.Score != nil {
		result.Score = *rec.Score
	}
	if rec.CompletedAt != nil {
		result.CompletedAt = *rec.CompletedAt
	}
	for category, score := range rec.CategoryScores {
		result.ByCategory[domain.Category(category)] = score
	}
	return result, nil
}

func (o *DefaultOrchestrator) GetFindings(ctx context.Context, id Identity, assessmentID string, offset, limit int) ([]domain.Finding, int, error) {
	if _, err := o.owned(ctx, id, assessmentID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}

	total, err := o.deps.Findings.Count(ctx, assessmentID)
	if err != nil {
		return nil, 0, err
	}
	records, err := o.deps.Findings.List(ctx, assessmentID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	findings := make([]domain.Finding, 0, len(records))
	for _, rec := range records {
		findings = append(findings, adapters.MapFindingStoreToDomain(rec))
	}
	return findings, total, nil
}

func (o *DefaultOrchestrator) ListAssessments(ctx context.Context, id Identity) ([]domain.Assessment, error) {
	records, err := o.deps.Assessments.List(ctx, id.OrgID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Assessment, 0, len(records))
	for _, rec := range records {
		out = append(out, adapters.MapAssessmentStoreToDomain(rec))
	}
	return out, nil
}

// Cancel stops an in-flight run and waits for the runner to finish writing
// its terminal state. Cancelling an already-terminal assessment is a no-op.
func (o *DefaultOrchestrator) Cancel(ctx context.Context, id Identity, assessmentID string) error {
	if _, err := o.owned(ctx, id, assessmentID); err != nil {
		return err
	}

	o.mu.Lock()
	desc, ok := o.runs[assessmentID]
	o.mu.Unlock()
	if !ok {
		return nil
	}

	desc.cancelFunc()
	select {
	case <-desc.runner.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (o *DefaultOrchestrator) Delete(ctx context.Context, id Identity, assessmentID string) error {
	rec, err := o.owned(ctx, id, assessmentID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	_, running := o.runs[assessmentID]
	o.mu.Unlock()
	if running || !domain.AssessmentStatus(rec.Status).Terminal() {
		return ErrAssessmentRunning
	}

	tx, err := o.deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	txCtx := duckdb.WithTransaction(ctx, tx)

	if err := o.deps.Findings.DeleteByAssessment(txCtx, assessmentID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := o.deps.Resources.DeleteByAssessment(txCtx, assessmentID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := o.deps.Assessments.Delete(txCtx, assessmentID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (o *DefaultOrchestrator) TestEnvironment(ctx context.Context, id Identity, environmentID string) (domain.AccessStatus, error) {
	env, err := o.environment(ctx, id, environmentID)
	if err != nil {
		return "", err
	}
	if len(env.SubscriptionIDs) == 0 {
		return "", ErrNoSubscriptions
	}

	var status domain.AccessStatus
	if env.ClientID != nil {
		status, err = o.deps.Vault.TestAccess(ctx, *env.ClientID, env.OrgID, env.SubscriptionIDs[0])
	} else {
		status, err = o.testPlatformAccess(ctx, env)
	}
	if err != nil {
		return "", err
	}

	if recordErr := o.deps.Environments.RecordConnectionTest(ctx, env.ID, time.Now().UTC(), status == domain.AccessStatusValid); recordErr != nil {
		zerolog.Ctx(ctx).Warn().Err(recordErr).Str("environment_id", env.ID).Msg("failed to record connection test")
	}
	return status, nil
}

func (o *DefaultOrchestrator) testPlatformAccess(ctx context.Context, env domain.Environment) (domain.AccessStatus, error) {
	if o.deps.Platform == nil {
		return domain.AccessStatusNoCredential, nil
	}
	graph, _, err := o.deps.Platform()
	if err != nil {
		return domain.AccessStatusNoCredential, nil
	}
	fetcher, err := inventory.NewFetcher(graph, o.deps.FetchOptions)
	if err != nil {
		return "", err
	}
	if err := fetcher.TestConnection(ctx, env.SubscriptionIDs[:1]); err != nil {
		if inventory.IsAuthError(err) {
			return domain.AccessStatusInsufficient, nil
		}
		return "", err
	}
	return domain.AccessStatusValid, nil
}

func (o *DefaultOrchestrator) owned(ctx context.Context, id Identity, assessmentID string) (*store.Assessment, error) {
	rec, err := o.deps.Assessments.Get(ctx, assessmentID)
	if errors.Is(err, assessmentstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.OrgID != id.OrgID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (o *DefaultOrchestrator) environment(ctx context.Context, id Identity, environmentID string) (domain.Environment, error) {
	rec, err := o.deps.Environments.Get(ctx, environmentID)
	if errors.Is(err, environmentstore.ErrNotFound) {
		return domain.Environment{}, ErrEnvironmentNotFound
	}
	if err != nil {
		return domain.Environment{}, err
	}
	if rec.OrgID != id.OrgID {
		return domain.Environment{}, ErrEnvironmentNotFound
	}
	return adapters.MapEnvironmentStoreToDomain(*rec), nil
}
