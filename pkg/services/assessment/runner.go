package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/estate-atlas/pkg/adapters"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
	"github.com/de-tools/estate-atlas/pkg/services/credential"
	"github.com/de-tools/estate-atlas/pkg/services/inventory"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/assessment"
)

// Runner executes one assessment through its stages: credential resolution,
// inventory fetch, optional cost collection, analysis, persistence. It owns
// the status record for the duration of the run and always leaves it in a
// terminal state.
type Runner struct {
	assessment store.Assessment
	env        domain.Environment
	prefs      domain.PolicyPreferences
	deps       Deps
	done       chan struct{}
	now        func() time.Time
}

func NewRunner(rec store.Assessment, env domain.Environment, prefs domain.PolicyPreferences, deps Deps) *Runner {
	return &Runner{
		assessment: rec,
		env:        env,
		prefs:      prefs,
		deps:       deps,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	defer close(r.done)

	// Terminal writes go through a context that survives cancellation, so a
	// cancelled run can still record its failure.
	finalCtx := logger.WithContext(context.Background())

	// The record must never stay in_progress: a panic in any stage and every
	// early return end up here, and fail is a no-op once a terminal state has
	// been written.
	defer func() {
		if p := recover(); p != nil {
			r.fail(ctx, finalCtx, domain.FailureReasonInternal, fmt.Errorf("assessment run panicked: %v", p))
			return
		}
		r.fail(ctx, finalCtx, domain.FailureReasonInternal,
			errors.New("run exited without recording a terminal state"))
	}()

	if err := r.deps.Assessments.MarkInProgress(finalCtx, r.assessment.ID, r.now().UTC()); err != nil {
		logger.Error().Err(err).Msg("failed to mark assessment in progress")
		return
	}

	graph, collector, path, err := r.resolveClients(ctx)
	if err != nil {
		// A credential failure is visible on the environment too, not only on
		// this run's record.
		if r.deps.Environments != nil {
			if recordErr := r.deps.Environments.RecordConnectionTest(finalCtx, r.env.ID, r.now().UTC(), false); recordErr != nil {
				logger.Warn().Err(recordErr).Msg("failed to record connection test result")
			}
		}
		r.fail(ctx, finalCtx, domain.FailureReasonCredentialInvalid, err)
		return
	}
	if err := r.deps.Assessments.SetCredentialPath(finalCtx, r.assessment.ID, string(path)); err != nil {
		logger.Warn().Err(err).Msg("failed to record credential path")
	}

	fetcher, err := inventory.NewFetcher(graph, r.deps.FetchOptions)
	if err != nil {
		r.fail(ctx, finalCtx, domain.FailureReasonInternal, err)
		return
	}

	inv, err := fetcher.FetchResources(ctx, r.env.SubscriptionIDs)
	if err != nil {
		r.fail(ctx, finalCtx, domain.FailureReasonFetchFailed, err)
		return
	}
	if len(inv.Resources) == 0 && len(inv.Errors) == len(r.env.SubscriptionIDs) {
		r.fail(ctx, finalCtx, domain.FailureReasonFetchFailed,
			fmt.Errorf("all %d subscriptions failed", len(inv.Errors)))
		return
	}
	for _, subErr := range inv.Errors {
		logger.Warn().
			Str("subscription_id", subErr.SubscriptionID).
			Str("error", subErr.Message).
			Msg("subscription excluded from assessment")
	}

	// Cost data is advisory: collection failures degrade the assessment to
	// naming/tagging scoring instead of failing it.
	if r.assessment.Type == string(domain.AssessmentTypeGovernance) && collector != nil {
		inv.Costs = r.collectCosts(ctx, collector)
	}
	if ctx.Err() != nil {
		r.fail(ctx, finalCtx, domain.FailureReasonCancelled, ctx.Err())
		return
	}

	results := r.deps.Registry.Run(inv, r.prefs)
	score := analyzers.Aggregate(results, r.prefs.Weights)
	categoryScores := analyzers.CategoryScores(results)

	if err := r.persist(finalCtx, inv, results); err != nil {
		r.fail(ctx, finalCtx, domain.FailureReasonPersistenceFailed, err)
		return
	}

	if err := r.deps.Assessments.Complete(finalCtx, r.assessment.ID, score, categoryScores, r.now().UTC()); err != nil {
		if errors.Is(err, assessmentstore.ErrTerminal) {
			logger.Info().Msg("assessment reached a terminal state before completion")
			return
		}
		r.fail(ctx, finalCtx, domain.FailureReasonPersistenceFailed, fmt.Errorf("complete assessment: %w", err))
		return
	}

	logger.Info().
		Float64("score", score).
		Int("resources", len(inv.Resources)).
		Msg("assessment completed")
}

// resolveClients picks the delegated credential when one is configured and
// usable, otherwise falls back to the platform credential. Which path won is
// recorded on the assessment.
func (r *Runner) resolveClients(ctx context.Context) (inventory.GraphClient, inventory.CostCollector, domain.CredentialPath, error) {
	logger := zerolog.Ctx(ctx)

	var delegatedErr error
	if r.assessment.ClientID != nil && r.deps.Vault != nil {
		token, err := r.deps.Vault.GetToken(ctx, *r.assessment.ClientID, r.assessment.OrgID)
		if err == nil {
			cred := credential.NewStaticTokenCredential(token)
			graph, gerr := r.deps.GraphFactory(cred)
			if gerr != nil {
				return nil, nil, "", gerr
			}
			var collector inventory.CostCollector
			if r.deps.CostFactory != nil {
				if collector, gerr = r.deps.CostFactory(cred); gerr != nil {
					logger.Warn().Err(gerr).Msg("cost collector unavailable for delegated credential")
					collector = nil
				}
			}
			return graph, collector, domain.CredentialPathDelegated, nil
		}
		delegatedErr = err
		logger.Warn().Err(err).Msg("delegated credential unavailable, trying platform fallback")
	}

	if r.deps.Platform != nil {
		graph, collector, err := r.deps.Platform()
		if err == nil {
			return graph, collector, domain.CredentialPathPlatform, nil
		}
		logger.Warn().Err(err).Msg("platform credential unavailable")
	}

	if delegatedErr != nil {
		return nil, nil, "", delegatedErr
	}
	return nil, nil, "", credential.ErrNoCredential
}

func (r *Runner) collectCosts(ctx context.Context, collector inventory.CostCollector) []domain.CostRow {
	logger := zerolog.Ctx(ctx)

	var rows []domain.CostRow
	for _, subID := range r.env.SubscriptionIDs {
		if ctx.Err() != nil {
			return rows
		}
		subRows, err := collector.Collect(ctx, subID, 30)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("subscription_id", subID).
				Msg("cost collection failed, continuing without cost data")
			continue
		}
		rows = append(rows, subRows...)
	}
	return rows
}

// persist writes resources and findings atomically: a partially persisted
// assessment is never visible.
func (r *Runner) persist(ctx context.Context, inv domain.Inventory, results []domain.AnalysisResult) error {
	resources := make([]store.StoredResource, 0, len(inv.Resources))
	for _, snap := range inv.Resources {
		resources = append(resources, adapters.MapSnapshotDomainToStore(r.assessment.ID, snap))
	}

	var findings []store.Finding
	for _, result := range results {
		for _, violation := range result.Violations {
			violation.ID = uuid.NewString()
			violation.AssessmentID = r.assessment.ID
			findings = append(findings, adapters.MapFindingDomainToStore(violation))
		}
	}

	tx, err := r.deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist transaction: %w", err)
	}
	txCtx := duckdb.WithTransaction(ctx, tx)

	if err := r.deps.Resources.Add(txCtx, resources); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := r.deps.Findings.Add(txCtx, findings); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// fail records the terminal failed state. Cancellation always wins the
// classification: a fetch error caused by a cancelled context is Cancelled,
// not FetchFailed.
func (r *Runner) fail(ctx context.Context, finalCtx context.Context, reason domain.FailureReason, cause error) {
	logger := zerolog.Ctx(finalCtx)

	if ctx.Err() != nil {
		reason = domain.FailureReasonCancelled
		cause = ctx.Err()
	}
	if errors.Is(cause, credential.ErrNoCredential) || errors.Is(cause, credential.ErrCredentialInvalid) {
		reason = domain.FailureReasonCredentialInvalid
	}

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}

	err := r.deps.Assessments.Fail(finalCtx, r.assessment.ID, string(reason), detail, r.now().UTC())
	if errors.Is(err, assessmentstore.ErrTerminal) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to record assessment failure")
		return
	}

	logger.Warn().
		Str("reason", string(reason)).
		Str("detail", detail).
		Msg("assessment failed")
}
