package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	licensestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/license"
)

// Gate answers admission questions against an organization's plan and the
// usage recorded for the current billing period. Billing periods are calendar
// months in UTC regardless of the organization's timezone.
type Gate interface {
	CanStartAssessment(ctx context.Context, orgID string) (domain.Admission, error)
	RecordUsage(ctx context.Context, orgID string, metric domain.UsageMetric) error
	HasFeature(ctx context.Context, orgID string, feature domain.Feature) (bool, error)
	MaxSubscriptions(ctx context.Context, orgID string) (*int, error)
}

type defaultGate struct {
	store licensestore.Store
	now   func() time.Time
}

func NewGate(store licensestore.Store) Gate {
	return &defaultGate{store: store, now: time.Now}
}

// PeriodKey derives the usage-counter period for a point in time.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (g *defaultGate) CanStartAssessment(ctx context.Context, orgID string) (domain.Admission, error) {
	plan, err := g.store.GetPlan(ctx, orgID)
	if errors.Is(err, licensestore.ErrPlanNotFound) {
		return domain.Admission{ReasonCode: domain.AdmissionReasonNoPlan}, nil
	}
	if err != nil {
		return domain.Admission{}, fmt.Errorf("load plan: %w", err)
	}

	if plan.MaxAssessmentsPerMonth == nil {
		return domain.Admission{
			Allowed:    true,
			ReasonCode: domain.AdmissionReasonAllowed,
			Unlimited:  true,
		}, nil
	}

	period := PeriodKey(g.now())
	usage, err := g.store.GetUsage(ctx, orgID, period, string(domain.MetricAssessments))
	if err != nil {
		return domain.Admission{}, fmt.Errorf("load usage: %w", err)
	}

	admission := domain.Admission{
		CurrentUsage: usage,
		MaxAllowed:   *plan.MaxAssessmentsPerMonth,
	}
	if usage >= *plan.MaxAssessmentsPerMonth {
		admission.ReasonCode = domain.AdmissionReasonLimitReached
		zerolog.Ctx(ctx).Info().
			Str("org_id", orgID).
			Str("period", period).
			Int("usage", usage).
			Int("limit", *plan.MaxAssessmentsPerMonth).
			Msg("assessment denied: monthly limit reached")
		return admission, nil
	}

	admission.Allowed = true
	admission.ReasonCode = domain.AdmissionReasonAllowed
	return admission, nil
}

func (g *defaultGate) RecordUsage(ctx context.Context, orgID string, metric domain.UsageMetric) error {
	return g.store.IncrementUsage(ctx, orgID, PeriodKey(g.now()), string(metric))
}

func (g *defaultGate) HasFeature(ctx context.Context, orgID string, feature domain.Feature) (bool, error) {
	plan, err := g.store.GetPlan(ctx, orgID)
	if errors.Is(err, licensestore.ErrPlanNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load plan: %w", err)
	}
	return plan.Features[string(feature)], nil
}

func (g *defaultGate) MaxSubscriptions(ctx context.Context, orgID string) (*int, error) {
	plan, err := g.store.GetPlan(ctx, orgID)
	if errors.Is(err, licensestore.ErrPlanNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return plan.MaxSubscriptions, nil
}
