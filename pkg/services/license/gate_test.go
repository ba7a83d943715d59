package license

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
	licensestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/license"
)

type memLicenseStore struct {
	mu    sync.Mutex
	plans map[string]store.Plan
	usage map[string]int
}

func newMemLicenseStore() *memLicenseStore {
	return &memLicenseStore{
		plans: map[string]store.Plan{},
		usage: map[string]int{},
	}
}

func usageKey(orgID, period, metric string) string {
	return fmt.Sprintf("%s|%s|%s", orgID, period, metric)
}

func (m *memLicenseStore) GetPlan(_ context.Context, orgID string) (*store.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[orgID]
	if !ok {
		return nil, licensestore.ErrPlanNotFound
	}
	return &plan, nil
}

func (m *memLicenseStore) UpsertPlan(_ context.Context, plan store.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.OrgID] = plan
	return nil
}

func (m *memLicenseStore) GetUsage(_ context.Context, orgID, period, metric string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey(orgID, period, metric)], nil
}

func (m *memLicenseStore) IncrementUsage(_ context.Context, orgID, period, metric string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[usageKey(orgID, period, metric)]++
	return nil
}

func intPtr(v int) *int { return &v }

func gateAt(store licensestore.Store, at time.Time) *defaultGate {
	return &defaultGate{store: store, now: func() time.Time { return at }}
}

func TestCanStartAssessment_NoPlan(t *testing.T) {
	gate := NewGate(newMemLicenseStore())

	admission, err := gate.CanStartAssessment(context.Background(), "org-1")
	require.NoError(t, err)

	assert.False(t, admission.Allowed)
	assert.Equal(t, domain.AdmissionReasonNoPlan, admission.ReasonCode)
}

func TestCanStartAssessment_UnderLimit(t *testing.T) {
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(context.Background(), store.Plan{
		OrgID: "org-1", Name: "team", MaxAssessmentsPerMonth: intPtr(5),
	})

	gate := NewGate(mem)
	admission, err := gate.CanStartAssessment(context.Background(), "org-1")
	require.NoError(t, err)

	assert.True(t, admission.Allowed)
	assert.Equal(t, domain.AdmissionReasonAllowed, admission.ReasonCode)
	assert.Equal(t, 0, admission.CurrentUsage)
	assert.Equal(t, 5, admission.MaxAllowed)
}

func TestCanStartAssessment_LimitReached(t *testing.T) {
	ctx := context.Background()
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(ctx, store.Plan{
		OrgID: "org-1", Name: "team", MaxAssessmentsPerMonth: intPtr(5),
	})

	gate := NewGate(mem)
	for i := 0; i < 5; i++ {
		require.NoError(t, gate.RecordUsage(ctx, "org-1", domain.MetricAssessments))
	}

	admission, err := gate.CanStartAssessment(ctx, "org-1")
	require.NoError(t, err)

	assert.False(t, admission.Allowed)
	assert.Equal(t, domain.AdmissionReasonLimitReached, admission.ReasonCode)
	assert.Equal(t, 5, admission.CurrentUsage)
	assert.Equal(t, 5, admission.MaxAllowed)
}

func TestCanStartAssessment_Unlimited(t *testing.T) {
	ctx := context.Background()
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(ctx, store.Plan{OrgID: "org-1", Name: "enterprise"})

	gate := NewGate(mem)
	for i := 0; i < 100; i++ {
		require.NoError(t, gate.RecordUsage(ctx, "org-1", domain.MetricAssessments))
	}

	admission, err := gate.CanStartAssessment(ctx, "org-1")
	require.NoError(t, err)

	assert.True(t, admission.Allowed)
	assert.True(t, admission.Unlimited)
}

func TestCanStartAssessment_CounterResetsAcrossMonths(t *testing.T) {
	ctx := context.Background()
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(ctx, store.Plan{
		OrgID: "org-1", Name: "team", MaxAssessmentsPerMonth: intPtr(1),
	})

	january := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	february := time.Date(2026, 2, 1, 0, 30, 0, 0, time.UTC)

	janGate := gateAt(mem, january)
	require.NoError(t, janGate.RecordUsage(ctx, "org-1", domain.MetricAssessments))

	admission, err := janGate.CanStartAssessment(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, admission.Allowed)

	febGate := gateAt(mem, february)
	admission, err = febGate.CanStartAssessment(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, admission.Allowed)
	assert.Equal(t, 0, admission.CurrentUsage)
}

func TestPeriodKey_UTC(t *testing.T) {
	// 23:30 local on Jan 31 in UTC+3 is already February in that zone,
	// but the counter key follows UTC.
	zone := time.FixedZone("UTC+3", 3*60*60)
	at := time.Date(2026, 2, 1, 1, 30, 0, 0, zone)

	assert.Equal(t, "2026-01", PeriodKey(at))
}

func TestHasFeature(t *testing.T) {
	ctx := context.Background()
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(ctx, store.Plan{
		OrgID:    "org-1",
		Name:     "team",
		Features: map[string]bool{"api_access": true},
	})

	gate := NewGate(mem)

	ok, err := gate.HasFeature(ctx, "org-1", domain.FeatureAPIAccess)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.HasFeature(ctx, "org-1", domain.FeatureWhiteLabel)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.HasFeature(ctx, "org-unknown", domain.FeatureAPIAccess)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaxSubscriptions(t *testing.T) {
	ctx := context.Background()
	mem := newMemLicenseStore()
	_ = mem.UpsertPlan(ctx, store.Plan{
		OrgID: "org-1", Name: "team", MaxSubscriptions: intPtr(10),
	})

	gate := NewGate(mem)

	limit, err := gate.MaxSubscriptions(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, 10, *limit)

	limit, err = gate.MaxSubscriptions(ctx, "org-unknown")
	require.NoError(t, err)
	assert.Nil(t, limit)
}
