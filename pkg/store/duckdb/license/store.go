package license

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

// Store holds organization plans and per-billing-period usage counters.
type Store interface {
	GetPlan(ctx context.Context, orgID string) (*store.Plan, error)
	UpsertPlan(ctx context.Context, plan store.Plan) error
	GetUsage(ctx context.Context, orgID, period, metric string) (int, error)
	// IncrementUsage bumps the counter by one in a single statement, so
	// concurrent increments for the same key serialize at the database.
	IncrementUsage(ctx context.Context, orgID, period, metric string) error
}

var ErrPlanNotFound = fmt.Errorf("plan not found")

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) GetPlan(ctx context.Context, orgID string) (*store.Plan, error) {
	query := `
		SELECT org_id, name, max_assessments_per_month, max_subscriptions, features
		FROM org_plans WHERE org_id = ?`

	var (
		plan              store.Plan
		maxAssess, maxSub sql.NullInt64
		featuresRaw       []byte
	)
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&plan.OrgID, &plan.Name, &maxAssess, &maxSub, &featuresRaw,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if maxAssess.Valid {
		v := int(maxAssess.Int64)
		plan.MaxAssessmentsPerMonth = &v
	}
	if maxSub.Valid {
		v := int(maxSub.Int64)
		plan.MaxSubscriptions = &v
	}
	plan.Features = map[string]bool{}
	if len(featuresRaw) > 0 {
		_ = json.Unmarshal(featuresRaw, &plan.Features)
	}
	return &plan, nil
}

func (s *defaultStore) UpsertPlan(ctx context.Context, plan store.Plan) error {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	query := `
		INSERT INTO org_plans (org_id, name, max_assessments_per_month, max_subscriptions, features)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org_id) DO UPDATE SET
			name = excluded.name,
			max_assessments_per_month = excluded.max_assessments_per_month,
			max_subscriptions = excluded.max_subscriptions,
			features = excluded.features`

	_, err = s.db.ExecContext(ctx, query,
		plan.OrgID, plan.Name, duckdb.NullInt(plan.MaxAssessmentsPerMonth),
		duckdb.NullInt(plan.MaxSubscriptions), features,
	)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

func (s *defaultStore) GetUsage(ctx context.Context, orgID, period, metric string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM usage_counters
		 WHERE org_id = ? AND period = ? AND metric = ?`,
		orgID, period, metric,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	return count, nil
}

func (s *defaultStore) IncrementUsage(ctx context.Context, orgID, period, metric string) error {
	query := `
		INSERT INTO usage_counters (org_id, period, metric, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (org_id, period, metric) DO UPDATE SET
			count = usage_counters.count + 1`

	_, err := s.db.ExecContext(ctx, query, orgID, period, metric)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}
