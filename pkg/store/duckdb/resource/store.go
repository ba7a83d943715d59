package resource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

// Store persists the resource snapshots of an assessment for later
// pagination and export.
type Store interface {
	Add(ctx context.Context, resources []store.StoredResource) error
	List(ctx context.Context, assessmentID string, offset, limit int) ([]store.StoredResource, error)
	Count(ctx context.Context, assessmentID string) (int, error)
	DeleteByAssessment(ctx context.Context, assessmentID string) error
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) Add(ctx context.Context, resources []store.StoredResource) error {
	if len(resources) == 0 {
		return nil
	}

	tx := duckdb.GetTransaction(ctx)
	query := `
		INSERT INTO stored_resources (
			id, assessment_id, name, type, resource_group, location,
			subscription_id, tags, sku, kind
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var stmt *sql.Stmt
	var err error
	if tx == nil {
		stmt, err = s.db.PrepareContext(ctx, query)
	} else {
		stmt, err = tx.PrepareContext(ctx, query)
	}
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range resources {
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, r.AssessmentID, r.Name, r.Type, r.ResourceGroup,
			r.Location, r.SubscriptionID, tags, r.SKU, r.Kind,
		)
		if err != nil {
			return fmt.Errorf("insert resource: %w", err)
		}
	}
	return nil
}

func (s *defaultStore) List(ctx context.Context, assessmentID string, offset, limit int) ([]store.StoredResource, error) {
	query := `
		SELECT id, assessment_id, name, type, resource_group, location,
		       subscription_id, tags, sku, kind
		FROM stored_resources
		WHERE assessment_id = ?
		ORDER BY subscription_id, name
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, assessmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	resources := make([]store.StoredResource, 0)
	for rows.Next() {
		var (
			r       store.StoredResource
			tagsRaw []byte
		)
		err := rows.Scan(
			&r.ID, &r.AssessmentID, &r.Name, &r.Type, &r.ResourceGroup,
			&r.Location, &r.SubscriptionID, &tagsRaw, &r.SKU, &r.Kind,
		)
		if err != nil {
			return nil, err
		}
		r.Tags = map[string]string{}
		if len(tagsRaw) > 0 {
			_ = json.Unmarshal(tagsRaw, &r.Tags)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func (s *defaultStore) Count(ctx context.Context, assessmentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stored_resources WHERE assessment_id = ?`, assessmentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

func (s *defaultStore) DeleteByAssessment(ctx context.Context, assessmentID string) error {
	query := `DELETE FROM stored_resources WHERE assessment_id = ?`
	var err error
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		_, err = tx.ExecContext(ctx, query, assessmentID)
	} else {
		_, err = s.db.ExecContext(ctx, query, assessmentID)
	}
	if err != nil {
		return fmt.Errorf("delete resources: %w", err)
	}
	return nil
}
