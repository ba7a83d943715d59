package finding

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

// Store persists findings. Findings are write-once per assessment: Add is
// called exactly once by the runner, reads and the cascading delete are the
// only other operations.
type Store interface {
	Add(ctx context.Context, findings []store.Finding) error
	List(ctx context.Context, assessmentID string, offset, limit int) ([]store.Finding, error)
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

func (s *defaultStore) Add(ctx context.Context, findings []store.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx := duckdb.GetTransaction(ctx)
	query := `
		INSERT INTO findings (
			id, assessment_id, resource_id, resource_name, resource_type,
			category, severity, issue, recommendation, effort
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

	for _, f := range findings {
		_, err = stmt.ExecContext(ctx,
			f.ID, f.AssessmentID, f.ResourceID, f.ResourceName,
			f.ResourceType, f.Category, f.Severity, f.Issue,
			f.Recommendation, f.Effort,
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	return nil
}

func (s *defaultStore) List(ctx context.Context, assessmentID string, offset, limit int) ([]store.Finding, error) {
	query := `
		SELECT id, assessment_id, resource_id, resource_name, resource_type,
		       category, severity, issue, recommendation, effort
		FROM findings
		WHERE assessment_id = ?
		ORDER BY severity DESC, resource_name, id
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, assessmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	findings := make([]store.Finding, 0)
	for rows.Next() {
		var f store.Finding
		err := rows.Scan(
			&f.ID, &f.AssessmentID, &f.ResourceID, &f.ResourceName,
			&f.ResourceType, &f.Category, &f.Severity, &f.Issue,
			&f.Recommendation, &f.Effort,
		)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *defaultStore) Count(ctx context.Context, assessmentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM findings WHERE assessment_id = ?`, assessmentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count findings: %w", err)
	}
	return count, nil
}

func (s *defaultStore) DeleteByAssessment(ctx context.Context, assessmentID string) error {
	query := `DELETE FROM findings WHERE assessment_id = ?`
	var err error
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		_, err = tx.ExecContext(ctx, query, assessmentID)
	} else {
		_, err = s.db.ExecContext(ctx, query, assessmentID)
	}
	if err != nil {
		return fmt.Errorf("delete findings: %w", err)
	}
	return nil
}
