package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

// Store persists assessment records. Status transitions go through
// MarkInProgress/Complete/Fail which refuse to leave a terminal state.
type Store interface {
	Create(ctx context.Context, rec store.Assessment) error
	Get(ctx context.Context, id string) (*store.Assessment, error)
	List(ctx context.Context, orgID string) ([]store.Assessment, error)
	MarkInProgress(ctx context.Context, id string, startedAt time.Time) error
	SetCredentialPath(ctx context.Context, id string, path string) error
	Complete(ctx context.Context, id string, score float64, categoryScores map[string]float64, completedAt time.Time) error
	Fail(ctx context.Context, id string, reason string, detail string, completedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

var ErrNotFound = fmt.Errorf("assessment not found")

// ErrTerminal is returned when a transition is attempted on a completed or
// failed assessment.
var ErrTerminal = fmt.Errorf("assessment already in a terminal state")

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) Create(ctx context.Context, rec store.Assessment) error {
	query := `
		INSERT INTO assessments (
			id, org_id, client_id, environment_id, type, status, score,
			category_scores, failure_reason, failure_detail, credential_path,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.exec(ctx, query,
		rec.ID, rec.OrgID, duckdb.NullString(rec.ClientID), rec.EnvironmentID, rec.Type,
		rec.Status, duckdb.NullFloat(rec.Score), nil,
		duckdb.NullString(rec.FailureReason), duckdb.NullString(rec.FailureDetail),
		rec.CredentialPath, rec.CreatedAt,
		duckdb.NullTime(rec.StartedAt), duckdb.NullTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *defaultStore) Get(ctx context.Context, id string) (*store.Assessment, error) {
	query := `
		SELECT id, org_id, client_id, environment_id, type, status, score,
		       category_scores, failure_reason, failure_detail, credential_path,
		       created_at, started_at, completed_at
		FROM assessments WHERE id = ?`

	rec, err := scanAssessment(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return rec, nil
}

func (s *defaultStore) List(ctx context.Context, orgID string) ([]store.Assessment, error) {
	query := `
		SELECT id, org_id, client_id, environment_id, type, status, score,
		       category_scores, failure_reason, failure_detail, credential_path,
		       created_at, started_at, completed_at
		FROM assessments WHERE org_id = ?
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	records := make([]store.Assessment, 0)
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *defaultStore) MarkInProgress(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE assessments SET status = 'in_progress', started_at = ?
		WHERE id = ? AND status = 'pending'`
	return s.transition(ctx, id, query, startedAt, id)
}

func (s *defaultStore) SetCredentialPath(ctx context.Context, id string, path string) error {
	_, err := s.exec(ctx, `UPDATE assessments SET credential_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("set credential path: %w", err)
	}
	return nil
}

func (s *defaultStore) Complete(ctx context.Context, id string, score float64, categoryScores map[string]float64, completedAt time.Time) error {
	scores, err := json.Marshal(categoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}
	query := `
		UPDATE assessments
		SET status = 'completed', score = ?, category_scores = ?, completed_at = ?
		WHERE id = ? AND status = 'in_progress'`
	return s.transition(ctx, id, query, score, scores, completedAt, id)
}

func (s *defaultStore) Fail(ctx context.Context, id string, reason string, detail string, completedAt time.Time) error {
	query := `
		UPDATE assessments
		SET status = 'failed', failure_reason = ?, failure_detail = ?, completed_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress')`
	return s.transition(ctx, id, query, reason, detail, completedAt, id)
}

func (s *defaultStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	return nil
}

// transition runs a guarded status update; zero affected rows means the
// record is missing or already terminal.
func (s *defaultStore) transition(ctx context.Context, id string, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update assessment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assessment status: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

func (s *defaultStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*store.Assessment, error) {
	var (
		rec                    store.Assessment
		clientID               sql.NullString
		score                  sql.NullFloat64
		scoresRaw              []byte
		reason, detail         sql.NullString
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.OrgID, &clientID, &rec.EnvironmentID, &rec.Type,
		&rec.Status, &score, &scoresRaw, &reason, &detail, &rec.CredentialPath,
		&rec.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(scoresRaw) > 0 {
		_ = json.Unmarshal(scoresRaw, &rec.CategoryScores)
	}
	if clientID.Valid {
		rec.ClientID = &clientID.String
	}
	if score.Valid {
		rec.Score = &score.Float64
	}
	if reason.Valid {
		rec.FailureReason = &reason.String
	}
	if detail.Valid {
		rec.FailureDetail = &detail.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}
