package finding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veridia/attestor/internal/model"
)

// PostgresStore persists findings in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS findings (
			id              TEXT PRIMARY KEY,
			control_id      TEXT NOT NULL,
			assessment_id   TEXT NOT NULL,
			version         INT NOT NULL,
			status          TEXT NOT NULL,
			confidence      INT NOT NULL,
			narrative       TEXT NOT NULL DEFAULT '',
			evidence        JSONB,
			gaps            JSONB,
			recommendations JSONB,
			model_used      TEXT NOT NULL DEFAULT '',
			review_state    TEXT NOT NULL,
			inherited       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (control_id, assessment_id, version)
		);
		CREATE INDEX IF NOT EXISTS findings_assessment_idx
			ON findings (assessment_id, control_id, version DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure findings schema: %w", err)
	}
	return nil
}

// Save appends the finding as the next version for its control and assessment.
func (s *PostgresStore) Save(ctx context.Context, f *model.Finding) error {
	f.ID = uuid.NewString()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	evidence, err := json.Marshal(f.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	gaps, err := json.Marshal(f.Gaps)
	if err != nil {
		return fmt.Errorf("marshal gaps: %w", err)
	}
	recommendations, err := json.Marshal(f.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO findings (
			id, control_id, assessment_id, version, status, confidence,
			narrative, evidence, gaps, recommendations, model_used,
			review_state, inherited, created_at
		)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(version), 0) + 1
			   FROM findings WHERE control_id = $2 AND assessment_id = $3),
			$4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING version
	`, f.ID, f.ControlID, f.AssessmentID, f.Status, f.Confidence,
		f.Narrative, evidence, gaps, recommendations, f.ModelUsed,
		f.ReviewState, f.Inherited, f.CreatedAt)

	if err := row.Scan(&f.Version); err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

const findingColumns = `id, control_id, assessment_id, version, status, confidence,
	narrative, evidence, gaps, recommendations, model_used,
	review_state, inherited, created_at`

// Latest returns the newest version for the control and assessment.
func (s *PostgresStore) Latest(ctx context.Context, controlID, assessmentID string) (*model.Finding, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+findingColumns+`
		FROM findings
		WHERE control_id = $1 AND assessment_id = $2
		ORDER BY version DESC
		LIMIT 1
	`, controlID, assessmentID)

	f, err := scanFinding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest finding: %w", err)
	}
	return f, nil
}

// Versions returns all versions for the control and assessment, oldest first.
func (s *PostgresStore) Versions(ctx context.Context, controlID, assessmentID string) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+findingColumns+`
		FROM findings
		WHERE control_id = $1 AND assessment_id = $2
		ORDER BY version ASC
	`, controlID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query finding versions: %w", err)
	}
	defer rows.Close()

	out, err := collectFindings(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// ByAssessment returns the latest version of every finding in the assessment.
func (s *PostgresStore) ByAssessment(ctx context.Context, assessmentID string) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (control_id) `+findingColumns+`
		FROM findings
		WHERE assessment_id = $1
		ORDER BY control_id, version DESC
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query assessment findings: %w", err)
	}
	defer rows.Close()

	return collectFindings(rows)
}

// UpdateReview changes the review state of the finding with the given ID.
func (s *PostgresStore) UpdateReview(ctx context.Context, id string, state model.ReviewState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE findings SET review_state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("update review state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanFinding(row pgx.Row) (*model.Finding, error) {
	var f model.Finding
	var evidence, gaps, recommendations []byte

	err := row.Scan(&f.ID, &f.ControlID, &f.AssessmentID, &f.Version, &f.Status,
		&f.Confidence, &f.Narrative, &evidence, &gaps, &recommendations,
		&f.ModelUsed, &f.ReviewState, &f.Inherited, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &f.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
	}
	if len(gaps) > 0 {
		if err := json.Unmarshal(gaps, &f.Gaps); err != nil {
			return nil, fmt.Errorf("unmarshal gaps: %w", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &f.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshal recommendations: %w", err)
		}
	}
	return &f, nil
}

func collectFindings(rows pgx.Rows) ([]model.Finding, error) {
	var out []model.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}
