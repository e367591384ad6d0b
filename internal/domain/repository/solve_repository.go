package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

type SolveRepository interface {
	// Create fails with common.ErrConflict when a solve already exists for the
	// same (contest, discipline, user, scramble).
	Create(ctx context.Context, tx *sql.Tx, solve *model.Solve) error
	FindByID(ctx context.Context, id string) (*model.Solve, error)
	FindByKey(ctx context.Context, key model.SolveKey) (*model.Solve, error)
	ListForUserRound(ctx context.Context, contestID, disciplineID, userID string) ([]model.Solve, error)
	ListForSession(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.Solve, error)
	ListForRound(ctx context.Context, contestID, disciplineID string) ([]model.Solve, error)
	// UpdateState moves a solve from one state to another. It fails with
	// common.ErrConflict if the solve is no longer in from.
	UpdateState(ctx context.Context, tx *sql.Tx, id string, from, to model.SubmissionState) error
}

type sqlSolveRepository struct {
	db *sql.DB
}

func NewSQLSolveRepository(db *sql.DB) SolveRepository {
	return &sqlSolveRepository{db: db}
}

const solveColumns = `id, contest_id, discipline_id, user_id, scramble_id, round_session_id,
	time_ms, is_dnf, reconstruction, submission_state, created_at, updated_at`

func scanSolve(row rowScanner) (*model.Solve, error) {
	s := &model.Solve{}
	var timeMs sql.NullInt64
	var state string
	err := row.Scan(&s.ID, &s.ContestID, &s.DisciplineID, &s.UserID, &s.ScrambleID, &s.RoundSessionID,
		&timeMs, &s.IsDNF, &s.Reconstruction, &state, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.TimeMs = intPtr(timeMs)
	s.SubmissionState = model.SubmissionState(state)
	return s, nil
}

func (r *sqlSolveRepository) Create(ctx context.Context, tx *sql.Tx, s *model.Solve) error {
	defer metrics.RecordDBOperation("insert", "solves", time.Now())
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt

	query := `INSERT INTO solves (id, contest_id, discipline_id, user_id, scramble_id, round_session_id,
	              time_ms, is_dnf, reconstruction, submission_state, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := conn(r.db, tx).ExecContext(ctx, query,
		s.ID, s.ContestID, s.DisciplineID, s.UserID, s.ScrambleID, s.RoundSessionID,
		nullInt(s.TimeMs), s.IsDNF, s.Reconstruction, string(s.SubmissionState), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("solve for scramble %s already exists: %w", s.ScrambleID, common.ErrConflict)
		}
		return fmt.Errorf("sqlSolveRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlSolveRepository) FindByID(ctx context.Context, id string) (*model.Solve, error) {
	query := `SELECT ` + solveColumns + ` FROM solves WHERE id = $1`
	s, err := scanSolve(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrSolveNotFound
		}
		return nil, fmt.Errorf("sqlSolveRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *sqlSolveRepository) FindByKey(ctx context.Context, key model.SolveKey) (*model.Solve, error) {
	defer metrics.RecordDBOperation("select", "solves", time.Now())
	query := `SELECT ` + solveColumns + ` FROM solves
	          WHERE contest_id = $1 AND discipline_id = $2 AND user_id = $3 AND scramble_id = $4`
	s, err := scanSolve(r.db.QueryRowContext(ctx, query, key.ContestID, key.DisciplineID, key.UserID, key.ScrambleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrSolveNotFound
		}
		return nil, fmt.Errorf("sqlSolveRepository.FindByKey: %w", err)
	}
	return s, nil
}

func (r *sqlSolveRepository) ListForUserRound(ctx context.Context, contestID, disciplineID, userID string) ([]model.Solve, error) {
	query := `SELECT ` + solveColumns + ` FROM solves
	          WHERE contest_id = $1 AND discipline_id = $2 AND user_id = $3
	          ORDER BY created_at, id`
	return r.list(ctx, r.db, "ListForUserRound", query, contestID, disciplineID, userID)
}

func (r *sqlSolveRepository) ListForSession(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.Solve, error) {
	query := `SELECT ` + solveColumns + ` FROM solves WHERE round_session_id = $1 ORDER BY created_at, id`
	return r.list(ctx, conn(r.db, tx), "ListForSession", query, sessionID)
}

func (r *sqlSolveRepository) ListForRound(ctx context.Context, contestID, disciplineID string) ([]model.Solve, error) {
	query := `SELECT ` + solveColumns + ` FROM solves
	          WHERE contest_id = $1 AND discipline_id = $2
	          ORDER BY round_session_id, created_at, id`
	return r.list(ctx, r.db, "ListForRound", query, contestID, disciplineID)
}

func (r *sqlSolveRepository) list(ctx context.Context, q querier, op, query string, args ...any) ([]model.Solve, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlSolveRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var out []model.Solve
	for rows.Next() {
		s, err := scanSolve(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlSolveRepository.%s scan: %w", op, err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *sqlSolveRepository) UpdateState(ctx context.Context, tx *sql.Tx, id string, from, to model.SubmissionState) error {
	defer metrics.RecordDBOperation("update", "solves", time.Now())
	query := `UPDATE solves SET submission_state = $1, updated_at = $2
	          WHERE id = $3 AND submission_state = $4`
	res, err := conn(r.db, tx).ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("sqlSolveRepository.UpdateState: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlSolveRepository.UpdateState rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("solve %s is not %s: %w", id, from, common.ErrConflict)
	}
	return nil
}
