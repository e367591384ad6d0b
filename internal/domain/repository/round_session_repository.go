package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

type RoundSessionRepository interface {
	FindByKey(ctx context.Context, key model.RoundSessionKey) (*model.RoundSession, error)
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.RoundSession, error)
	// GetOrCreate is atomic on the (contest, discipline, user) unique key:
	// concurrent callers all observe the same row. created reports whether
	// this call inserted it.
	//
	// The row stays locked until tx ends, and the returned state is read
	// after the lock is held. A MarkFinished that commits first is seen as
	// IsFinished; one that comes later waits for tx. Either way nothing
	// written under tx lands in a session already finished.
	GetOrCreate(ctx context.Context, tx *sql.Tx, key model.RoundSessionKey) (session *model.RoundSession, created bool, err error)
	// Lock takes the same row lock as GetOrCreate for an existing session.
	Lock(ctx context.Context, tx *sql.Tx, id string) (*model.RoundSession, error)
	// MarkFinished moves an active session to finished. It reports false when
	// the session was already finished.
	MarkFinished(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error)
	ListForRound(ctx context.Context, contestID, disciplineID string, finishedOnly bool) ([]model.RoundSession, error)
	ListUnfinished(ctx context.Context, contestID string) ([]model.RoundSession, error)
}

type sqlRoundSessionRepository struct {
	db *sql.DB
}

func NewSQLRoundSessionRepository(db *sql.DB) RoundSessionRepository {
	return &sqlRoundSessionRepository{db: db}
}

const roundSessionColumns = `id, contest_id, discipline_id, user_id, submitted, is_finished, created_at, finished_at`

func scanRoundSession(row rowScanner) (*model.RoundSession, error) {
	s := &model.RoundSession{}
	var finishedAt sql.NullTime
	err := row.Scan(&s.ID, &s.ContestID, &s.DisciplineID, &s.UserID, &s.Submitted, &s.IsFinished, &s.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	s.FinishedAt = timePtr(finishedAt)
	return s, nil
}

func (r *sqlRoundSessionRepository) FindByKey(ctx context.Context, key model.RoundSessionKey) (*model.RoundSession, error) {
	defer metrics.RecordDBOperation("select", "round_sessions", time.Now())
	return r.findByKey(ctx, r.db, key)
}

func (r *sqlRoundSessionRepository) findByKey(ctx context.Context, q querier, key model.RoundSessionKey) (*model.RoundSession, error) {
	query := `SELECT ` + roundSessionColumns + ` FROM round_sessions
	          WHERE contest_id = $1 AND discipline_id = $2 AND user_id = $3`
	s, err := scanRoundSession(q.QueryRowContext(ctx, query, key.ContestID, key.DisciplineID, key.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRoundSessionNotFound
		}
		return nil, fmt.Errorf("sqlRoundSessionRepository.FindByKey: %w", err)
	}
	return s, nil
}

func (r *sqlRoundSessionRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.RoundSession, error) {
	query := `SELECT ` + roundSessionColumns + ` FROM round_sessions WHERE id = $1`
	s, err := scanRoundSession(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRoundSessionNotFound
		}
		return nil, fmt.Errorf("sqlRoundSessionRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *sqlRoundSessionRepository) GetOrCreate(ctx context.Context, tx *sql.Tx, key model.RoundSessionKey) (*model.RoundSession, bool, error) {
	defer metrics.RecordDBOperation("upsert", "round_sessions", time.Now())
	q := conn(r.db, tx)

	insert := `INSERT INTO round_sessions (id, contest_id, discipline_id, user_id, submitted, is_finished, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)
	           ON CONFLICT (contest_id, discipline_id, user_id) DO NOTHING`
	res, err := q.ExecContext(ctx, insert, uuid.NewString(), key.ContestID, key.DisciplineID, key.UserID, false, false, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("sqlRoundSessionRepository.GetOrCreate insert: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlRoundSessionRepository.GetOrCreate rows: %w", err)
	}

	// ON CONFLICT DO NOTHING leaves an existing row unlocked. The no-op
	// update locks it, and the select below then reads the latest committed
	// state (FOR UPDATE is not portable to SQLite).
	lock := `UPDATE round_sessions SET is_finished = is_finished
	         WHERE contest_id = $1 AND discipline_id = $2 AND user_id = $3`
	if _, err := q.ExecContext(ctx, lock, key.ContestID, key.DisciplineID, key.UserID); err != nil {
		return nil, false, fmt.Errorf("sqlRoundSessionRepository.GetOrCreate lock: %w", err)
	}

	s, err := r.findByKey(ctx, q, key)
	if err != nil {
		return nil, false, err
	}
	return s, inserted == 1, nil
}

func (r *sqlRoundSessionRepository) Lock(ctx context.Context, tx *sql.Tx, id string) (*model.RoundSession, error) {
	lock := `UPDATE round_sessions SET is_finished = is_finished WHERE id = $1`
	res, err := conn(r.db, tx).ExecContext(ctx, lock, id)
	if err != nil {
		return nil, fmt.Errorf("sqlRoundSessionRepository.Lock: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("sqlRoundSessionRepository.Lock rows: %w", err)
	} else if n == 0 {
		return nil, common.ErrRoundSessionNotFound
	}
	return r.FindByID(ctx, tx, id)
}

func (r *sqlRoundSessionRepository) MarkFinished(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error) {
	query := `UPDATE round_sessions SET is_finished = $1, submitted = $2, finished_at = $3
	          WHERE id = $4 AND is_finished = $5`
	res, err := conn(r.db, tx).ExecContext(ctx, query, true, true, at.UTC(), id, false)
	if err != nil {
		return false, fmt.Errorf("sqlRoundSessionRepository.MarkFinished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlRoundSessionRepository.MarkFinished rows: %w", err)
	}
	return n == 1, nil
}

func (r *sqlRoundSessionRepository) ListForRound(ctx context.Context, contestID, disciplineID string, finishedOnly bool) ([]model.RoundSession, error) {
	query := `SELECT ` + roundSessionColumns + ` FROM round_sessions
	          WHERE contest_id = $1 AND discipline_id = $2`
	args := []any{contestID, disciplineID}
	if finishedOnly {
		query += ` AND is_finished = $3`
		args = append(args, true)
	}
	query += ` ORDER BY created_at, id`
	return r.list(ctx, "ListForRound", query, args...)
}

func (r *sqlRoundSessionRepository) ListUnfinished(ctx context.Context, contestID string) ([]model.RoundSession, error) {
	query := `SELECT ` + roundSessionColumns + ` FROM round_sessions
	          WHERE contest_id = $1 AND is_finished = $2 ORDER BY created_at, id`
	return r.list(ctx, "ListUnfinished", query, contestID, false)
}

func (r *sqlRoundSessionRepository) list(ctx context.Context, op, query string, args ...any) ([]model.RoundSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlRoundSessionRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var out []model.RoundSession
	for rows.Next() {
		s, err := scanRoundSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlRoundSessionRepository.%s scan: %w", op, err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
