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

type ContestRepository interface {
	Create(ctx context.Context, tx *sql.Tx, contest *model.Contest) error
	FindByID(ctx context.Context, id string) (*model.Contest, error)
	FindByNumber(ctx context.Context, number int) (*model.Contest, error)
	// FindOngoing returns every contest flagged ongoing; callers decide what
	// zero or several rows mean.
	FindOngoing(ctx context.Context) ([]model.Contest, error)
	List(ctx context.Context) ([]model.Contest, error)
	CloseOngoing(ctx context.Context, tx *sql.Tx, at time.Time) (int64, error)
}

type sqlContestRepository struct {
	db *sql.DB
}

func NewSQLContestRepository(db *sql.DB) ContestRepository {
	return &sqlContestRepository{db: db}
}

const contestColumns = `id, contest_number, start_at, end_at, ongoing, created_at`

func scanContest(row rowScanner) (*model.Contest, error) {
	c := &model.Contest{}
	var end sql.NullTime
	if err := row.Scan(&c.ID, &c.ContestNumber, &c.Start, &end, &c.Ongoing, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.End = timePtr(end)
	return c, nil
}

func (r *sqlContestRepository) Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	defer metrics.RecordDBOperation("insert", "contests", time.Now())
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO contests (id, contest_number, start_at, end_at, ongoing, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := conn(r.db, tx).ExecContext(ctx, query, c.ID, c.ContestNumber, c.Start.UTC(), nullTime(c.End), c.Ongoing, c.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest %d already exists: %w", c.ContestNumber, common.ErrConflict)
		}
		return fmt.Errorf("sqlContestRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlContestRepository) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	c, err := scanContest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrContestNotFound
		}
		return nil, fmt.Errorf("sqlContestRepository.FindByID: %w", err)
	}
	return c, nil
}

func (r *sqlContestRepository) FindByNumber(ctx context.Context, number int) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE contest_number = $1`
	c, err := scanContest(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrContestNotFound
		}
		return nil, fmt.Errorf("sqlContestRepository.FindByNumber: %w", err)
	}
	return c, nil
}

func (r *sqlContestRepository) FindOngoing(ctx context.Context) ([]model.Contest, error) {
	defer metrics.RecordDBOperation("select", "contests", time.Now())
	query := `SELECT ` + contestColumns + ` FROM contests WHERE ongoing = $1 ORDER BY contest_number`
	return r.list(ctx, "FindOngoing", query, true)
}

func (r *sqlContestRepository) List(ctx context.Context) ([]model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests ORDER BY contest_number DESC`
	return r.list(ctx, "List", query)
}

func (r *sqlContestRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Contest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlContestRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlContestRepository.%s scan: %w", op, err)
		}
		contests = append(contests, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlContestRepository.%s rows: %w", op, err)
	}
	return contests, nil
}

// CloseOngoing clears the ongoing flag on every open contest and stamps a
// missing end time with at.
func (r *sqlContestRepository) CloseOngoing(ctx context.Context, tx *sql.Tx, at time.Time) (int64, error) {
	query := `UPDATE contests SET ongoing = $1, end_at = COALESCE(end_at, $2) WHERE ongoing = $3`
	res, err := conn(r.db, tx).ExecContext(ctx, query, false, at.UTC(), true)
	if err != nil {
		return 0, fmt.Errorf("sqlContestRepository.CloseOngoing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlContestRepository.CloseOngoing rows: %w", err)
	}
	return n, nil
}
