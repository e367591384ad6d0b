package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

type ScrambleRepository interface {
	Create(ctx context.Context, tx *sql.Tx, s *model.Scramble) error
	FindByID(ctx context.Context, id string) (*model.Scramble, error)
	// ListForRound returns regular scrambles then extras, each by position.
	ListForRound(ctx context.Context, contestID, disciplineID string) ([]model.Scramble, error)
}

type sqlScrambleRepository struct {
	db *sql.DB
}

func NewSQLScrambleRepository(db *sql.DB) ScrambleRepository {
	return &sqlScrambleRepository{db: db}
}

func (r *sqlScrambleRepository) Create(ctx context.Context, tx *sql.Tx, s *model.Scramble) error {
	query := `INSERT INTO scrambles (id, contest_id, discipline_id, position, extra, moves)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := conn(r.db, tx).ExecContext(ctx, query, s.ID, s.ContestID, s.DisciplineID, s.Position, s.Extra, s.Moves)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("scramble position %d (extra=%t) already exists: %w", s.Position, s.Extra, common.ErrConflict)
		}
		return fmt.Errorf("sqlScrambleRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlScrambleRepository) FindByID(ctx context.Context, id string) (*model.Scramble, error) {
	query := `SELECT id, contest_id, discipline_id, position, extra, moves FROM scrambles WHERE id = $1`
	s := &model.Scramble{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.ContestID, &s.DisciplineID, &s.Position, &s.Extra, &s.Moves)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlScrambleRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *sqlScrambleRepository) ListForRound(ctx context.Context, contestID, disciplineID string) ([]model.Scramble, error) {
	query := `SELECT id, contest_id, discipline_id, position, extra, moves FROM scrambles
	          WHERE contest_id = $1 AND discipline_id = $2
	          ORDER BY extra, position`
	rows, err := r.db.QueryContext(ctx, query, contestID, disciplineID)
	if err != nil {
		return nil, fmt.Errorf("sqlScrambleRepository.ListForRound: %w", err)
	}
	defer rows.Close()

	var out []model.Scramble
	for rows.Next() {
		var s model.Scramble
		if err := rows.Scan(&s.ID, &s.ContestID, &s.DisciplineID, &s.Position, &s.Extra, &s.Moves); err != nil {
			return nil, fmt.Errorf("sqlScrambleRepository.ListForRound scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
