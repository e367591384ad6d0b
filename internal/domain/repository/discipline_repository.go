package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

type DisciplineRepository interface {
	// GetOrCreate returns the discipline with d.Slug, inserting d when absent.
	GetOrCreate(ctx context.Context, tx *sql.Tx, d *model.Discipline) (*model.Discipline, error)
	FindBySlug(ctx context.Context, slug string) (*model.Discipline, error)
	FindByID(ctx context.Context, id string) (*model.Discipline, error)
	List(ctx context.Context) ([]model.Discipline, error)
}

type sqlDisciplineRepository struct {
	db *sql.DB
}

func NewSQLDisciplineRepository(db *sql.DB) DisciplineRepository {
	return &sqlDisciplineRepository{db: db}
}

func (r *sqlDisciplineRepository) GetOrCreate(ctx context.Context, tx *sql.Tx, d *model.Discipline) (*model.Discipline, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	q := conn(r.db, tx)
	insert := `INSERT INTO disciplines (id, slug, name, created_at) VALUES ($1, $2, $3, $4)
	           ON CONFLICT (slug) DO NOTHING`
	if _, err := q.ExecContext(ctx, insert, d.ID, d.Slug, d.Name, d.CreatedAt); err != nil {
		return nil, fmt.Errorf("sqlDisciplineRepository.GetOrCreate insert: %w", err)
	}

	out := &model.Discipline{}
	query := `SELECT id, slug, name, created_at FROM disciplines WHERE slug = $1`
	if err := q.QueryRowContext(ctx, query, d.Slug).Scan(&out.ID, &out.Slug, &out.Name, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("sqlDisciplineRepository.GetOrCreate select: %w", err)
	}
	return out, nil
}

func (r *sqlDisciplineRepository) FindBySlug(ctx context.Context, slug string) (*model.Discipline, error) {
	return r.findOne(ctx, "FindBySlug", `SELECT id, slug, name, created_at FROM disciplines WHERE slug = $1`, slug)
}

func (r *sqlDisciplineRepository) FindByID(ctx context.Context, id string) (*model.Discipline, error) {
	return r.findOne(ctx, "FindByID", `SELECT id, slug, name, created_at FROM disciplines WHERE id = $1`, id)
}

func (r *sqlDisciplineRepository) findOne(ctx context.Context, op, query string, arg any) (*model.Discipline, error) {
	d := &model.Discipline{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&d.ID, &d.Slug, &d.Name, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrDisciplineNotFound
		}
		return nil, fmt.Errorf("sqlDisciplineRepository.%s: %w", op, err)
	}
	return d, nil
}

func (r *sqlDisciplineRepository) List(ctx context.Context) ([]model.Discipline, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, slug, name, created_at FROM disciplines ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("sqlDisciplineRepository.List: %w", err)
	}
	defer rows.Close()

	var out []model.Discipline
	for rows.Next() {
		var d model.Discipline
		if err := rows.Scan(&d.ID, &d.Slug, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlDisciplineRepository.List scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
