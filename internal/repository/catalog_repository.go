package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/title-reviews/internal/model"
)

// slugTable holds the queries shared by the categories and genres tables,
// which have identical (id, name, slug) shapes.
type slugTable struct {
	db    *sql.DB
	table string
}

type slugRow struct {
	ID   uint64
	Name string
	Slug string
}

func (t slugTable) list(ctx context.Context, name string, page model.Page) ([]slugRow, int, error) {
	where, args := "", []interface{}{}
	if name != "" {
		where = " WHERE name = ?"
		args = append(args, name)
	}
	var total int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := "SELECT id, name, slug FROM " + t.table + where + " ORDER BY name, id LIMIT ? OFFSET ?"
	rows, err := t.db.QueryContext(ctx, q, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []slugRow
	for rows.Next() {
		var s slugRow
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (t slugTable) getBySlug(ctx context.Context, slug string) (slugRow, error) {
	var s slugRow
	err := t.db.QueryRowContext(ctx, "SELECT id, name, slug FROM "+t.table+" WHERE slug = ? LIMIT 1", slug).
		Scan(&s.ID, &s.Name, &s.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (t slugTable) create(ctx context.Context, name, slug string) (uint64, error) {
	res, err := t.db.ExecContext(ctx, "INSERT INTO "+t.table+" (name, slug) VALUES (?, ?)", name, slug)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// deleteBySlug removes the row.  Dependent rows are handled by the schema:
// titles.category_id is set to NULL, genre_title rows are removed.
func (t slugTable) deleteBySlug(ctx context.Context, slug string) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE slug = ?", slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CategoryRepo encapsulates queries on the categories table.
type CategoryRepo struct{ t slugTable }

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{t: slugTable{db: db, table: "categories"}}
}

// List returns a page of categories ordered by name.  A non-empty name
// filters by exact match.
func (r *CategoryRepo) List(ctx context.Context, name string, page model.Page) ([]*model.Category, int, error) {
	rows, total, err := r.t.list(ctx, name, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*model.Category, 0, len(rows))
	for _, s := range rows {
		out = append(out, &model.Category{ID: s.ID, Name: s.Name, Slug: s.Slug})
	}
	return out, total, nil
}

func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	s, err := r.t.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &model.Category{ID: s.ID, Name: s.Name, Slug: s.Slug}, nil
}

// Create inserts c and populates its ID.  A taken slug yields ErrConflict.
func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	id, err := r.t.create(ctx, c.Name, c.Slug)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CategoryRepo) DeleteBySlug(ctx context.Context, slug string) error {
	return r.t.deleteBySlug(ctx, slug)
}

// GenreRepo encapsulates queries on the genres table.
type GenreRepo struct{ t slugTable }

func NewGenreRepo(db *sql.DB) *GenreRepo {
	return &GenreRepo{t: slugTable{db: db, table: "genres"}}
}

func (r *GenreRepo) List(ctx context.Context, name string, page model.Page) ([]*model.Genre, int, error) {
	rows, total, err := r.t.list(ctx, name, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*model.Genre, 0, len(rows))
	for _, s := range rows {
		out = append(out, &model.Genre{ID: s.ID, Name: s.Name, Slug: s.Slug})
	}
	return out, total, nil
}

func (r *GenreRepo) GetBySlug(ctx context.Context, slug string) (*model.Genre, error) {
	s, err := r.t.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &model.Genre{ID: s.ID, Name: s.Name, Slug: s.Slug}, nil
}

func (r *GenreRepo) Create(ctx context.Context, g *model.Genre) error {
	id, err := r.t.create(ctx, g.Name, g.Slug)
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (r *GenreRepo) DeleteBySlug(ctx context.Context, slug string) error {
	return r.t.deleteBySlug(ctx, slug)
}
