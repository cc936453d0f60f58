package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/title-reviews/internal/model"
)

// TitleRepo provides CRUD operations for titles and their genre links.
// The category is joined on read; genres are loaded with a second query
// covering every title on the page.
type TitleRepo struct{ db *sql.DB }

func NewTitleRepo(db *sql.DB) *TitleRepo { return &TitleRepo{db: db} }

const titleSelect = `SELECT t.id, t.name, t.year, t.description, c.id, c.name, c.slug
	FROM titles t LEFT JOIN categories c ON c.id = t.category_id`

func scanTitle(row interface{ Scan(...interface{}) error }) (*model.Title, error) {
	var (
		t                model.Title
		catID            sql.NullInt64
		catName, catSlug sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Year, &t.Description, &catID, &catName, &catSlug); err != nil {
		return nil, err
	}
	if catID.Valid {
		t.Category = &model.Category{ID: uint64(catID.Int64), Name: catName.String, Slug: catSlug.String}
	}
	t.Genres = []model.Genre{}
	return &t, nil
}

func titleWhere(f model.TitleFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.GenreSlug != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM genre_title gt JOIN genres g ON g.id = gt.genre_id
		                               WHERE gt.title_id = t.id AND g.slug = ?)`)
		args = append(args, f.GenreSlug)
	}
	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}
	if f.Name != "" {
		conds = append(conds, "t.name LIKE ?")
		args = append(args, likePattern(f.Name))
	}
	if f.Year != 0 {
		conds = append(conds, "t.year = ?")
		args = append(args, f.Year)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of titles ordered by (name, year) and the total
// number of titles matching f.
func (r *TitleRepo) List(ctx context.Context, f model.TitleFilter, page model.Page) ([]*model.Title, int, error) {
	where, args := titleWhere(f)
	var total int
	countQ := "SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id" + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := titleSelect + where + " ORDER BY t.name, t.year, t.id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadGenres(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID fetches a title with its category and genres.
func (r *TitleRepo) GetByID(ctx context.Context, id uint64) (*model.Title, error) {
	t, err := scanTitle(r.db.QueryRowContext(ctx, titleSelect+" WHERE t.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadGenres(ctx, []*model.Title{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TitleRepo) loadGenres(ctx context.Context, titles []*model.Title) error {
	if len(titles) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Title, len(titles))
	ids := make([]uint64, 0, len(titles))
	for _, t := range titles {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	q := `SELECT gt.title_id, g.id, g.name, g.slug
	      FROM genre_title gt JOIN genres g ON g.id = gt.genre_id
	      WHERE gt.title_id IN (` + placeholders(len(ids)) + `) ORDER BY g.name, g.id`
	rows, err := r.db.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			titleID uint64
			g       model.Genre
		)
		if err := rows.Scan(&titleID, &g.ID, &g.Name, &g.Slug); err != nil {
			return err
		}
		if t, ok := byID[titleID]; ok {
			t.Genres = append(t.Genres, g)
		}
	}
	return rows.Err()
}

func categoryArg(t *model.Title) interface{} {
	if t.Category == nil {
		return nil
	}
	return t.Category.ID
}

func insertGenreLinks(ctx context.Context, tx *sql.Tx, titleID uint64, genres []model.Genre) error {
	if len(genres) == 0 {
		return nil
	}
	query := `INSERT INTO genre_title (title_id, genre_id) VALUES `
	args := make([]interface{}, 0, len(genres)*2)
	for i, g := range genres {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, titleID, g.ID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return translate(err)
}

// Create inserts t with its genre links in one transaction and populates
// its ID.  A category or genre deleted in the meantime yields ErrNotFound.
func (r *TitleRepo) Create(ctx context.Context, t *model.Title) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO titles (name, year, description, category_id) VALUES (?, ?, ?, ?)`,
		t.Name, t.Year, t.Description, categoryArg(t))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err = insertGenreLinks(ctx, tx, uint64(id), t.Genres); err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Update rewrites the scalar fields of t and replaces its genre links.
func (r *TitleRepo) Update(ctx context.Context, t *model.Title) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists uint64
	if err = tx.QueryRowContext(ctx, `SELECT id FROM titles WHERE id = ? FOR UPDATE`, t.ID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE titles SET name = ?, year = ?, description = ?, category_id = ? WHERE id = ?`,
		t.Name, t.Year, t.Description, categoryArg(t), t.ID); err != nil {
		return translate(err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM genre_title WHERE title_id = ?`, t.ID); err != nil {
		return err
	}
	return insertGenreLinks(ctx, tx, t.ID, t.Genres)
}

// Delete removes a title.  Its genre links, reviews and their comments are
// removed by ON DELETE CASCADE.
func (r *TitleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
