package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/rating"
)

// ReviewRepo persists reviews.  The (author_id, title_id) pair is unique
// in the schema, so a second review by the same author on the same title
// fails with ErrConflict even when two requests race.
type ReviewRepo struct{ db *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewSelect = `SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
	FROM reviews r JOIN users u ON u.id = r.author_id`

func scanReview(row interface{ Scan(...interface{}) error }) (*model.Review, error) {
	var rv model.Review
	if err := row.Scan(&rv.ID, &rv.TitleID, &rv.AuthorID, &rv.Author, &rv.Text, &rv.Score, &rv.PubDate); err != nil {
		return nil, err
	}
	return &rv, nil
}

// ListByTitle returns a page of a title's reviews, newest first.  A
// non-empty author restricts the result to that username.
func (r *ReviewRepo) ListByTitle(ctx context.Context, titleID uint64, author string, page model.Page) ([]*model.Review, int, error) {
	where := " WHERE r.title_id = ?"
	args := []interface{}{titleID}
	if author != "" {
		where += " AND u.username = ?"
		args = append(args, author)
	}
	var total int
	countQ := "SELECT COUNT(*) FROM reviews r JOIN users u ON u.id = r.author_id" + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := reviewSelect + where + " ORDER BY r.pub_date DESC, u.username, r.id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get fetches a review that belongs to titleID.
func (r *ReviewRepo) Get(ctx context.Context, titleID, id uint64) (*model.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+" WHERE r.id = ? AND r.title_id = ?", id, titleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rv, nil
}

// Exists reports whether authorID has already reviewed titleID.
func (r *ReviewRepo) Exists(ctx context.Context, titleID, authorID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM reviews WHERE title_id = ? AND author_id = ? LIMIT 1`, titleID, authorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts rv and populates its ID.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES (?, ?, ?, ?, ?)`,
		rv.TitleID, rv.AuthorID, rv.Text, rv.Score, rv.PubDate)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// Update writes text and score.  pub_date is never changed.
func (r *ReviewRepo) Update(ctx context.Context, rv *model.Review) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reviews SET text = ?, score = ? WHERE id = ?`, rv.Text, rv.Score, rv.ID)
	return err
}

// Delete removes a review and, by cascade, its comments.
func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Totals returns the score sum and count for each of titleIDs that has at
// least one review.  Titles without reviews are absent from the map.
func (r *ReviewRepo) Totals(ctx context.Context, titleIDs ...uint64) (map[uint64]rating.Totals, error) {
	out := make(map[uint64]rating.Totals, len(titleIDs))
	if len(titleIDs) == 0 {
		return out, nil
	}
	q := `SELECT title_id, SUM(score), COUNT(*) FROM reviews
	      WHERE title_id IN (` + placeholders(len(titleIDs)) + `) GROUP BY title_id`
	rows, err := r.db.QueryContext(ctx, q, idArgs(titleIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uint64
			t  rating.Totals
		)
		if err := rows.Scan(&id, &t.Sum, &t.Count); err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, rows.Err()
}

// CommentRepo persists comments on reviews.
type CommentRepo struct{ db *sql.DB }

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{db: db} }

const commentSelect = `SELECT cm.id, cm.review_id, cm.author_id, u.username, cm.text, cm.pub_date
	FROM comments cm JOIN users u ON u.id = cm.author_id`

func scanComment(row interface{ Scan(...interface{}) error }) (*model.Comment, error) {
	var c model.Comment
	if err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByReview returns a page of a review's comments, newest first.
func (r *CommentRepo) ListByReview(ctx context.Context, reviewID uint64, page model.Page) ([]*model.Comment, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE review_id = ?`, reviewID).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := commentSelect + " WHERE cm.review_id = ? ORDER BY cm.pub_date DESC, u.username, cm.id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, reviewID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get fetches a comment that belongs to reviewID.
func (r *CommentRepo) Get(ctx context.Context, reviewID, id uint64) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, commentSelect+" WHERE cm.id = ? AND cm.review_id = ?", id, reviewID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (review_id, author_id, text, pub_date) VALUES (?, ?, ?, ?)`,
		c.ReviewID, c.AuthorID, c.Text, c.PubDate)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *CommentRepo) Update(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx, `UPDATE comments SET text = ? WHERE id = ?`, c.Text, c.ID)
	return err
}

func (r *CommentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
