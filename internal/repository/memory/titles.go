package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/repository"
)

// TitleStore mirrors repository.TitleRepo.
type TitleStore struct{ db *DB }

// hydrate builds the read representation of a stored title.  Callers hold
// at least the read lock.
func (s *TitleStore) hydrate(row titleRow) *model.Title {
	t := row.Title
	t.Category = nil
	if c, ok := s.db.categories[row.categoryID]; ok {
		t.Category = &c
	}
	t.Genres = make([]model.Genre, 0, len(row.genreIDs))
	for _, gid := range row.genreIDs {
		if g, ok := s.db.genres[gid]; ok {
			t.Genres = append(t.Genres, g)
		}
	}
	sortByNameID(t.Genres, func(g model.Genre) (string, uint64) { return g.Name, g.ID })
	t.Rating = nil
	return &t
}

func (s *TitleStore) matches(row titleRow, f model.TitleFilter) bool {
	if f.GenreSlug != "" {
		found := false
		for _, gid := range row.genreIDs {
			if g, ok := s.db.genres[gid]; ok && g.Slug == f.GenreSlug {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CategorySlug != "" {
		c, ok := s.db.categories[row.categoryID]
		if !ok || c.Slug != f.CategorySlug {
			return false
		}
	}
	if f.Name != "" && !containsFold(row.Name, f.Name) {
		return false
	}
	if f.Year != 0 && row.Year != f.Year {
		return false
	}
	return true
}

func (s *TitleStore) List(_ context.Context, f model.TitleFilter, page model.Page) ([]*model.Title, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.Title
	for _, row := range s.db.titles {
		if s.matches(row, f) {
			all = append(all, s.hydrate(row))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.ID < b.ID
	})
	return window(all, page), len(all), nil
}

func (s *TitleStore) GetByID(_ context.Context, id uint64) (*model.Title, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	row, ok := s.db.titles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.hydrate(row), nil
}

// row validates the references of t and converts it for storage.  A
// missing category or genre yields ErrNotFound, like a foreign key failure.
func (s *TitleStore) row(t *model.Title) (titleRow, error) {
	r := titleRow{Title: *t}
	r.Category, r.Genres, r.Rating = nil, nil, nil
	if t.Category != nil {
		if _, ok := s.db.categories[t.Category.ID]; !ok {
			return r, repository.ErrNotFound
		}
		r.categoryID = t.Category.ID
	}
	seen := map[uint64]bool{}
	for _, g := range t.Genres {
		if _, ok := s.db.genres[g.ID]; !ok {
			return r, repository.ErrNotFound
		}
		if seen[g.ID] {
			return r, repository.ErrConflict
		}
		seen[g.ID] = true
		r.genreIDs = append(r.genreIDs, g.ID)
	}
	return r, nil
}

func (s *TitleStore) Create(_ context.Context, t *model.Title) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, err := s.row(t)
	if err != nil {
		return err
	}
	r.ID = s.db.id()
	s.db.titles[r.ID] = r
	t.ID = r.ID
	return nil
}

func (s *TitleStore) Update(_ context.Context, t *model.Title) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.titles[t.ID]; !ok {
		return repository.ErrNotFound
	}
	r, err := s.row(t)
	if err != nil {
		return err
	}
	s.db.titles[t.ID] = r
	return nil
}

// Delete removes the title with its reviews and their comments.
func (s *TitleStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.titles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.titles, id)
	for rid, rv := range s.db.reviews {
		if rv.TitleID == id {
			s.db.deleteReview(rid)
		}
	}
	return nil
}

// deleteReview removes a review and its comments.  Callers hold the lock.
func (db *DB) deleteReview(id uint64) {
	delete(db.reviews, id)
	for cid, c := range db.comments {
		if c.ReviewID == id {
			delete(db.comments, cid)
		}
	}
}

