package memory

import (
	"context"
	"strings"

	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/repository"
)

// CategoryStore mirrors repository.CategoryRepo.
type CategoryStore struct{ db *DB }

func (s *CategoryStore) List(_ context.Context, name string, page model.Page) ([]*model.Category, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.Category
	for _, c := range s.db.categories {
		if name != "" && !strings.EqualFold(c.Name, name) {
			continue
		}
		c := c
		all = append(all, &c)
	}
	sortByNameID(all, func(c *model.Category) (string, uint64) { return c.Name, c.ID })
	return window(all, page), len(all), nil
}

func (s *CategoryStore) GetBySlug(_ context.Context, slug string) (*model.Category, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, c := range s.db.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *CategoryStore) Create(_ context.Context, c *model.Category) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.categories {
		if other.Slug == c.Slug {
			return repository.ErrConflict
		}
	}
	c.ID = s.db.id()
	s.db.categories[c.ID] = *c
	return nil
}

// DeleteBySlug removes the category and clears it from every title.
func (s *CategoryStore) DeleteBySlug(_ context.Context, slug string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, c := range s.db.categories {
		if c.Slug != slug {
			continue
		}
		delete(s.db.categories, id)
		for tid, t := range s.db.titles {
			if t.categoryID == id {
				t.categoryID = 0
				s.db.titles[tid] = t
			}
		}
		return nil
	}
	return repository.ErrNotFound
}

// GenreStore mirrors repository.GenreRepo.
type GenreStore struct{ db *DB }

func (s *GenreStore) List(_ context.Context, name string, page model.Page) ([]*model.Genre, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.Genre
	for _, g := range s.db.genres {
		if name != "" && !strings.EqualFold(g.Name, name) {
			continue
		}
		g := g
		all = append(all, &g)
	}
	sortByNameID(all, func(g *model.Genre) (string, uint64) { return g.Name, g.ID })
	return window(all, page), len(all), nil
}

func (s *GenreStore) GetBySlug(_ context.Context, slug string) (*model.Genre, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, g := range s.db.genres {
		if g.Slug == slug {
			return &g, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *GenreStore) Create(_ context.Context, g *model.Genre) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.genres {
		if other.Slug == g.Slug {
			return repository.ErrConflict
		}
	}
	g.ID = s.db.id()
	s.db.genres[g.ID] = *g
	return nil
}

// DeleteBySlug removes the genre and its title links.  Titles are kept.
func (s *GenreStore) DeleteBySlug(_ context.Context, slug string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, g := range s.db.genres {
		if g.Slug != slug {
			continue
		}
		delete(s.db.genres, id)
		for tid, t := range s.db.titles {
			kept := t.genreIDs[:0:0]
			for _, gid := range t.genreIDs {
				if gid != id {
					kept = append(kept, gid)
				}
			}
			t.genreIDs = kept
			s.db.titles[tid] = t
		}
		return nil
	}
	return repository.ErrNotFound
}
