package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
	"github.com/iliyamo/title-reviews/internal/repository"
)

// deriveSlug fills in a missing slug from the name.
func deriveSlug(name, s string) string {
	if s != "" {
		return s
	}
	out := slug.Make(name)
	if len(out) > model.MaxSlugLen {
		out = strings.TrimRight(out[:model.MaxSlugLen], "-")
	}
	return out
}

// ListCategories returns a page of categories ordered by name.  A non-empty
// name filters by exact, case-insensitive match.
func (s *Service) ListCategories(ctx context.Context, a policy.Actor, name string, page model.Page) (List[*model.Category], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceCategory)); err != nil {
		return List[*model.Category]{}, err
	}
	page = s.page(page)
	items, total, err := s.categories.List(ctx, name, page)
	if err != nil {
		return List[*model.Category]{}, storeErr(err, "category")
	}
	return newList(items, total, page), nil
}

// CreateCategory adds a category.  An empty slug is derived from the name.
func (s *Service) CreateCategory(ctx context.Context, a policy.Actor, name, slugValue string) (*model.Category, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceCategory)); err != nil {
		return nil, err
	}
	c := &model.Category{Name: name, Slug: deriveSlug(name, slugValue)}
	if err := model.ValidateCatalogEntry(c.Name, c.Slug); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("category with this slug already exists")
		}
		return nil, storeErr(err, "category")
	}
	return c, nil
}

// DeleteCategory removes a category.  Titles that referenced it keep
// existing without a category.
func (s *Service) DeleteCategory(ctx context.Context, a policy.Actor, slugValue string) error {
	if err := s.authorize(ctx, a, policy.ActionDelete, policy.On(policy.ResourceCategory)); err != nil {
		return err
	}
	return storeErr(s.categories.DeleteBySlug(ctx, slugValue), "category")
}

// ListGenres returns a page of genres ordered by name.
func (s *Service) ListGenres(ctx context.Context, a policy.Actor, name string, page model.Page) (List[*model.Genre], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceGenre)); err != nil {
		return List[*model.Genre]{}, err
	}
	page = s.page(page)
	items, total, err := s.genres.List(ctx, name, page)
	if err != nil {
		return List[*model.Genre]{}, storeErr(err, "genre")
	}
	return newList(items, total, page), nil
}

// CreateGenre adds a genre.  An empty slug is derived from the name.
func (s *Service) CreateGenre(ctx context.Context, a policy.Actor, name, slugValue string) (*model.Genre, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceGenre)); err != nil {
		return nil, err
	}
	g := &model.Genre{Name: name, Slug: deriveSlug(name, slugValue)}
	if err := model.ValidateCatalogEntry(g.Name, g.Slug); err != nil {
		return nil, err
	}
	if err := s.genres.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("genre with this slug already exists")
		}
		return nil, storeErr(err, "genre")
	}
	return g, nil
}

// DeleteGenre removes a genre and its links to titles.
func (s *Service) DeleteGenre(ctx context.Context, a policy.Actor, slugValue string) error {
	if err := s.authorize(ctx, a, policy.ActionDelete, policy.On(policy.ResourceGenre)); err != nil {
		return err
	}
	return storeErr(s.genres.DeleteBySlug(ctx, slugValue), "genre")
}

// withRatings fills in the derived rating of each title from the current
// review set.
func (s *Service) withRatings(ctx context.Context, titles ...*model.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]uint64, len(titles))
	for i, t := range titles {
		ids[i] = t.ID
	}
	totals, err := s.reviews.Totals(ctx, ids...)
	if err != nil {
		return apperr.Internal("failed to compute ratings", err)
	}
	for _, t := range titles {
		t.Rating = totals[t.ID].Average()
	}
	return nil
}

// ListTitles returns a page of titles ordered by (name, year), each with
// its current rating.
func (s *Service) ListTitles(ctx context.Context, a policy.Actor, f model.TitleFilter, page model.Page) (List[*model.Title], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceTitle)); err != nil {
		return List[*model.Title]{}, err
	}
	page = s.page(page)
	items, total, err := s.titles.List(ctx, f, page)
	if err != nil {
		return List[*model.Title]{}, storeErr(err, "title")
	}
	if err := s.withRatings(ctx, items...); err != nil {
		return List[*model.Title]{}, err
	}
	return newList(items, total, page), nil
}

// GetTitle returns one title with its current rating.
func (s *Service) GetTitle(ctx context.Context, a policy.Actor, id uint64) (*model.Title, error) {
	if err := s.authorize(ctx, a, policy.ActionRetrieve, policy.On(policy.ResourceTitle)); err != nil {
		return nil, err
	}
	return s.loadTitle(ctx, id)
}

func (s *Service) loadTitle(ctx context.Context, id uint64) (*model.Title, error) {
	t, err := s.titles.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "title")
	}
	if err := s.withRatings(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// TitleInput is the writable content of a title.  Category and genres are
// referenced by slug; an empty Category means none.
type TitleInput struct {
	Name        string
	Year        int
	Description string
	Category    string
	Genres      []string
}

// TitlePatch is a partial update of a title.  A non-nil empty Category
// clears it; a non-nil Genres replaces the whole set.
type TitlePatch struct {
	Name        *string
	Year        *int
	Description *string
	Category    *string
	Genres      *[]string
}

func (s *Service) resolveCategory(ctx context.Context, slugValue string) (*model.Category, error) {
	if slugValue == "" {
		return nil, nil
	}
	c, err := s.categories.GetBySlug(ctx, slugValue)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Validation("category", `category "`+slugValue+`" does not exist`)
	}
	return c, storeErr(err, "category")
}

func (s *Service) resolveGenres(ctx context.Context, slugs []string) ([]model.Genre, error) {
	out := make([]model.Genre, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))
	for _, sl := range slugs {
		if seen[sl] {
			continue
		}
		seen[sl] = true
		g, err := s.genres.GetBySlug(ctx, sl)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation("genre", `genre "`+sl+`" does not exist`)
		}
		if err != nil {
			return nil, storeErr(err, "genre")
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *Service) validateTitle(t *model.Title) error {
	fields := map[string]string{}
	if err := model.ValidateTitleName(t.Name); err != nil {
		fields["name"] = err.(*apperr.Error).Message
	}
	if err := model.ValidateYear(t.Year, s.now()); err != nil {
		fields["year"] = err.(*apperr.Error).Message
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// CreateTitle adds a title.  The year must lie within
// model.CinematographyYear and the current year.
func (s *Service) CreateTitle(ctx context.Context, a policy.Actor, in TitleInput) (*model.Title, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceTitle)); err != nil {
		return nil, err
	}
	t := &model.Title{Name: in.Name, Year: in.Year, Description: in.Description}
	if err := s.validateTitle(t); err != nil {
		return nil, err
	}
	var err error
	if t.Category, err = s.resolveCategory(ctx, in.Category); err != nil {
		return nil, err
	}
	if t.Genres, err = s.resolveGenres(ctx, in.Genres); err != nil {
		return nil, err
	}
	if err := s.titles.Create(ctx, t); err != nil {
		return nil, storeErr(err, "category or genre")
	}
	return s.loadTitle(ctx, t.ID)
}

// UpdateTitle applies a partial update to a title.
func (s *Service) UpdateTitle(ctx context.Context, a policy.Actor, id uint64, patch TitlePatch) (*model.Title, error) {
	if err := s.authorize(ctx, a, policy.ActionUpdate, policy.On(policy.ResourceTitle)); err != nil {
		return nil, err
	}
	t, err := s.titles.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "title")
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Year != nil {
		t.Year = *patch.Year
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if err := s.validateTitle(t); err != nil {
		return nil, err
	}
	if patch.Category != nil {
		if t.Category, err = s.resolveCategory(ctx, *patch.Category); err != nil {
			return nil, err
		}
	}
	if patch.Genres != nil {
		if t.Genres, err = s.resolveGenres(ctx, *patch.Genres); err != nil {
			return nil, err
		}
	}
	if err := s.titles.Update(ctx, t); err != nil {
		return nil, storeErr(err, "title")
	}
	return s.loadTitle(ctx, t.ID)
}

// DeleteTitle removes a title together with its reviews and comments.
func (s *Service) DeleteTitle(ctx context.Context, a policy.Actor, id uint64) error {
	if err := s.authorize(ctx, a, policy.ActionDelete, policy.On(policy.ResourceTitle)); err != nil {
		return err
	}
	return storeErr(s.titles.Delete(ctx, id), "title")
}
