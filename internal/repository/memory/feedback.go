package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/rating"
	"github.com/iliyamo/title-reviews/internal/repository"
)

// newestFirst orders by (-pub_date, author, id), matching the SQL stores.
func newestFirst(pub func(i int) (int64, string, uint64)) func(i, j int) bool {
	return func(i, j int) bool {
		ti, ai, ii := pub(i)
		tj, aj, ij := pub(j)
		if ti != tj {
			return ti > tj
		}
		if ai != aj {
			return ai < aj
		}
		return ii < ij
	}
}

// ReviewStore mirrors repository.ReviewRepo.
type ReviewStore struct{ db *DB }

func (s *ReviewStore) withAuthor(rv model.Review) *model.Review {
	rv.Author = s.db.users[rv.AuthorID].Username
	return &rv
}

func (s *ReviewStore) ListByTitle(_ context.Context, titleID uint64, author string, page model.Page) ([]*model.Review, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.Review
	for _, rv := range s.db.reviews {
		if rv.TitleID != titleID {
			continue
		}
		out := s.withAuthor(rv)
		if author != "" && out.Author != author {
			continue
		}
		all = append(all, out)
	}
	sort.Slice(all, newestFirst(func(i int) (int64, string, uint64) {
		return all[i].PubDate.UnixNano(), all[i].Author, all[i].ID
	}))
	return window(all, page), len(all), nil
}

func (s *ReviewStore) Get(_ context.Context, titleID, id uint64) (*model.Review, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	rv, ok := s.db.reviews[id]
	if !ok || rv.TitleID != titleID {
		return nil, repository.ErrNotFound
	}
	return s.withAuthor(rv), nil
}

func (s *ReviewStore) Exists(_ context.Context, titleID, authorID uint64) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, rv := range s.db.reviews {
		if rv.TitleID == titleID && rv.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

// Create enforces the (author, title) uniqueness under the write lock, so of
// two concurrent creates exactly one succeeds.
func (s *ReviewStore) Create(_ context.Context, rv *model.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.titles[rv.TitleID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.db.users[rv.AuthorID]; !ok {
		return repository.ErrNotFound
	}
	for _, other := range s.db.reviews {
		if other.TitleID == rv.TitleID && other.AuthorID == rv.AuthorID {
			return repository.ErrConflict
		}
	}
	rv.ID = s.db.id()
	stored := *rv
	stored.Author = ""
	s.db.reviews[rv.ID] = stored
	return nil
}

func (s *ReviewStore) Update(_ context.Context, rv *model.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if cur, ok := s.db.reviews[rv.ID]; ok {
		cur.Text, cur.Score = rv.Text, rv.Score
		s.db.reviews[rv.ID] = cur
	}
	return nil
}

func (s *ReviewStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	s.db.deleteReview(id)
	return nil
}

func (s *ReviewStore) Totals(_ context.Context, titleIDs ...uint64) (map[uint64]rating.Totals, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	want := make(map[uint64]bool, len(titleIDs))
	for _, id := range titleIDs {
		want[id] = true
	}
	out := make(map[uint64]rating.Totals, len(titleIDs))
	for _, rv := range s.db.reviews {
		if !want[rv.TitleID] {
			continue
		}
		out[rv.TitleID] = out[rv.TitleID].Add(rv.Score)
	}
	return out, nil
}

// CommentStore mirrors repository.CommentRepo.
type CommentStore struct{ db *DB }

func (s *CommentStore) withAuthor(c model.Comment) *model.Comment {
	c.Author = s.db.users[c.AuthorID].Username
	return &c
}

func (s *CommentStore) ListByReview(_ context.Context, reviewID uint64, page model.Page) ([]*model.Comment, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.Comment
	for _, c := range s.db.comments {
		if c.ReviewID == reviewID {
			all = append(all, s.withAuthor(c))
		}
	}
	sort.Slice(all, newestFirst(func(i int) (int64, string, uint64) {
		return all[i].PubDate.UnixNano(), all[i].Author, all[i].ID
	}))
	return window(all, page), len(all), nil
}

func (s *CommentStore) Get(_ context.Context, reviewID, id uint64) (*model.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.comments[id]
	if !ok || c.ReviewID != reviewID {
		return nil, repository.ErrNotFound
	}
	return s.withAuthor(c), nil
}

func (s *CommentStore) Create(_ context.Context, c *model.Comment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.reviews[c.ReviewID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.db.users[c.AuthorID]; !ok {
		return repository.ErrNotFound
	}
	c.ID = s.db.id()
	stored := *c
	stored.Author = ""
	s.db.comments[c.ID] = stored
	return nil
}

func (s *CommentStore) Update(_ context.Context, c *model.Comment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if cur, ok := s.db.comments[c.ID]; ok {
		cur.Text = c.Text
		s.db.comments[c.ID] = cur
	}
	return nil
}

func (s *CommentStore) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.comments, id)
	return nil
}
