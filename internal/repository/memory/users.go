package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/repository"
)

// UserStore mirrors repository.UserRepo.
type UserStore struct{ db *DB }

// taken reports whether another user already holds username or email.
func (s *UserStore) taken(skip uint64, username, email string) bool {
	for id, u := range s.db.users {
		if id == skip {
			continue
		}
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	if s.taken(0, u.Username, u.Email) {
		return repository.ErrConflict
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	u.ID = s.db.id()
	u.CreatedAt, u.UpdatedAt = now, now
	s.db.users[u.ID] = *u
	return nil
}

func (s *UserStore) find(match func(model.User) bool) (*model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, u := range s.db.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Username == username })
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u model.User) bool { return u.Email == email })
}

func (s *UserStore) List(_ context.Context, search string, page model.Page) ([]*model.User, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var all []*model.User
	for _, u := range s.db.users {
		if search != "" && !containsFold(u.Username, search) {
			continue
		}
		u := u
		all = append(all, &u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return window(all, page), len(all), nil
}

func (s *UserStore) Update(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, ok := s.db.users[u.ID]
	if !ok {
		return nil
	}
	email := strings.ToLower(u.Email)
	if s.taken(u.ID, u.Username, email) {
		return repository.ErrConflict
	}
	cur.Username, cur.Email, cur.Role = u.Username, email, u.Role
	cur.Bio, cur.FirstName, cur.LastName = u.Bio, u.FirstName, u.LastName
	cur.UpdatedAt = time.Now().UTC()
	s.db.users[u.ID] = cur
	u.Email = email
	return nil
}

func (s *UserStore) SetConfirmationHash(_ context.Context, id uint64, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[id]; ok {
		u.ConfirmationHash = hash
		u.UpdatedAt = time.Now().UTC()
		s.db.users[id] = u
	}
	return nil
}

func (s *UserStore) ConsumeConfirmationHash(_ context.Context, id uint64, hash string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || hash == "" || u.ConfirmationHash != hash {
		return false, nil
	}
	u.ConfirmationHash = ""
	u.UpdatedAt = time.Now().UTC()
	s.db.users[id] = u
	return true, nil
}
