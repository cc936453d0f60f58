package service

import (
	"context"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
)

// Me returns the actor's own user record.
func (s *Service) Me(ctx context.Context, a policy.Actor) (*model.User, error) {
	if err := s.authorize(ctx, a, policy.ActionRetrieve, policy.Owned(policy.ResourceProfile, a.UserID)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, a.UserID)
	return u, storeErr(err, "user")
}

// UpdateMe applies a partial update to the actor's own record.  A role in
// the patch is discarded without error; the stored role is kept.
func (s *Service) UpdateMe(ctx context.Context, a policy.Actor, patch model.UserPatch) (*model.User, error) {
	if err := s.authorize(ctx, a, policy.ActionUpdate, policy.Owned(policy.ResourceProfile, a.UserID)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, a.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	role := u.Role
	patch.Role = nil
	if err := patch.Apply(u); err != nil {
		return nil, err
	}
	u.Role = role
	if err := s.users.Update(ctx, u); err != nil {
		return nil, userWriteErr(err)
	}
	return u, nil
}

// ListUsers returns a page of users ordered by username.  search matches a
// username substring, case-insensitively.
func (s *Service) ListUsers(ctx context.Context, a policy.Actor, search string, page model.Page) (List[*model.User], error) {
	if err := s.authorize(ctx, a, policy.ActionList, policy.On(policy.ResourceUser)); err != nil {
		return List[*model.User]{}, err
	}
	page = s.page(page)
	users, total, err := s.users.List(ctx, search, page)
	if err != nil {
		return List[*model.User]{}, storeErr(err, "user")
	}
	return newList(users, total, page), nil
}

// NewUser is the admin-supplied content of a user record.
type NewUser struct {
	Username  string
	Email     string
	Role      string
	Bio       string
	FirstName string
	LastName  string
}

// CreateUser adds a user with an explicit role.  The user still has to go
// through signup to obtain a confirmation code.
func (s *Service) CreateUser(ctx context.Context, a policy.Actor, in NewUser) (*model.User, error) {
	if err := s.authorize(ctx, a, policy.ActionCreate, policy.On(policy.ResourceUser)); err != nil {
		return nil, err
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	u := &model.User{Role: role}
	email, bio, first, last := in.Email, in.Bio, in.FirstName, in.LastName
	if err := (model.UserPatch{Email: &email, Bio: &bio, FirstName: &first, LastName: &last}).Apply(u); err != nil {
		return nil, err
	}
	u.Username = in.Username
	if err := s.users.Create(ctx, u); err != nil {
		return nil, userWriteErr(err)
	}
	s.logger.InfoContext(ctx, "user created", "username", u.Username, "role", string(u.Role), "by", a.Username)
	return u, nil
}

// GetUser returns a user by username.
func (s *Service) GetUser(ctx context.Context, a policy.Actor, username string) (*model.User, error) {
	if err := s.authorize(ctx, a, policy.ActionRetrieve, policy.On(policy.ResourceUser)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByUsername(ctx, username)
	return u, storeErr(err, "user")
}

// UpdateUser applies a partial update, role included, to any user.
func (s *Service) UpdateUser(ctx context.Context, a policy.Actor, username string, patch model.UserPatch) (*model.User, error) {
	if err := s.authorize(ctx, a, policy.ActionUpdate, policy.On(policy.ResourceUser)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	before := u.Role
	if err := patch.Apply(u); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, userWriteErr(err)
	}
	if u.Role != before {
		s.logger.InfoContext(ctx, "role changed",
			"username", u.Username,
			"from", string(before),
			"to", string(u.Role),
			"by", a.Username,
		)
	}
	return u, nil
}

func userWriteErr(err error) error {
	if apperr.Is(storeErr(err, "user"), apperr.KindConflict) {
		return apperr.Conflict("a user with that username or email already exists")
	}
	return storeErr(err, "user")
}
