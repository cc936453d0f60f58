// Package service implements the domain operations behind the HTTP API.
// Every operation takes the acting identity as an explicit policy.Actor;
// nothing is read from request-scoped state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/metrics"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
	"github.com/iliyamo/title-reviews/internal/rating"
	"github.com/iliyamo/title-reviews/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, search string, page model.Page) ([]*model.User, int, error)
	Update(ctx context.Context, u *model.User) error
	SetConfirmationHash(ctx context.Context, id uint64, hash string) error
	ConsumeConfirmationHash(ctx context.Context, id uint64, hash string) (bool, error)
}

type CategoryStore interface {
	List(ctx context.Context, name string, page model.Page) ([]*model.Category, int, error)
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	Create(ctx context.Context, c *model.Category) error
	DeleteBySlug(ctx context.Context, slug string) error
}

type GenreStore interface {
	List(ctx context.Context, name string, page model.Page) ([]*model.Genre, int, error)
	GetBySlug(ctx context.Context, slug string) (*model.Genre, error)
	Create(ctx context.Context, g *model.Genre) error
	DeleteBySlug(ctx context.Context, slug string) error
}

type TitleStore interface {
	List(ctx context.Context, f model.TitleFilter, page model.Page) ([]*model.Title, int, error)
	GetByID(ctx context.Context, id uint64) (*model.Title, error)
	Create(ctx context.Context, t *model.Title) error
	Update(ctx context.Context, t *model.Title) error
	Delete(ctx context.Context, id uint64) error
}

type ReviewStore interface {
	ListByTitle(ctx context.Context, titleID uint64, author string, page model.Page) ([]*model.Review, int, error)
	Get(ctx context.Context, titleID, id uint64) (*model.Review, error)
	Exists(ctx context.Context, titleID, authorID uint64) (bool, error)
	Create(ctx context.Context, rv *model.Review) error
	Update(ctx context.Context, rv *model.Review) error
	Delete(ctx context.Context, id uint64) error
	Totals(ctx context.Context, titleIDs ...uint64) (map[uint64]rating.Totals, error)
}

type CommentStore interface {
	ListByReview(ctx context.Context, reviewID uint64, page model.Page) ([]*model.Comment, int, error)
	Get(ctx context.Context, reviewID, id uint64) (*model.Comment, error)
	Create(ctx context.Context, c *model.Comment) error
	Update(ctx context.Context, c *model.Comment) error
	Delete(ctx context.Context, id uint64) error
}

// Dispatcher delivers a message to an email address.  A non-nil error
// means the message was not accepted for delivery.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Stores bundles the persistence collaborators.
type Stores struct {
	Users      UserStore
	Categories CategoryStore
	Genres     GenreStore
	Titles     TitleStore
	Reviews    ReviewStore
	Comments   CommentStore
}

// Config holds the tunables of the service.
type Config struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	PageSize   int
}

// Service orchestrates registration, user management, the catalog and
// feedback.
type Service struct {
	users      UserStore
	categories CategoryStore
	genres     GenreStore
	titles     TitleStore
	reviews    ReviewStore
	comments   CommentStore
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides time.Now, for year validation, pub dates and token
// expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(stores Stores, dispatcher Dispatcher, cfg Config, opts ...Option) *Service {
	s := &Service{
		users:      stores.Users,
		categories: stores.Categories,
		genres:     stores.Genres,
		titles:     stores.Titles,
		reviews:    stores.Reviews,
		comments:   stores.Comments,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.PageSize <= 0 {
		s.cfg.PageSize = 10
	}
	return s
}

// List is one page of a listing together with the total match count.
type List[T any] struct {
	Items []T
	Total int
	Page  model.Page
}

// HasNext reports whether a page follows this one.
func (l List[T]) HasNext() bool { return l.Page.Offset()+len(l.Items) < l.Total }

// HasPrevious reports whether a page precedes this one.
func (l List[T]) HasPrevious() bool { return l.Page.Number > 1 }

func newList[T any](items []T, total int, page model.Page) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, Page: page}
}

func (s *Service) page(p model.Page) model.Page { return p.Normalize(s.cfg.PageSize) }

// authorize runs the access policy and records denials.
func (s *Service) authorize(ctx context.Context, a policy.Actor, act policy.Action, t policy.Target) error {
	err := policy.Check(a, act, t)
	if err != nil {
		s.metrics.IncrementPolicyDenials(t.Resource.String(), act.String())
		if !act.ReadOnly() {
			s.logger.InfoContext(ctx, "access denied",
				"username", a.Username,
				"action", act.String(),
				"resource", t.Resource.String(),
			)
		}
	}
	return err
}

// storeErr converts store sentinels into domain errors.  what names the
// entity for messages, e.g. "title".
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict(what + " already exists")
	}
	return apperr.Internal("failed to access "+what, err)
}
