package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/metrics"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/policy"
	"github.com/iliyamo/title-reviews/internal/repository/memory"
)

type sentMessage struct {
	To, Subject, Body string
}

// outbox records dispatched messages and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (o *outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

var codePattern = regexp.MustCompile(`code is: (\S+)`)

func (o *outbox) lastCode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return ""
	}
	m := codePattern.FindStringSubmatch(o.sent[len(o.sent)-1].Body)
	if m == nil {
		return ""
	}
	return m[1]
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	db      *memory.DB
	mail    *outbox
	metrics *metrics.Metrics
	now     time.Time
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = memory.New()
	s.mail = &outbox{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Now().UTC().Truncate(time.Second)
	s.svc = New(Stores{
		Users:      s.db.Users(),
		Categories: s.db.Categories(),
		Genres:     s.db.Genres(),
		Titles:     s.db.Titles(),
		Reviews:    s.db.Reviews(),
		Comments:   s.db.Comments(),
	}, s.mail, Config{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		PageSize:   10,
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	)
}

// actor registers a user with the given role and returns it as an actor.
func (s *ServiceSuite) actor(name string, role model.Role) policy.Actor {
	u := &model.User{Username: name, Email: name + "@example.com", Role: role}
	s.Require().NoError(s.db.Users().Create(s.ctx, u))
	return policy.FromUser(u)
}

func (s *ServiceSuite) admin() policy.Actor {
	if u, err := s.db.Users().GetByUsername(s.ctx, "root"); err == nil {
		return policy.FromUser(u)
	}
	return s.actor("root", model.RoleAdmin)
}

func (s *ServiceSuite) title(name string) *model.Title {
	t, err := s.svc.CreateTitle(s.ctx, s.admin(), TitleInput{Name: name, Year: 2000})
	s.Require().NoError(err)
	return t
}

func (s *ServiceSuite) requireKind(err error, kind apperr.Kind) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(kind, apperr.KindOf(err), "error: %v", err)
}

func (s *ServiceSuite) TestSignupAndTokenExchange() {
	u, err := s.svc.Signup(s.ctx, "alice", "Alice@Example.com")
	s.Require().NoError(err)
	s.Equal("alice@example.com", u.Email)
	s.Equal(model.RoleUser, u.Role)
	s.Require().Len(s.mail.sent, 1)
	s.Equal("alice@example.com", s.mail.sent[0].To)

	code := s.mail.lastCode()
	s.Require().NotEmpty(code)

	stored, err := s.db.Users().GetByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEqual(code, stored.ConfirmationHash, "only the hash is stored")

	tok, err := s.svc.Token(s.ctx, "alice", code)
	s.Require().NoError(err)
	s.NotEmpty(tok.Token)
	s.Equal(s.now.Add(time.Hour), tok.Exp)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TokensIssued))
}

func (s *ServiceSuite) TestTokenIsSingleUse() {
	_, err := s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err)
	code := s.mail.lastCode()

	_, err = s.svc.Token(s.ctx, "alice", code)
	s.Require().NoError(err)
	_, err = s.svc.Token(s.ctx, "alice", code)
	s.requireKind(err, apperr.KindValidation)
}

func (s *ServiceSuite) TestTokenErrors() {
	_, err := s.svc.Token(s.ctx, "ghost", "whatever")
	s.requireKind(err, apperr.KindNotFound)

	_, err = s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err)
	_, err = s.svc.Token(s.ctx, "alice", "wrong-code")
	s.requireKind(err, apperr.KindValidation)
	s.Equal("invalid code", err.(*apperr.Error).Fields["confirmation_code"])

	_, err = s.svc.Token(s.ctx, "", "")
	s.requireKind(err, apperr.KindValidation)
}

func (s *ServiceSuite) TestReRegistrationRotatesCode() {
	_, err := s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err)
	first := s.mail.lastCode()

	_, err = s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err, "re-registration is not an error")
	second := s.mail.lastCode()
	s.Len(s.mail.sent, 2, "code is redelivered")
	s.NotEqual(first, second)

	_, err = s.svc.Token(s.ctx, "alice", first)
	s.requireKind(err, apperr.KindValidation)
	_, err = s.svc.Token(s.ctx, "alice", second)
	s.NoError(err)
}

func (s *ServiceSuite) TestSignupRejectsReservedName() {
	_, err := s.svc.Signup(s.ctx, "me", "me@example.com")
	s.requireKind(err, apperr.KindValidation)
	s.Contains(err.(*apperr.Error).Fields, "username")
	s.Empty(s.mail.sent)

	_, err = s.db.Users().GetByUsername(s.ctx, "me")
	s.Error(err, "no record was created")
}

func (s *ServiceSuite) TestSignupConflicts() {
	_, err := s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err)

	_, err = s.svc.Signup(s.ctx, "alice", "other@example.com")
	s.requireKind(err, apperr.KindConflict)
	_, err = s.svc.Signup(s.ctx, "bob", "alice@example.com")
	s.requireKind(err, apperr.KindConflict)
}

func (s *ServiceSuite) TestSignupDeliveryFailureIsReported() {
	s.mail.fail = errors.New("smtp down")
	_, err := s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.requireKind(err, apperr.KindInternal)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.NotificationsFailed))

	u, err := s.db.Users().GetByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEmpty(u.ConfirmationHash, "code was rotated before delivery")
}

func (s *ServiceSuite) TestAuthenticate() {
	_, err := s.svc.Signup(s.ctx, "alice", "alice@example.com")
	s.Require().NoError(err)
	tok, err := s.svc.Token(s.ctx, "alice", s.mail.lastCode())
	s.Require().NoError(err)

	a, err := s.svc.Authenticate(s.ctx, tok.Token)
	s.Require().NoError(err)
	s.True(a.IsAuthenticated())
	s.Equal("alice", a.Username)

	_, err = s.svc.Authenticate(s.ctx, "garbage")
	s.requireKind(err, apperr.KindUnauthenticated)
}

func (s *ServiceSuite) TestSelfUpdateKeepsRole() {
	a := s.actor("alice", model.RoleUser)
	bio := "film nerd"
	role := model.RoleAdmin

	u, err := s.svc.UpdateMe(s.ctx, a, model.UserPatch{Bio: &bio, Role: &role})
	s.Require().NoError(err)
	s.Equal("film nerd", u.Bio)
	s.Equal(model.RoleUser, u.Role)

	stored, err := s.db.Users().GetByID(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Equal(model.RoleUser, stored.Role)
	s.Equal("film nerd", stored.Bio)

	invalid := model.Role("overlord")
	_, err = s.svc.UpdateMe(s.ctx, a, model.UserPatch{Role: &invalid})
	s.NoError(err, "role is discarded, not validated")

	_, err = s.svc.Me(s.ctx, policy.Anonymous())
	s.requireKind(err, apperr.KindUnauthenticated)
}

func (s *ServiceSuite) TestUserAdministration() {
	root := s.admin()
	plain := s.actor("alice", model.RoleUser)

	_, err := s.svc.ListUsers(s.ctx, plain, "", model.Page{})
	s.requireKind(err, apperr.KindPermissionDenied)

	created, err := s.svc.CreateUser(s.ctx, root, NewUser{Username: "mod", Email: "mod@example.com", Role: "moderator"})
	s.Require().NoError(err)
	s.Equal(model.RoleModerator, created.Role)

	_, err = s.svc.CreateUser(s.ctx, root, NewUser{Username: "mod", Email: "x@example.com"})
	s.requireKind(err, apperr.KindConflict)
	_, err = s.svc.CreateUser(s.ctx, root, NewUser{Username: "x", Email: "x@example.com", Role: "god"})
	s.requireKind(err, apperr.KindValidation)

	role := model.RoleAdmin
	updated, err := s.svc.UpdateUser(s.ctx, root, "alice", model.UserPatch{Role: &role})
	s.Require().NoError(err)
	s.Equal(model.RoleAdmin, updated.Role)

	list, err := s.svc.ListUsers(s.ctx, root, "", model.Page{})
	s.Require().NoError(err)
	s.Equal(3, list.Total)
	s.Equal(1, list.Page.Number)
	s.False(list.HasNext())

	_, err = s.svc.GetUser(s.ctx, root, "nobody")
	s.requireKind(err, apperr.KindNotFound)
}

func (s *ServiceSuite) TestCatalogWritesNeedAdmin() {
	_, err := s.svc.CreateCategory(s.ctx, policy.Anonymous(), "Films", "films")
	s.requireKind(err, apperr.KindUnauthenticated)

	_, err = s.svc.CreateCategory(s.ctx, s.actor("alice", model.RoleUser), "Films", "films")
	s.requireKind(err, apperr.KindPermissionDenied)
	_, err = s.svc.CreateCategory(s.ctx, s.actor("mod", model.RoleModerator), "Films", "films")
	s.requireKind(err, apperr.KindPermissionDenied)

	c, err := s.svc.CreateCategory(s.ctx, s.admin(), "Films", "films")
	s.Require().NoError(err)
	s.Equal("films", c.Slug)

	_, err = s.svc.CreateCategory(s.ctx, s.actorSuper(), "Films again", "films")
	s.requireKind(err, apperr.KindConflict)

	list, err := s.svc.ListCategories(s.ctx, policy.Anonymous(), "", model.Page{})
	s.Require().NoError(err)
	s.Equal(1, list.Total)
}

func (s *ServiceSuite) actorSuper() policy.Actor {
	u := &model.User{Username: "super", Email: "super@example.com", Role: model.RoleUser, IsSuperuser: true}
	s.Require().NoError(s.db.Users().Create(s.ctx, u))
	return policy.FromUser(u)
}

func (s *ServiceSuite) TestSlugIsDerivedFromName() {
	g, err := s.svc.CreateGenre(s.ctx, s.admin(), "Science Fiction", "")
	s.Require().NoError(err)
	s.Equal("science-fiction", g.Slug)
}

func (s *ServiceSuite) TestTitleYearBounds() {
	root := s.admin()
	current := s.now.Year()
	for _, year := range []int{model.CinematographyYear, current} {
		_, err := s.svc.CreateTitle(s.ctx, root, TitleInput{Name: "Edge", Year: year})
		s.NoError(err, "year %d", year)
	}
	for _, year := range []int{model.CinematographyYear - 1, current + 1} {
		_, err := s.svc.CreateTitle(s.ctx, root, TitleInput{Name: "Out", Year: year})
		s.requireKind(err, apperr.KindValidation)
		s.Contains(err.(*apperr.Error).Fields, "year")
	}

	t := s.title("Heat")
	bad := 1800
	_, err := s.svc.UpdateTitle(s.ctx, root, t.ID, TitlePatch{Year: &bad})
	s.requireKind(err, apperr.KindValidation)
}

func (s *ServiceSuite) TestTitleReferencesBySlug() {
	root := s.admin()
	_, err := s.svc.CreateCategory(s.ctx, root, "Films", "films")
	s.Require().NoError(err)
	_, err = s.svc.CreateGenre(s.ctx, root, "Drama", "drama")
	s.Require().NoError(err)

	t, err := s.svc.CreateTitle(s.ctx, root, TitleInput{
		Name: "Heat", Year: 1995, Category: "films", Genres: []string{"drama", "drama"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(t.Category)
	s.Equal("films", t.Category.Slug)
	s.Len(t.Genres, 1)
	s.Nil(t.Rating)

	_, err = s.svc.CreateTitle(s.ctx, root, TitleInput{Name: "X", Year: 2000, Genres: []string{"nope"}})
	s.requireKind(err, apperr.KindValidation)

	none := ""
	t, err = s.svc.UpdateTitle(s.ctx, root, t.ID, TitlePatch{Category: &none})
	s.Require().NoError(err)
	s.Nil(t.Category)
	s.Len(t.Genres, 1, "genres untouched by partial update")

	s.Require().NoError(s.svc.DeleteGenre(s.ctx, root, "drama"))
	t, err = s.svc.GetTitle(s.ctx, policy.Anonymous(), t.ID)
	s.Require().NoError(err)
	s.Empty(t.Genres)
}

func (s *ServiceSuite) TestRatingIsDerivedOnRead() {
	t := s.title("Heat")
	got, err := s.svc.GetTitle(s.ctx, policy.Anonymous(), t.ID)
	s.Require().NoError(err)
	s.Nil(got.Rating, "no reviews means no rating")

	_, err = s.svc.CreateReview(s.ctx, s.actor("a", model.RoleUser), t.ID, "good", 7)
	s.Require().NoError(err)
	_, err = s.svc.CreateReview(s.ctx, s.actor("b", model.RoleUser), t.ID, "great", 8)
	s.Require().NoError(err)

	got, err = s.svc.GetTitle(s.ctx, policy.Anonymous(), t.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Rating)
	s.Equal(8, *got.Rating, "7.5 rounds half up")

	_, err = s.svc.CreateReview(s.ctx, s.actor("c", model.RoleUser), t.ID, "meh", 3)
	s.Require().NoError(err)
	list, err := s.svc.ListTitles(s.ctx, policy.Anonymous(), model.TitleFilter{}, model.Page{})
	s.Require().NoError(err)
	s.Require().Len(list.Items, 1)
	s.Equal(6, *list.Items[0].Rating, "(7+8+3)/3 = 6")
}

func (s *ServiceSuite) TestOneReviewPerAuthorAndTitle() {
	t := s.title("Heat")
	a := s.actor("alice", model.RoleUser)

	_, err := s.svc.CreateReview(s.ctx, a, t.ID, "good", 7)
	s.Require().NoError(err)
	_, err = s.svc.CreateReview(s.ctx, a, t.ID, "changed my mind", 2)
	s.requireKind(err, apperr.KindConflict)
}

func (s *ServiceSuite) TestConcurrentReviewsExactlyOneSucceeds() {
	t := s.title("Heat")
	a := s.actor("alice", model.RoleUser)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.CreateReview(context.Background(), a, t.ID, "x", i+1)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.Equal(apperr.KindConflict, apperr.KindOf(err))
	}
	s.Equal(1, ok)
}

func (s *ServiceSuite) TestScoreBounds() {
	t := s.title("Heat")
	for _, score := range []int{1, 10} {
		a := s.actor(fmt.Sprintf("ok%d", score), model.RoleUser)
		_, err := s.svc.CreateReview(s.ctx, a, t.ID, "ok", score)
		s.NoError(err, "score %d", score)
	}
	for _, score := range []int{0, 11} {
		a := s.actor(fmt.Sprintf("bad%d", score), model.RoleUser)
		_, err := s.svc.CreateReview(s.ctx, a, t.ID, "ok", score)
		s.requireKind(err, apperr.KindValidation)
		s.Contains(err.(*apperr.Error).Fields, "score")
	}
}

func (s *ServiceSuite) TestReviewModeration() {
	t := s.title("Heat")
	author := s.actor("alice", model.RoleUser)
	other := s.actor("bob", model.RoleUser)
	mod := s.actor("mod", model.RoleModerator)

	rv, err := s.svc.CreateReview(s.ctx, author, t.ID, "good", 7)
	s.Require().NoError(err)

	err = s.svc.DeleteReview(s.ctx, other, t.ID, rv.ID)
	s.requireKind(err, apperr.KindPermissionDenied)
	err = s.svc.DeleteReview(s.ctx, policy.Anonymous(), t.ID, rv.ID)
	s.requireKind(err, apperr.KindUnauthenticated)

	score := 9
	updated, err := s.svc.UpdateReview(s.ctx, mod, t.ID, rv.ID, ReviewPatch{Score: &score})
	s.Require().NoError(err)
	s.Equal(9, updated.Score)
	s.Equal(rv.PubDate, updated.PubDate, "pub date is immutable")

	s.Require().NoError(s.svc.DeleteReview(s.ctx, mod, t.ID, rv.ID))

	rv, err = s.svc.CreateReview(s.ctx, author, t.ID, "again", 6)
	s.Require().NoError(err)
	s.NoError(s.svc.DeleteReview(s.ctx, author, t.ID, rv.ID), "author deletes own review")
}

func (s *ServiceSuite) TestCommentsAreNested() {
	t1, t2 := s.title("Heat"), s.title("Ronin")
	alice := s.actor("alice", model.RoleUser)
	bob := s.actor("bob", model.RoleUser)

	rv, err := s.svc.CreateReview(s.ctx, alice, t1.ID, "good", 7)
	s.Require().NoError(err)

	_, err = s.svc.CreateComment(s.ctx, bob, t2.ID, rv.ID, "wrong title")
	s.requireKind(err, apperr.KindNotFound)

	c, err := s.svc.CreateComment(s.ctx, bob, t1.ID, rv.ID, "agreed")
	s.Require().NoError(err)
	s.Equal("bob", c.Author)

	text := "edited"
	_, err = s.svc.UpdateComment(s.ctx, alice, t1.ID, rv.ID, c.ID, &text)
	s.requireKind(err, apperr.KindPermissionDenied)
	c, err = s.svc.UpdateComment(s.ctx, bob, t1.ID, rv.ID, c.ID, &text)
	s.Require().NoError(err)
	s.Equal("edited", c.Text)

	list, err := s.svc.ListComments(s.ctx, policy.Anonymous(), t1.ID, rv.ID, model.Page{})
	s.Require().NoError(err)
	s.Equal(1, list.Total)

	s.Require().NoError(s.svc.DeleteTitle(s.ctx, s.admin(), t1.ID))
	_, err = s.svc.GetComment(s.ctx, policy.Anonymous(), t1.ID, rv.ID, c.ID)
	s.requireKind(err, apperr.KindNotFound)
}

func (s *ServiceSuite) TestPolicyDenialsAreCounted() {
	_, err := s.svc.CreateGenre(s.ctx, policy.Anonymous(), "Drama", "drama")
	s.Require().Error(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PolicyDenials.WithLabelValues("genre", "create")))
}
