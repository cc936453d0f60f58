package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/title-reviews/internal/config"
	"github.com/iliyamo/title-reviews/internal/handler"
	"github.com/iliyamo/title-reviews/internal/metrics"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/repository/memory"
	"github.com/iliyamo/title-reviews/internal/service"
)

var codePattern = regexp.MustCompile(`code is: (\S+)`)

// mailbox keeps the last code sent to each address.
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match := codePattern.FindStringSubmatch(body); match != nil {
		m.codes[to] = match[1]
	}
	return nil
}

func (m *mailbox) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type APISuite struct {
	suite.Suite
	db   *memory.DB
	mail *mailbox
	mr   *miniredis.Miniredis
	e    *echo.Echo
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.db = memory.New()
	s.mail = &mailbox{codes: map[string]string{}}
	s.mr = miniredis.RunT(s.T())
	rdb := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	svc := service.New(service.Stores{
		Users:      s.db.Users(),
		Categories: s.db.Categories(),
		Genres:     s.db.Genres(),
		Titles:     s.db.Titles(),
		Reviews:    s.db.Reviews(),
		Comments:   s.db.Comments(),
	}, s.mail, service.Config{
		JWTSecret:  "router-test",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		PageSize:   2,
	}, service.WithLogger(logger), service.WithMetrics(metrics.New(reg)))

	s.e = New(Deps{
		API:   handler.NewAPI(svc),
		Auth:  svc,
		Redis: rdb,
		RateLimit: config.RateLimitConfig{
			Enabled:        true,
			Capacity:       100,
			RefillTokens:   1,
			RefillInterval: time.Second,
			TTL:            time.Minute,
			KeyStrategy:    "ip_route",
			Prefix:         "rl",
		},
		Cache: config.CacheConfig{
			Enabled:      true,
			Methods:      map[string]bool{http.MethodGet: true},
			TTL:          time.Minute,
			Prefix:       "cache",
			MaxBodyBytes: 1 << 20,
		},
		Gatherer: reg,
		Checks:   map[string]handler.Check{"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		Logger:   logger,
	})
}

func (s *APISuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		s.Require().NoError(err)
		rd = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login signs up username, exchanges the mailed code and returns the token.
func (s *APISuite) login(username string) string {
	email := username + "@example.com"
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": username, "email": email})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{
		"username":          username,
		"confirmation_code": s.mail.code(email),
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return s.decode(rec)["token"].(string)
}

// loginAs creates username with role directly in the store, then logs in.
func (s *APISuite) loginAs(username string, role model.Role) string {
	u := &model.User{Username: username, Email: username + "@example.com", Role: role}
	s.Require().NoError(s.db.Users().Create(context.Background(), u))
	return s.login(username)
}

func (s *APISuite) TestSignupAndToken() {
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": "alice", "email": "Alice@Example.com"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"username":"alice","email":"alice@example.com"}`, rec.Body.String())

	code := s.mail.code("alice@example.com")
	s.Require().NotEmpty(code)

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"username": "alice", "confirmation_code": "wrong"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.decode(rec), "confirmation_code")

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"username": "nobody", "confirmation_code": code})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"username": "alice", "confirmation_code": code})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.NotEmpty(s.decode(rec)["token"])

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"username": "alice", "confirmation_code": code})
	s.Equal(http.StatusBadRequest, rec.Code, "codes are single use")
}

func (s *APISuite) TestSignupValidation() {
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": "me", "email": "me@example.com"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.decode(rec), "username")
	_, err := s.db.Users().GetByUsername(context.Background(), "me")
	s.Error(err)

	rec = s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": "bad name", "email": "x@example.com"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": "bob", "email": "not-an-email"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.decode(rec), "email")

	s.login("carol")
	rec = s.do(http.MethodPost, "/auth/signup", "", map[string]string{"username": "carol", "email": "other@example.com"})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *APISuite) TestMalformedToken() {
	rec := s.do(http.MethodGet, "/titles", "garbage", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestProfileKeepsRole() {
	token := s.login("dave")

	rec := s.do(http.MethodGet, "/users/me", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPatch, "/users/me", token, map[string]string{"role": "admin", "bio": "hi"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := s.decode(rec)
	s.Equal("user", body["role"])
	s.Equal("hi", body["bio"])

	rec = s.do(http.MethodGet, "/users/me", token, nil)
	s.Equal("hi", s.decode(rec)["bio"])
}

func (s *APISuite) TestUserAdministration() {
	admin := s.loginAs("root", model.RoleAdmin)
	user := s.login("erin")

	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/users", "", nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/users", user, nil).Code)

	rec := s.do(http.MethodPost, "/users", admin, map[string]string{"username": "frank", "email": "frank@example.com", "role": "moderator"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("moderator", s.decode(rec)["role"])

	rec = s.do(http.MethodGet, "/users?search=FRA", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(1, s.decode(rec)["count"])

	rec = s.do(http.MethodPatch, "/users/erin", admin, map[string]string{"role": "admin"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("admin", s.decode(rec)["role"])

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/users", user, nil).Code, "role change applies to existing tokens")
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/users/ghost", admin, nil).Code)
}

func (s *APISuite) TestCategoryPermissionsAndCache() {
	admin := s.loginAs("root", model.RoleAdmin)
	user := s.login("gina")

	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/categories", "", map[string]string{"name": "Films"}).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/categories", user, map[string]string{"name": "Films"}).Code)

	rec := s.do(http.MethodGet, "/categories", "", nil)
	s.Equal("MISS", rec.Header().Get("X-Cache"))
	s.Equal("HIT", s.do(http.MethodGet, "/categories", "", nil).Header().Get("X-Cache"))

	rec = s.do(http.MethodPost, "/categories", admin, map[string]string{"name": "Films"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.JSONEq(`{"name":"Films","slug":"films"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/categories", "", nil)
	s.Equal("MISS", rec.Header().Get("X-Cache"), "writes invalidate the namespace")
	s.EqualValues(1, s.decode(rec)["count"])

	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/categories", admin, map[string]string{"name": "Films 2", "slug": "films"}).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/categories", admin, map[string]string{"name": "X", "slug": "bad slug"}).Code)
	s.Equal(http.StatusMethodNotAllowed, s.do(http.MethodGet, "/categories/films", "", nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/categories/films", admin, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/categories/films", admin, nil).Code)
}

func (s *APISuite) TestGenreRetrieveNotAllowed() {
	admin := s.loginAs("root", model.RoleAdmin)
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/genres", admin, map[string]string{"name": "Drama"}).Code)

	s.Equal(http.StatusMethodNotAllowed, s.do(http.MethodGet, "/genres/drama", "", nil).Code)
	rec := s.do(http.MethodGet, "/genres?search=drama", "", nil)
	s.EqualValues(1, s.decode(rec)["count"])
}

func (s *APISuite) createTitle(admin string, body map[string]interface{}) uint64 {
	rec := s.do(http.MethodPost, "/titles", admin, body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return uint64(s.decode(rec)["id"].(float64))
}

func (s *APISuite) TestTitlesAndRatings() {
	admin := s.loginAs("root", model.RoleAdmin)
	s.do(http.MethodPost, "/genres", admin, map[string]string{"name": "Drama", "slug": "drama"})
	s.do(http.MethodPost, "/categories", admin, map[string]string{"name": "Films", "slug": "films"})

	id := s.createTitle(admin, map[string]interface{}{
		"name": "Stalker", "year": 1979, "genre": []string{"drama"}, "category": "films",
	})
	path := "/titles/" + strconv.FormatUint(id, 10)

	rec := s.do(http.MethodGet, path, "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Nil(body["rating"])
	s.Equal(map[string]interface{}{"name": "Films", "slug": "films"}, body["category"])
	s.Len(body["genre"], 1)

	rec = s.do(http.MethodPost, "/titles", admin, map[string]interface{}{"name": "Too old", "year": model.CinematographyYear - 1})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(s.decode(rec), "year")

	rec = s.do(http.MethodPost, "/titles", admin, map[string]interface{}{"name": "X", "year": 2000, "genre": []string{"nope"}})
	s.Equal(http.StatusBadRequest, rec.Code)

	u1, u2 := s.login("u1"), s.login("u2")
	s.Equal(http.StatusCreated, s.do(http.MethodPost, path+"/reviews", u1, map[string]interface{}{"text": "good", "score": 7}).Code)
	s.Equal(http.StatusCreated, s.do(http.MethodPost, path+"/reviews", u2, map[string]interface{}{"text": "great", "score": 8}).Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, path+"/reviews", u1, map[string]interface{}{"text": "again", "score": 1}).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, path+"/reviews", admin, map[string]interface{}{"text": "x", "score": 11}).Code)

	rec = s.do(http.MethodGet, path, "", nil)
	s.EqualValues(8, s.decode(rec)["rating"], "7 and 8 round half up")

	rec = s.do(http.MethodGet, "/titles?genre=drama&year=1979", "", nil)
	s.EqualValues(1, s.decode(rec)["count"])
	rec = s.do(http.MethodGet, "/titles?category=none", "", nil)
	s.EqualValues(0, s.decode(rec)["count"])

	rec = s.do(http.MethodPatch, path, admin, map[string]interface{}{"category": ""})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Nil(s.decode(rec)["category"])

	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, path, u1, nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, path, admin, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, path+"/reviews", "", nil).Code)
}

func (s *APISuite) TestPagination() {
	admin := s.loginAs("root", model.RoleAdmin)
	for _, name := range []string{"A", "B", "C"} {
		s.createTitle(admin, map[string]interface{}{"name": name, "year": 2001})
	}

	rec := s.do(http.MethodGet, "/titles", "", nil)
	body := s.decode(rec)
	s.EqualValues(3, body["count"])
	s.Len(body["results"], 2)
	s.Equal("http://example.com/api/v1/titles?page=2", body["next"])
	s.Nil(body["previous"])

	body = s.decode(s.do(http.MethodGet, "/titles?page=2", "", nil))
	s.Len(body["results"], 1)
	s.Nil(body["next"])
	s.Equal("http://example.com/api/v1/titles", body["previous"])

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/titles?page=3", "", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/titles?page=zero", "", nil).Code)
}

func (s *APISuite) TestReviewAndCommentOwnership() {
	admin := s.loginAs("root", model.RoleAdmin)
	moderator := s.loginAs("mod", model.RoleModerator)
	author, other := s.login("author"), s.login("other")

	t1 := strconv.FormatUint(s.createTitle(admin, map[string]interface{}{"name": "One", "year": 2001}), 10)
	t2 := strconv.FormatUint(s.createTitle(admin, map[string]interface{}{"name": "Two", "year": 2002}), 10)

	rec := s.do(http.MethodPost, "/titles/"+t1+"/reviews", author, map[string]interface{}{"text": "fine", "score": 5})
	s.Require().Equal(http.StatusCreated, rec.Code)
	review := s.decode(rec)
	s.Equal("author", review["author"])
	s.NotEmpty(review["pub_date"])
	rpath := "/titles/" + t1 + "/reviews/" + strconv.FormatUint(uint64(review["id"].(float64)), 10)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/titles/"+t2+"/reviews/"+strconv.FormatUint(uint64(review["id"].(float64)), 10), "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPatch, rpath, "", map[string]interface{}{"score": 6}).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPatch, rpath, other, map[string]interface{}{"score": 6}).Code)

	rec = s.do(http.MethodPatch, rpath, author, map[string]interface{}{"score": 6})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(6, s.decode(rec)["score"])
	s.Equal(review["pub_date"], s.decode(rec)["pub_date"])

	rec = s.do(http.MethodGet, "/titles/"+t1+"/reviews?author=other", "", nil)
	s.EqualValues(0, s.decode(rec)["count"])

	rec = s.do(http.MethodPost, rpath+"/comments", other, map[string]string{"text": "disagree"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	cpath := rpath + "/comments/" + strconv.FormatUint(uint64(s.decode(rec)["id"].(float64)), 10)

	s.Equal(http.StatusOK, s.do(http.MethodGet, cpath, "", nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, cpath, author, nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, cpath, other, map[string]string{"text": "  "}).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, cpath, moderator, nil).Code)

	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, rpath+"/comments", other, map[string]string{"text": "again"}).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, rpath, other, nil).Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, rpath, author, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, rpath+"/comments", "", nil).Code)
}

func (s *APISuite) TestOpsEndpoints() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok","dependencies":{"redis":"up"}}`, rec.Body.String())

	s.login("metrics")
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "reviews_signups_total 1")

	s.mr.Close()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *APISuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/nothing-here", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "detail")
}
