// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/title-reviews/internal/config"
	"github.com/iliyamo/title-reviews/internal/handler"
	"github.com/iliyamo/title-reviews/internal/middleware"
	"github.com/iliyamo/title-reviews/internal/model"
)

// Deps carries everything route registration needs.  Redis, Gatherer and
// Checks are optional.
type Deps struct {
	API       *handler.API
	Auth      middleware.Authenticator
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Gatherer  prometheus.Gatherer
	Checks    map[string]handler.Check
	Logger    *slog.Logger
}

// RegisterOps exposes /healthz and, when a gatherer is set, /metrics.
func RegisterOps(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Checks))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterAPI mounts the versioned API under /api/v1.  The caller is
// resolved for every route; anonymous callers proceed and the service
// policy decides.  Role gates below only reject early what the policy
// would reject anyway.
func RegisterAPI(e *echo.Echo, d Deps) {
	a := d.API
	v1 := e.Group("/api/v1", middleware.Authenticate(d.Auth))

	admin := middleware.RequireRole(model.RoleAdmin)
	authed := middleware.RequireAuthenticated()

	// Signup and token exchange are the only anonymous writes, so they
	// carry the rate limit.
	auth := v1.Group("/auth", middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))
	auth.POST("/signup", a.Signup)
	auth.POST("/token", a.Token)

	// /users/me must be registered before /users/:username.
	v1.GET("/users/me", a.Me, authed)
	v1.PATCH("/users/me", a.UpdateMe, authed)
	users := v1.Group("/users", admin)
	users.GET("", a.ListUsers)
	users.POST("", a.CreateUser)
	users.GET("/:username", a.GetUser)
	users.PATCH("/:username", a.UpdateUser)

	categories := v1.Group("/categories",
		middleware.NewResponseCache(d.Cache, d.Redis, "categories", d.Logger).Middleware())
	categories.GET("", a.ListCategories)
	categories.POST("", a.CreateCategory, admin)
	categories.GET("/:slug", handler.MethodNotAllowed)
	categories.DELETE("/:slug", a.DeleteCategory, admin)

	genres := v1.Group("/genres",
		middleware.NewResponseCache(d.Cache, d.Redis, "genres", d.Logger).Middleware())
	genres.GET("", a.ListGenres)
	genres.POST("", a.CreateGenre, admin)
	genres.GET("/:slug", handler.MethodNotAllowed)
	genres.DELETE("/:slug", a.DeleteGenre, admin)

	titles := v1.Group("/titles")
	titles.GET("", a.ListTitles)
	titles.POST("", a.CreateTitle, admin)
	titles.GET("/:title_id", a.GetTitle)
	titles.PATCH("/:title_id", a.UpdateTitle, admin)
	titles.DELETE("/:title_id", a.DeleteTitle, admin)

	reviews := titles.Group("/:title_id/reviews")
	reviews.GET("", a.ListReviews)
	reviews.POST("", a.CreateReview, authed)
	reviews.GET("/:review_id", a.GetReview)
	reviews.PATCH("/:review_id", a.UpdateReview, authed)
	reviews.DELETE("/:review_id", a.DeleteReview, authed)

	comments := reviews.Group("/:review_id/comments")
	comments.GET("", a.ListComments)
	comments.POST("", a.CreateComment, authed)
	comments.GET("/:comment_id", a.GetComment)
	comments.PATCH("/:comment_id", a.UpdateComment, authed)
	comments.DELETE("/:comment_id", a.DeleteComment, authed)
}

// New builds a configured echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger)
	RegisterOps(e, d)
	RegisterAPI(e, d)
	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})
	return e
}
