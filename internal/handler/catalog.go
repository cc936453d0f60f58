package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/middleware"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/service"
)

// ----- categories -----

func (h *API) ListCategories(c echo.Context) error {
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListCategories(ctx, middleware.ActorFrom(c), c.QueryParam("search"), page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toCategory)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) CreateCategory(c echo.Context) error {
	var req catalogEntryReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	cat, err := h.Svc.CreateCategory(ctx, middleware.ActorFrom(c), req.Name, req.Slug)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toCategory(cat))
}

func (h *API) DeleteCategory(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Svc.DeleteCategory(ctx, middleware.ActorFrom(c), c.Param("slug")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- genres -----

func (h *API) ListGenres(c echo.Context) error {
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListGenres(ctx, middleware.ActorFrom(c), c.QueryParam("search"), page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toGenre)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) CreateGenre(c echo.Context) error {
	var req catalogEntryReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	g, err := h.Svc.CreateGenre(ctx, middleware.ActorFrom(c), req.Name, req.Slug)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toGenre(g))
}

func (h *API) DeleteGenre(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Svc.DeleteGenre(ctx, middleware.ActorFrom(c), c.Param("slug")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MethodNotAllowed answers routes that exist but do not support the verb,
// e.g. retrieving a single genre or category.
func MethodNotAllowed(c echo.Context) error {
	return echo.ErrMethodNotAllowed
}

// ----- titles -----

// titleFilter reads ?genre=&category=&name=&year=.  A year that is not a
// number matches nothing rather than everything.
func titleFilter(c echo.Context) (model.TitleFilter, bool) {
	f := model.TitleFilter{
		GenreSlug:    c.QueryParam("genre"),
		CategorySlug: c.QueryParam("category"),
		Name:         c.QueryParam("name"),
	}
	if raw := c.QueryParam("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return f, false
		}
		f.Year = y
	}
	return f, true
}

func (h *API) ListTitles(c echo.Context) error {
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	f, ok := titleFilter(c)
	if !ok {
		return apperr.Validation("year", "enter a whole number")
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListTitles(ctx, middleware.ActorFrom(c), f, page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toTitle)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) GetTitle(c echo.Context) error {
	id, err := idParam(c, "title_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	t, err := h.Svc.GetTitle(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTitle(t))
}

func (h *API) CreateTitle(c echo.Context) error {
	var req titleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	t, err := h.Svc.CreateTitle(ctx, middleware.ActorFrom(c), service.TitleInput{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		Category:    req.Category,
		Genres:      req.Genre,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTitle(t))
}

func (h *API) UpdateTitle(c echo.Context) error {
	id, err := idParam(c, "title_id")
	if err != nil {
		return err
	}
	var req titlePatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	t, err := h.Svc.UpdateTitle(ctx, middleware.ActorFrom(c), id, service.TitlePatch{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		Category:    req.Category,
		Genres:      req.Genre,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTitle(t))
}

func (h *API) DeleteTitle(c echo.Context) error {
	id, err := idParam(c, "title_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Svc.DeleteTitle(ctx, middleware.ActorFrom(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
