package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/middleware"
	"github.com/iliyamo/title-reviews/internal/service"
)

// Me returns the caller's own profile.
func (h *API) Me(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	u, err := h.Svc.Me(ctx, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUser(u))
}

// UpdateMe partially updates the caller's profile.  A role in the body is
// accepted and ignored.
func (h *API) UpdateMe(c echo.Context) error {
	var req userPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	u, err := h.Svc.UpdateMe(ctx, middleware.ActorFrom(c), req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUser(u))
}

// ListUsers handles GET /users?search=&page=.
func (h *API) ListUsers(c echo.Context) error {
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListUsers(ctx, middleware.ActorFrom(c), c.QueryParam("search"), page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toUser)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) CreateUser(c echo.Context) error {
	var req userCreateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	u, err := h.Svc.CreateUser(ctx, middleware.ActorFrom(c), service.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Role:      req.Role,
		Bio:       req.Bio,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUser(u))
}

func (h *API) GetUser(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()
	u, err := h.Svc.GetUser(ctx, middleware.ActorFrom(c), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUser(u))
}

// UpdateUser partially updates any user, role included.
func (h *API) UpdateUser(c echo.Context) error {
	var req userPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	u, err := h.Svc.UpdateUser(ctx, middleware.ActorFrom(c), c.Param("username"), req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUser(u))
}
