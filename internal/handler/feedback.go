package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/middleware"
	"github.com/iliyamo/title-reviews/internal/service"
)

// ----- reviews -----

// ListReviews handles GET /titles/:title_id/reviews?author=.
func (h *API) ListReviews(c echo.Context) error {
	titleID, err := idParam(c, "title_id")
	if err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListReviews(ctx, middleware.ActorFrom(c), titleID, c.QueryParam("author"), page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toReview)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) GetReview(c echo.Context) error {
	titleID, id, err := reviewPath(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	rv, err := h.Svc.GetReview(ctx, middleware.ActorFrom(c), titleID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReview(rv))
}

// CreateReview adds the caller's review of a title.  A second review of
// the same title by the same author is a conflict.
func (h *API) CreateReview(c echo.Context) error {
	titleID, err := idParam(c, "title_id")
	if err != nil {
		return err
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	rv, err := h.Svc.CreateReview(ctx, middleware.ActorFrom(c), titleID, req.Text, req.Score)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReview(rv))
}

func (h *API) UpdateReview(c echo.Context) error {
	titleID, id, err := reviewPath(c)
	if err != nil {
		return err
	}
	var req reviewPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	rv, err := h.Svc.UpdateReview(ctx, middleware.ActorFrom(c), titleID, id, service.ReviewPatch{Text: req.Text, Score: req.Score})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReview(rv))
}

func (h *API) DeleteReview(c echo.Context) error {
	titleID, id, err := reviewPath(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Svc.DeleteReview(ctx, middleware.ActorFrom(c), titleID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func reviewPath(c echo.Context) (titleID, reviewID uint64, err error) {
	if titleID, err = idParam(c, "title_id"); err != nil {
		return 0, 0, err
	}
	if reviewID, err = idParam(c, "review_id"); err != nil {
		return 0, 0, err
	}
	return titleID, reviewID, nil
}

// ----- comments -----

func (h *API) ListComments(c echo.Context) error {
	titleID, reviewID, err := reviewPath(c)
	if err != nil {
		return err
	}
	page, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	list, err := h.Svc.ListComments(ctx, middleware.ActorFrom(c), titleID, reviewID, page)
	if err != nil {
		return err
	}
	out, err := paginate(c, list, toComment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *API) GetComment(c echo.Context) error {
	titleID, reviewID, err := reviewPath(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "comment_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	cm, err := h.Svc.GetComment(ctx, middleware.ActorFrom(c), titleID, reviewID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toComment(cm))
}

func (h *API) CreateComment(c echo.Context) error {
	titleID, reviewID, err := reviewPath(c)
	if err != nil {
		return err
	}
	var req commentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	cm, err := h.Svc.CreateComment(ctx, middleware.ActorFrom(c), titleID, reviewID, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toComment(cm))
}

func (h *API) UpdateComment(c echo.Context) error {
	titleID, reviewID, err := reviewPath(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "comment_id")
	if err != nil {
		return err
	}
	var req commentPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	cm, err := h.Svc.UpdateComment(ctx, middleware.ActorFrom(c), titleID, reviewID, id, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toComment(cm))
}

func (h *API) DeleteComment(c echo.Context) error {
	titleID, reviewID, err := reviewPath(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "comment_id")
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	if err := h.Svc.DeleteComment(ctx, middleware.ActorFrom(c), titleID, reviewID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
