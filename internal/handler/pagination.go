package handler

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
	"github.com/iliyamo/title-reviews/internal/service"
)

// pageResponse is the envelope of every paginated listing.
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageParam reads the 1-based ?page= query parameter.  A missing value
// means the first page; anything else that is not a positive integer is
// NotFound, as is a page past the end of the listing.
func pageParam(c echo.Context) (model.Page, error) {
	raw := c.QueryParam("page")
	if raw == "" {
		return model.Page{Number: 1}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return model.Page{}, apperr.NotFound("invalid page")
	}
	return model.Page{Number: n}, nil
}

// pageURL is the absolute URL of the current request with page replaced.
// Page 1 drops the parameter.
func pageURL(c echo.Context, n int) *string {
	r := c.Request()
	u := url.URL{Scheme: c.Scheme(), Host: r.Host, Path: r.URL.Path}
	q := r.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// paginate converts a service listing into the response envelope.
func paginate[M, D any](c echo.Context, l service.List[M], conv func(M) D) (pageResponse[D], error) {
	if l.Page.Number > 1 && len(l.Items) == 0 {
		return pageResponse[D]{}, apperr.NotFound("invalid page")
	}
	out := pageResponse[D]{Count: l.Total, Results: make([]D, 0, len(l.Items))}
	for _, m := range l.Items {
		out.Results = append(out.Results, conv(m))
	}
	if l.HasNext() {
		out.Next = pageURL(c, l.Page.Number+1)
	}
	if l.HasPrevious() {
		out.Previous = pageURL(c, l.Page.Number-1)
	}
	return out, nil
}
