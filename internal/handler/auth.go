package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Signup registers a username/email pair, or re-registers a pending one,
// and sends a confirmation code to the email address.
func (h *API) Signup(c echo.Context) error {
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Svc.Signup(ctx, req.Username, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, signupResp{Username: u.Username, Email: u.Email})
}

// Token exchanges a username and confirmation code for an access token.
func (h *API) Token(c echo.Context) error {
	var req tokenReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqContext(c)
	defer cancel()

	tok, err := h.Svc.Token(ctx, req.Username, req.ConfirmationCode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}
