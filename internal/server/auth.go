package server

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragserver/internal/chat"
	"github.com/mohammad-safakhou/ragserver/internal/identity"
)

type AuthHandler struct {
	Service   *chat.Service
	TokenMode bool
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
}

// login resolves an identifier into a credential. No password: identity is
// the caller-supplied identifier, optionally wrapped in a signed session
// token depending on auth.mode.
func (a *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := a.Service.Login(c.Request().Context(), req.Identifier)
	if err != nil {
		if errors.Is(err, identity.ErrEmptyIdentifier) {
			return echo.NewHTTPError(http.StatusBadRequest, "identifier must not be empty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if a.TokenMode && res.Token != "" {
		cookie := new(http.Cookie)
		cookie.Name = "auth"
		cookie.Value = res.Token
		cookie.Path = "/"
		cookie.HttpOnly = true
		cookie.SameSite = http.SameSiteLaxMode
		if os.Getenv("RAGSERVER_ENV") == "prod" {
			cookie.Secure = true
		}
		c.SetCookie(cookie)
		// also return token for Bearer flows
		c.Response().Header().Set("Authorization", "Bearer "+res.Token)
	}
	return c.JSON(http.StatusOK, LoginResponse{UserKey: res.UserKey, Token: res.Token})
}

// logout only clears the cookie; tokens are stateless and remain valid
// until expiry.
func (a *AuthHandler) logout(c echo.Context) error {
	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = ""
	cookie.Path = "/"
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.NoContent(http.StatusOK)
}
