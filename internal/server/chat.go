package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragserver/internal/chat"
	"github.com/mohammad-safakhou/ragserver/internal/identity"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
	"github.com/mohammad-safakhou/ragserver/internal/runtime"
)

// ChatHandler serves the question/answer endpoints. Identity comes from a
// bearer token or the auth cookie in token mode, and from the request body
// or the user_key query parameter in plain mode.
type ChatHandler struct {
	Service    *chat.Service
	TokenMode  bool
	IndexReady func() bool
	WebEnabled bool
}

// Register mounts the identity-bound routes on g. Status stays on the open
// group so clients can poll index readiness before logging in.
func (h *ChatHandler) Register(g, open *echo.Group) {
	g.POST("/query", h.query)
	g.GET("/history", h.history)
	g.POST("/history/clear", h.clearHistory)
	open.GET("/status", h.status)
}

func (h *ChatHandler) query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ident := h.identityInput(c, req.UserKey)
	if ident == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	useWeb := req.UseWebSearch && h.WebEnabled
	res, err := h.Service.Query(c.Request().Context(), ident, req.Question, useWeb)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ChatHandler) history(c echo.Context) error {
	ident := h.identityInput(c, "")
	if ident == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	turns, err := h.Service.History(c.Request().Context(), ident)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, HistoryResponse{Turns: turns})
}

func (h *ChatHandler) clearHistory(c echo.Context) error {
	ident := h.identityInput(c, "")
	if ident == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	if err := h.Service.ClearHistory(c.Request().Context(), ident); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHandler) status(c echo.Context) error {
	ready := h.IndexReady != nil && h.IndexReady()
	msg := "index built, ready to answer questions"
	if !ready {
		msg = "index not built yet; add documents and rebuild"
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Initialized: true,
		IndexBuilt:  ready,
		Message:     msg,
	})
}

// identityInput picks the credential for the configured auth mode. bodyKey
// carries the user_key field for POST bodies; GET endpoints pass "".
func (h *ChatHandler) identityInput(c echo.Context, bodyKey string) string {
	if h.TokenMode {
		return runtime.ExtractToken(c)
	}
	if bodyKey != "" {
		return bodyKey
	}
	return c.QueryParam("user_key")
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion), errors.Is(err, identity.ErrEmptyIdentifier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case identity.IsAuthError(err):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, rag.ErrIndexNotReady):
		return echo.NewHTTPError(http.StatusBadRequest, "document index not built; run the index command or check documents.folder")
	case errors.Is(err, rag.ErrRetrieval):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
