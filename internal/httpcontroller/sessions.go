package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 1000
)

// ListSessions handles GET /api/v1/sessions?limit=N
func (s *Server) ListSessions(c echo.Context) error {
	if s.deps.Store == nil {
		return s.notEnabled(c, "session database")
	}

	limit := defaultSessionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSessionLimit {
			return s.HandleError(c, err, "limit must be between 1 and 1000", http.StatusBadRequest)
		}
		limit = n
	}

	sessions, err := s.deps.Store.List(c.Request().Context(), limit)
	if err != nil {
		return s.HandleError(c, err, "failed to list sessions", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, sessions)
}

// GetSession handles GET /api/v1/sessions/:id
func (s *Server) GetSession(c echo.Context) error {
	if s.deps.Store == nil {
		return s.notEnabled(c, "session database")
	}

	session, err := s.deps.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.HandleError(c, err, "failed to get session", 0)
	}
	return c.JSON(http.StatusOK, session)
}
