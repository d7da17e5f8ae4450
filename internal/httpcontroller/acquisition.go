package httpcontroller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetStatus handles GET /api/v1/status
func (s *Server) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Controller.Status())
}

// GetStats handles GET /api/v1/stats
func (s *Server) GetStats(c echo.Context) error {
	if s.deps.Stats == nil {
		return s.notEnabled(c, "stats processor")
	}
	return c.JSON(http.StatusOK, s.deps.Stats.Snapshot())
}

// StartAcquisition handles POST /api/v1/acquisition/start. The session runs
// under the server's session context, not the request context.
func (s *Server) StartAcquisition(c echo.Context) error {
	if err := s.deps.Controller.Start(s.deps.SessionContext); err != nil {
		return s.HandleError(c, err, "failed to start acquisition", 0)
	}
	return c.JSON(http.StatusOK, s.deps.Controller.Status())
}

// StopAcquisition handles POST /api/v1/acquisition/stop. Stopping an idle
// controller succeeds. The drain is bounded by stopTimeout, not by the
// request, so a client hanging up does not discard queued blocks.
func (s *Server) StopAcquisition(c echo.Context) error {
	ctx, cancel := context.WithTimeout(s.deps.SessionContext, stopTimeout)
	defer cancel()

	if err := s.deps.Controller.Stop(ctx); err != nil {
		return s.HandleError(c, err, "failed to stop acquisition", 0)
	}
	return c.JSON(http.StatusOK, s.deps.Controller.Status())
}
