package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// FreezeRequest sets the freeze state. A missing Frozen toggles it.
type FreezeRequest struct {
	Frozen *bool `json:"frozen"`
}

// ChannelsRequest selects visible channels. An empty list shows all.
type ChannelsRequest struct {
	Channels []int `json:"channels"`
}

// GetView handles GET /api/v1/view
func (s *Server) GetView(c echo.Context) error {
	if s.deps.View == nil {
		return s.notEnabled(c, "view processor")
	}
	return c.JSON(http.StatusOK, s.deps.View.Snapshot())
}

// FreezeView handles POST /api/v1/view/freeze
func (s *Server) FreezeView(c echo.Context) error {
	if s.deps.View == nil {
		return s.notEnabled(c, "view processor")
	}

	var req FreezeRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
		}
	}

	if req.Frozen == nil {
		s.deps.View.ToggleFreeze()
	} else {
		s.deps.View.SetFrozen(*req.Frozen)
	}
	return c.JSON(http.StatusOK, s.deps.View.Snapshot())
}

// SetViewChannels handles PUT /api/v1/view/channels
func (s *Server) SetViewChannels(c echo.Context) error {
	if s.deps.View == nil {
		return s.notEnabled(c, "view processor")
	}

	var req ChannelsRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	if err := s.deps.View.SetVisibleChannels(req.Channels); err != nil {
		return s.HandleError(c, err, "invalid channel selection", http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, ChannelsRequest{Channels: s.deps.View.VisibleChannels()})
}
