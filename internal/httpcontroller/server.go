// Package httpcontroller serves the acquisition REST API and the metrics endpoint.
package httpcontroller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/acqcore/devices"
	"github.com/eegstream/eegstream-go/internal/acqcore/processors"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/datastore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const (
	shutdownTimeout = 5 * time.Second
	stopTimeout     = 30 * time.Second
	systemCacheTTL  = 5 * time.Second
)

// AcquisitionController is the part of acqcore.Controller the API drives
type AcquisitionController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() acqcore.Status
	IsRunning() bool
}

// Dependencies are the components exposed by the server. Only Controller is
// required; routes for missing components answer 404 or 503.
type Dependencies struct {
	Controller AcquisitionController
	// SessionContext bounds sessions started over HTTP and the drain of
	// sessions stopped over HTTP. It must outlive requests.
	SessionContext context.Context
	View           *processors.View
	Stats          *processors.Stats
	Store          datastore.Interface
	Metrics        http.Handler
	// ListCaptureDevices defaults to devices.ListDevices
	ListCaptureDevices func() ([]devices.CaptureDevice, error)
}

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	deps     Dependencies
	logger   logger.Logger
	cache    *cache.Cache
	started  time.Time
}

// New initializes the echo instance, middleware and routes. It does not listen.
func New(settings *conf.Settings, deps Dependencies, log logger.Logger) (*Server, error) {
	if deps.Controller == nil {
		return nil, errors.Newf("http server requires an acquisition controller").
			Component("http-controller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.SessionContext == nil {
		deps.SessionContext = context.Background()
	}
	if deps.ListCaptureDevices == nil {
		deps.ListCaptureDevices = devices.ListDevices
	}
	if log == nil {
		log = logger.Global().Module("http")
	}

	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		deps:     deps,
		logger:   log,
		cache:    cache.New(systemCacheTTL, 0),
		started:  time.Now(),
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Logger = logger.NewEchoLoggerAdapter(log.Module("echo"))
	s.configureMiddleware()
	s.initRoutes()
	return s, nil
}

// initRoutes registers every endpoint
func (s *Server) initRoutes() {
	api := s.Echo.Group("/api/v1")

	api.GET("/status", s.GetStatus)
	api.GET("/stats", s.GetStats)
	api.POST("/acquisition/start", s.StartAcquisition)
	api.POST("/acquisition/stop", s.StopAcquisition)

	api.GET("/view", s.GetView)
	api.POST("/view/freeze", s.FreezeView)
	api.PUT("/view/channels", s.SetViewChannels)

	api.GET("/sessions", s.ListSessions)
	api.GET("/sessions/:id", s.GetSession)

	api.GET("/system", s.GetSystemInfo)
	api.GET("/devices", s.GetDevices)

	if s.deps.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}
}

// Start listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listen := s.Settings.WebServer.Listen
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Echo.Start(listen)
	}()
	s.logger.Info("HTTP server started", logger.String("address", listen))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(fmt.Errorf("http server failed: %w", err)).
			Component("http-controller").
			Category(errors.CategoryNetwork).
			Context("address", listen).
			Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.Echo.Shutdown(shutdownCtx)
	<-errCh
	s.logger.Info("HTTP server stopped")
	return err
}
