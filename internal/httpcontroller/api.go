package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/datastore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusCode maps domain errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, acqcore.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, acqcore.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, datastore.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, acqcore.ErrInvalidConfiguration),
		errors.Is(err, acqcore.ErrShapeMismatch),
		errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.Is(err, acqcore.ErrDevice):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError logs err and writes an ErrorResponse. A zero code derives the
// status from the error.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = statusCode(err)
	}
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	resp := ErrorResponse{Message: message, Code: code, RequestID: requestID}
	if err != nil {
		resp.Error = err.Error()
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("API error",
			logger.String("request_id", requestID),
			logger.String("message", message),
			logger.Int("code", code),
			logger.String("path", c.Request().URL.Path),
			logger.Error(err))
	}
	return c.JSON(code, resp)
}

func (s *Server) notEnabled(c echo.Context, feature string) error {
	return s.HandleError(c, nil, feature+" is not enabled", http.StatusNotFound)
}
