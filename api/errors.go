package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-app/domain"
	"todo-app/graph"
	"todo-app/web"
)

// CSRFError marks a rejected anti-forgery check.
type CSRFError struct {
	err error
}

func (e *CSRFError) Error() string { return "csrf: " + e.err.Error() }
func (e *CSRFError) Unwrap() error { return e.err }

const (
	msgCSRF       = "Your form has expired or was not sent from this site. Reload the page and try again."
	msgNotFound   = "Not found"
	msgUnexpected = "Something went wrong"
)

// errorHandler is the single place uncaught errors become responses.
// Unexpected errors are logged in full; the client only sees detail
// outside production.
func errorHandler(logger *log.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, message := classify(err)
		fields := log.Fields{
			"method":     c.Request().Method,
			"path":       c.Request().URL.Path,
			"status":     status,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}
		var detail string
		switch {
		case status >= http.StatusInternalServerError:
			logger.WithFields(fields).WithError(err).Error("http.error")
			if !production {
				detail = fmt.Sprintf("%+v", err)
			}
		case errors.As(err, new(*CSRFError)):
			logger.WithFields(fields).WithError(err).Warn("http.csrf.rejected")
		}

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(status)
		case wantsJSON(c):
			body := map[string]string{"error": message}
			if detail != "" {
				body["detail"] = detail
			}
			werr = c.JSON(status, body)
		default:
			werr = web.RenderError(c, status, message, detail)
		}
		if werr != nil {
			logger.WithFields(fields).WithError(werr).Error("http.error.write_failed")
		}
	}
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, new(*CSRFError)):
		return http.StatusForbidden, msgCSRF
	case errors.As(err, &he):
		if he.Code >= http.StatusInternalServerError {
			return he.Code, msgUnexpected
		}
		if msg, ok := he.Message.(string); ok && msg != "" {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.ErrUnauthorized.Error()
	}
	return http.StatusInternalServerError, msgUnexpected
}

func wantsJSON(c echo.Context) bool {
	switch c.Request().URL.Path {
	case "/healthz", "/metrics", graph.Path:
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}
