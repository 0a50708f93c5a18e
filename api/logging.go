package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"todo-app/auth"
)

// requestLogger logs every request once it has completed. Errors are handed
// to the error handler first so the logged status is the one sent.
func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := log.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"route":      c.Path(),
				"status":     v.Status,
				"latency_ms": durationToMillis(v.Latency),
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
			}
			if userID, ok := auth.CurrentUserID(c); ok {
				fields["user_id"] = userID
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
			}
			logger.WithFields(fields).Log(levelForStatus(v.Status), "http.request")
			return nil
		},
	})
}

func levelForStatus(status int) log.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return log.ErrorLevel
	case status >= http.StatusBadRequest:
		return log.WarnLevel
	}
	return log.InfoLevel
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
