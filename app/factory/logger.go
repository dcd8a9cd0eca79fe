package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext adds request scoped fields from an echo request.
func LoggerWithContext(logger logrus.FieldLogger, c echo.Context) logrus.FieldLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if c == nil {
		return logger
	}

	fields := logrus.Fields{}
	if requestID := c.Request().Header.Get(requestIDHeader); requestID != "" {
		fields["request_id"] = requestID
	}
	if path := c.Path(); path != "" {
		fields["route"] = path
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.WithFields(fields)
}
