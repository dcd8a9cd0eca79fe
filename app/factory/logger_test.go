package factory

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("webhook-controller")
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(base.WithField("module", "webhook-controller"), ctx)
	logger.Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if line["request_id"] != "req-123" || line["module"] != "webhook-controller" {
		t.Fatalf("unexpected log fields: %v", line)
	}
}

func TestLoggerWithContextNilContext(t *testing.T) {
	logger := NewModuleLogger("x")
	if LoggerWithContext(logger, nil) != logger {
		t.Fatal("expected logger unchanged for nil context")
	}
}
