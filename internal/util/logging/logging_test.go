package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewAddsService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["service"] != Service {
		t.Errorf("service = %v", line["service"])
	}
	if line["message"] != "hello" {
		t.Errorf("message = %v", line["message"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestNewLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"", false, true},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(&buf, tt.level)
		logger.Debug().Msg("d")
		logger.Info().Msg("i")

		out := buf.String()
		if got := strings.Contains(out, `"message":"d"`); got != tt.wantDebug {
			t.Errorf("level %q: debug logged = %v", tt.level, got)
		}
		if got := strings.Contains(out, `"message":"i"`); got != tt.wantInfo {
			t.Errorf("level %q: info logged = %v", tt.level, got)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if RequestID(ctx) != "abc" {
		t.Errorf("RequestID = %q", RequestID(ctx))
	}
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request ID")
	}
}

func TestLogRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")
	ctx := WithRequestID(context.Background(), "req-1")

	LogRequest(logger, ctx, "GET", "/healthz", 200, 15, time.Millisecond)
	LogRequest(logger, ctx, "GET", "/api/v1/repositories", 500, 0, time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"info"`) || !strings.Contains(lines[0], `"request_id":"req-1"`) {
		t.Errorf("unexpected line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"error"`) || !strings.Contains(lines[1], `"status":500`) {
		t.Errorf("unexpected line: %s", lines[1])
	}
}
