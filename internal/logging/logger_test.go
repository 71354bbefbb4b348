package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// captureDefault swaps the default logger for a JSON one writing to buf.
func captureDefault(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, level, "json")))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestWithFieldsCarriesRequestID(t *testing.T) {
	buf := captureDefault(t, "info")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "session", "s1", "op", "drop_column").Info("operation applied")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	for k, want := range map[string]string{"request_id": "req-42", "session": "s1", "op": "drop_column"} {
		if line[k] != want {
			t.Errorf("%s = %v, want %q", k, line[k], want)
		}
	}
}

func TestFromContextWithoutRequestID(t *testing.T) {
	buf := captureDefault(t, "info")

	FromContext(context.Background()).Info("hello")

	if bytes.Contains(buf.Bytes(), []byte("request_id")) {
		t.Errorf("unexpected request_id in %s", buf.String())
	}
}

func TestLevelFilters(t *testing.T) {
	buf := captureDefault(t, "warn")

	Component("sweeper").Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	Component("sweeper").Warn("kept")
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"sweeper"`)) {
		t.Errorf("component missing from %s", buf.String())
	}
}
