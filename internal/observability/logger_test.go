package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)

	logger.Info("server_start", map[string]any{"addr": ":8080"})
	logger.Warn("refresh_token_replay", nil)
	logger.Error("auth_request_failed", map[string]any{"error": "boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}

	tests := []struct {
		level   string
		message string
	}{
		{"info", "server_start"},
		{"warn", "refresh_token_replay"},
		{"error", "auth_request_failed"},
	}
	for i, tt := range tests {
		var payload map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &payload); err != nil {
			t.Fatalf("line %d is not json: %v", i, err)
		}
		if payload["level"] != tt.level || payload["message"] != tt.message {
			t.Errorf("line %d = %v, want level=%s message=%s", i, payload, tt.level, tt.message)
		}
		if _, ok := payload["timestamp"]; !ok {
			t.Errorf("line %d missing timestamp", i)
		}
	}

	var first map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &first)
	if first["addr"] != ":8080" {
		t.Errorf("expected addr field, got %v", first["addr"])
	}
}
