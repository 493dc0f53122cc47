package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/keel/internal/ports"
)

func TestZerologAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(New(&buf, FormatJSON, "debug")).With("run_id", "abc")

	adapter.Info("probe failed",
		ports.String("path", "/health"),
		ports.Int("consecutive_failures", 2),
		ports.Bool("in_grace", false),
		ports.Duration("timeout", 10*time.Second),
		ports.Err(errors.New("connection refused")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}

	want := map[string]interface{}{
		"level":                "info",
		"message":              "probe failed",
		"run_id":               "abc",
		"path":                 "/health",
		"consecutive_failures": float64(2),
		"in_grace":             false,
		"error":                "connection refused",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
	}{
		{"debug", true},
		{"info", false},
		{"INFO", false},
		{"bogus", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			adapter := NewZerologAdapterWithLogger(New(&buf, FormatJSON, tt.level))
			adapter.Debug("hidden?")
			if got := buf.Len() > 0; got != tt.debugSeen {
				t.Errorf("debug emitted = %v, want %v", got, tt.debugSeen)
			}
		})
	}
}
