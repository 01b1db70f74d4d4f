package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "production", "")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", logger.GetLevel())
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "job_1").Msg("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, `"job_id":"job_1"`) || !strings.Contains(out, `"service":"roomdesign"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestDevelopmentLoggerDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "development", "")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", logger.GetLevel())
	}
	logger.Info().Msg("hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("development output should not be JSON: %s", buf.String())
	}
}

func TestExplicitLevelWins(t *testing.T) {
	if got := newWithWriter(&bytes.Buffer{}, "development", "WARN").GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("level = %v, want warn", got)
	}
	if got := newWithWriter(&bytes.Buffer{}, "production", "bogus").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}
