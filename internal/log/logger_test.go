package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("channel", "dev").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "dev") {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestNewWithWriterSkipsColourOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info().Msg("plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("non-terminal output should carry no escape codes: %q", buf.String())
	}
}

func TestForSessionTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := ForSession(NewWithWriter(&buf, "debug"), "sid-1")

	logger.Debug().Msg("hello")

	if !strings.Contains(buf.String(), "session_id=sid-1") {
		t.Fatalf("session id missing: %q", buf.String())
	}
}
