package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{5, false, slog.LevelDebug},
		{2, true, slog.Level(100)},
	}
	for _, tc := range cases {
		if got := LevelFromVerbosity(tc.verbosity, tc.quiet); got != tc.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tc.verbosity, tc.quiet, got, tc.want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info leaked through warn level:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing:\n%s", out)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	// Must not panic and must not emit anywhere observable.
	Discard().Error("dropped")
}
