package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_RendersLine(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

	r := slog.NewRecord(time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC), slog.LevelInfo, "command.done", 0)
	r.AddAttrs(
		slog.String("op", "next_position"),
		slog.Int64("duration_ms", 42),
		slog.String("live", "a b"),
	)

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := sb.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=command.done",
		"op=next_position",
		"duration_ms=42ms",
		`live="a b"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatalf("output not newline terminated: %q", got)
	}
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	base := newPrettyHandler(&sb, nil, false)
	h := base.WithGroup("redial").WithAttrs([]slog.Attr{slog.String("component", "stream")})

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "stream.redial", 0)
	r.AddAttrs(slog.Int("attempt", 3))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := sb.String()
	if !strings.Contains(got, "redial.component=stream") {
		t.Fatalf("output %q missing grouped preset attr", got)
	}
	if !strings.Contains(got, "redial.attempt=3") {
		t.Fatalf("output %q missing grouped attr", got)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "has space", want: `"has space"`},
		{in: `k=v`, want: `"k=v"`},
	}

	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLevelTag_NoColor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   slog.Level
		want string
	}{
		{in: slog.LevelDebug, want: "[DEBUG]"},
		{in: slog.LevelInfo, want: "[INFO]"},
		{in: slog.LevelWarn, want: "[WARN]"},
		{in: slog.LevelError, want: "[ERROR]"},
	}

	for _, tc := range cases {
		if got := levelTag(tc.in, false); got != tc.want {
			t.Fatalf("levelTag(%v)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
