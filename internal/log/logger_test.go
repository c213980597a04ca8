package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLive, Output: &buf})

	l.Debug("subscription started", NewFields().WithSubscription("income_total", 7).ToSlice()...)

	out := buf.String()
	for _, want := range []string{"component=live", "query=income_total", "subscription_id=7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %q", l.Component())
	}

	l := New(DefaultConfig()).WithComponent(ComponentWorker)
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatalf("expected logger from context")
	}
}

func TestFieldsWithError(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not add a field")
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Fatalf("unexpected error field: %v", f[FieldError])
	}
}
