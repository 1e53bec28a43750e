package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestConfigure(t *testing.T) {
	defer func() {
		if err := Configure("info", "text"); err != nil {
			t.Fatalf("restore defaults: %v", err)
		}
	}()

	if err := Configure("warn", "json"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if GlobalLogger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}
	if !GlobalLogger.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error should pass at warn level")
	}
	if _, ok := GlobalLogger.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("expected a JSON handler, got %T", GlobalLogger.Handler())
	}

	if err := Configure("loud", ""); err == nil {
		t.Fatalf("expected an invalid level error")
	}
	if err := Configure("", "xml"); err == nil {
		t.Fatalf("expected an invalid format error")
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should drop everything")
	}
}
