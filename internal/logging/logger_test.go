package logging

import "testing"

func TestConfigureFiltersCategory(t *testing.T) {
	Configure("debug", map[string]bool{"sync": true})
	defer Configure("info", nil)

	if !Get(CategorySync).enabled(LevelDebug) {
		t.Fatal("expected sync category to be enabled at debug level")
	}
	if Get(CategoryWatcher).enabled(LevelDebug) {
		t.Fatal("expected watcher category to be disabled when not in the enabled set")
	}
}

func TestConfigureMinLevel(t *testing.T) {
	Configure("warn", nil)
	defer Configure("info", nil)

	if Get(CategoryGraph).enabled(LevelInfo) {
		t.Fatal("expected info level to be filtered out under warn threshold")
	}
	if !Get(CategoryGraph).enabled(LevelError) {
		t.Fatal("expected error level to pass warn threshold")
	}
}

func TestStartTimerStop(t *testing.T) {
	timer := StartTimer(CategoryGraph, "test-op")
	d := timer.Stop()
	if d < 0 {
		t.Fatalf("expected non-negative duration, got %v", d)
	}
}
