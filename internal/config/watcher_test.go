package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/pitchstream/internal/config"
)

func tunerYAML(instrument, level, origin string) string {
	return fmt.Sprintf("service:\n  origin: %s\n  instrument: %s\nlog:\n  level: %s\n", origin, instrument, level)
}

// edit writes content and bumps the mtime by step seconds, so consecutive
// edits are seen even on filesystems with coarse timestamps.
func edit(t *testing.T, path, content string, step int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	mod := time.Now().Add(time.Duration(step) * time.Second)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

// watch starts a fast-polling watcher whose reloads arrive on the returned
// channel as diffs.
func watch(t *testing.T, content string) (*config.Watcher, string, <-chan config.ConfigDiff) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pitchstream.yaml")
	edit(t, path, content, 0)

	diffs := make(chan config.ConfigDiff, 8)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		diffs <- config.Diff(old, new)
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path, diffs
}

func nextDiff(t *testing.T, diffs <-chan config.ConfigDiff) config.ConfigDiff {
	t.Helper()
	select {
	case d := <-diffs:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within 2s")
		return config.ConfigDiff{}
	}
}

func TestWatcher_LiveSettingsReload(t *testing.T) {
	t.Parallel()
	const origin = "http://localhost:8000"
	w, path, diffs := watch(t, tunerYAML("guitar", "info", origin))

	if cur := w.Current(); cur.Service.Instrument != config.InstrumentGuitar || cur.Log.Level != config.LogInfo {
		t.Fatalf("initial config = %s/%s", cur.Service.Instrument, cur.Log.Level)
	}

	edit(t, path, tunerYAML("mandolin", "info", origin), 1)
	d := nextDiff(t, diffs)
	if !d.InstrumentChanged || d.NewInstrument != config.InstrumentMandolin {
		t.Errorf("instrument edit: %+v", d)
	}
	if d.LogLevelChanged || len(d.RestartRequired) != 0 {
		t.Errorf("instrument edit reported extra changes: %+v", d)
	}

	edit(t, path, tunerYAML("mandolin", "debug", origin), 2)
	d = nextDiff(t, diffs)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level edit: %+v", d)
	}
	if d.InstrumentChanged {
		t.Errorf("log level edit reported an instrument change: %+v", d)
	}

	if cur := w.Current(); cur.Service.Instrument != config.InstrumentMandolin || cur.Log.Level != config.LogDebug {
		t.Errorf("Current() = %s/%s, want mandolin/debug", cur.Service.Instrument, cur.Log.Level)
	}
}

func TestWatcher_OriginEditNeedsRestart(t *testing.T) {
	t.Parallel()
	w, path, diffs := watch(t, tunerYAML("violin", "info", "http://localhost:8000"))

	edit(t, path, tunerYAML("violin", "info", "https://tuner.example.com"), 1)
	d := nextDiff(t, diffs)
	if d.InstrumentChanged || d.LogLevelChanged {
		t.Errorf("origin edit touched live settings: %+v", d)
	}
	if !slices.Contains(d.RestartRequired, "service.origin") {
		t.Errorf("RestartRequired = %v, want service.origin", d.RestartRequired)
	}
	if got := w.Current().Service.Origin; got != "https://tuner.example.com" {
		t.Errorf("Current() origin = %q", got)
	}
}

func TestWatcher_InvalidInstrumentKeepsLastValid(t *testing.T) {
	t.Parallel()
	w, path, diffs := watch(t, tunerYAML("guitar", "info", "http://localhost:8000"))

	edit(t, path, tunerYAML("banjo", "info", "http://localhost:8000"), 1)
	select {
	case d := <-diffs:
		t.Fatalf("invalid instrument was applied: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
	if got := w.Current().Service.Instrument; got != config.InstrumentGuitar {
		t.Errorf("Current() instrument = %q, want guitar", got)
	}

	// The next valid edit is diffed against the last valid config.
	edit(t, path, tunerYAML("violin", "info", "http://localhost:8000"), 2)
	d := nextDiff(t, diffs)
	if !d.InstrumentChanged || d.NewInstrument != config.InstrumentViolin {
		t.Errorf("recovery edit: %+v", d)
	}
}

func TestWatcher_TouchDoesNotReload(t *testing.T) {
	t.Parallel()
	_, path, diffs := watch(t, tunerYAML("guitar", "warn", "http://localhost:8000"))

	mod := time.Now().Add(time.Second)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	select {
	case d := <-diffs:
		t.Errorf("touch caused a reload: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()
	w, _, _ := watch(t, tunerYAML("guitar", "info", "http://localhost:8000"))
	w.Stop()
	w.Stop()
}
