package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/pitchstream/internal/config"
)

func TestDiff_NoChange(t *testing.T) {
	t.Parallel()
	a, b := config.Default(), config.Default()
	d := config.Diff(a, b)
	if d.Changed() {
		t.Errorf("expected no change, got %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Log.Level = config.LogDebug
	new.Service.Instrument = config.InstrumentViolin

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if !d.InstrumentChanged || d.NewInstrument != config.InstrumentViolin {
		t.Errorf("instrument change not detected: %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Service.Origin = "https://other.example.com"
	new.Transport.SendBuffer = 9
	new.Observe.ListenAddr = ":9999"

	d := config.Diff(old, new)
	for _, want := range []string{"service.origin", "transport", "observe.listen_addr"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
	if d.LogLevelChanged || d.InstrumentChanged {
		t.Errorf("unexpected hot-reload change: %+v", d)
	}
}
