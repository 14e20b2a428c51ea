package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	InstrumentChanged bool
	NewInstrument     Instrument

	// RestartRequired lists settings that changed but only take effect on
	// the next run, e.g. "service.origin".
	RestartRequired []string
}

// Changed reports whether d carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.InstrumentChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}
	if old.Service.Instrument != new.Service.Instrument {
		d.InstrumentChanged = true
		d.NewInstrument = new.Service.Instrument
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, name)
		}
	}
	restart("service.origin", old.Service.Origin != new.Service.Origin)
	restart("service.path", old.Service.Path != new.Service.Path)
	restart("audio", old.Audio != new.Audio)
	restart("transport", old.Transport != new.Transport)
	restart("ui.mode", old.UI.Mode != new.UI.Mode)
	restart("log.file", old.Log.File != new.Log.File ||
		old.Log.MaxSizeMB != new.Log.MaxSizeMB ||
		old.Log.MaxBackups != new.Log.MaxBackups)
	restart("observe.listen_addr", old.Observe.ListenAddr != new.Observe.ListenAddr)

	return d
}
