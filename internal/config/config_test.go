package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/pitchstream/internal/config"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	if cfg.Service.Origin != config.DefaultOrigin {
		t.Errorf("origin: got %q, want %q", cfg.Service.Origin, config.DefaultOrigin)
	}
	if cfg.Service.Path != "/tune" {
		t.Errorf("path: got %q, want /tune", cfg.Service.Path)
	}
	if cfg.Service.Instrument != config.InstrumentGuitar {
		t.Errorf("instrument: got %q, want guitar", cfg.Service.Instrument)
	}
	if cfg.Audio.Source != config.SourceMic {
		t.Errorf("source: got %q, want mic", cfg.Audio.Source)
	}
	if cfg.Transport.SendBuffer != 4 {
		t.Errorf("send_buffer: got %d, want 4", cfg.Transport.SendBuffer)
	}
	if cfg.Transport.DialTimeout != 10*time.Second {
		t.Errorf("dial_timeout: got %s, want 10s", cfg.Transport.DialTimeout)
	}
	if cfg.UI.Mode != config.UIText {
		t.Errorf("ui.mode: got %q, want text", cfg.UI.Mode)
	}
	if cfg.Log.Level != config.LogInfo {
		t.Errorf("log.level: got %q, want info", cfg.Log.Level)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Service:   config.ServiceConfig{Instrument: config.InstrumentViolin, Path: "/pitch"},
		Transport: config.TransportConfig{SendBuffer: 16},
	}
	config.ApplyDefaults(cfg)

	if cfg.Service.Instrument != config.InstrumentViolin {
		t.Errorf("instrument overwritten: %q", cfg.Service.Instrument)
	}
	if cfg.Service.Path != "/pitch" {
		t.Errorf("path overwritten: %q", cfg.Service.Path)
	}
	if cfg.Transport.SendBuffer != 16 {
		t.Errorf("send_buffer overwritten: %d", cfg.Transport.SendBuffer)
	}
}

func TestEnumValidity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		valid bool
	}{
		{"instrument guitar", config.InstrumentGuitar.IsValid()},
		{"instrument mandolin", config.InstrumentMandolin.IsValid()},
		{"instrument banjo", !config.Instrument("banjo").IsValid()},
		{"source file", config.SourceFile.IsValid()},
		{"source line-in", !config.SourceKind("line-in").IsValid()},
		{"ui screen", config.UIScreen.IsValid()},
		{"ui gui", !config.UIMode("gui").IsValid()},
		{"log warn", config.LogWarn.IsValid()},
		{"log trace", !config.LogLevel("trace").IsValid()},
	}
	for _, tc := range tests {
		if !tc.valid {
			t.Errorf("%s: unexpected validity", tc.name)
		}
	}
}
