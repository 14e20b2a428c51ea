// Package config provides the configuration schema, loader, and hot-reload
// watcher for the pitchstream client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Instrument selects the tuning table the pitch service matches against.
type Instrument string

const (
	InstrumentGuitar   Instrument = "guitar"
	InstrumentViolin   Instrument = "violin"
	InstrumentMandolin Instrument = "mandolin"
)

// IsValid reports whether i is an instrument the service knows.
func (i Instrument) IsValid() bool {
	switch i {
	case InstrumentGuitar, InstrumentViolin, InstrumentMandolin:
		return true
	}
	return false
}

// SourceKind selects the capture source implementation.
type SourceKind string

const (
	// SourceMic captures from a PortAudio input device.
	SourceMic SourceKind = "mic"

	// SourceFile replays a mono WAV file.
	SourceFile SourceKind = "file"
)

// IsValid reports whether k is a recognised source kind.
func (k SourceKind) IsValid() bool {
	return k == SourceMic || k == SourceFile
}

// UIMode selects the result renderer.
type UIMode string

const (
	// UIText writes one line per result to stdout.
	UIText UIMode = "text"

	// UIScreen draws a full-screen needle with tcell.
	UIScreen UIMode = "screen"
)

// IsValid reports whether m is a recognised UI mode.
func (m UIMode) IsValid() bool {
	return m == UIText || m == UIScreen
}

// Config is the root configuration structure for pitchstream.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Audio     AudioConfig     `yaml:"audio"`
	Transport TransportConfig `yaml:"transport"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// ServiceConfig locates the remote pitch service.
type ServiceConfig struct {
	// Origin is the page origin the client acts on behalf of, e.g.
	// "https://tuner.example.com" or "http://localhost:8000". Its scheme
	// decides ws vs wss and its host is used for the endpoint.
	Origin string `yaml:"origin"`

	// Path is the WebSocket endpoint path. Default: "/tune".
	Path string `yaml:"path"`

	// Instrument is sent to the service once the channel is connected.
	// Default: guitar.
	Instrument Instrument `yaml:"instrument"`
}

// AudioConfig selects and configures the capture source.
type AudioConfig struct {
	// Source is "mic" (default) or "file".
	Source SourceKind `yaml:"source"`

	// Device is a substring of the input device name. Empty selects the
	// system default input.
	Device string `yaml:"device"`

	// File is the WAV file replayed when Source is "file".
	File string `yaml:"file"`

	// Loop restarts file replay at EOF.
	Loop bool `yaml:"loop"`

	// BlockQueue bounds the number of captured blocks waiting for the
	// session loop. Blocks beyond it are dropped. Default: 32.
	BlockQueue int `yaml:"block_queue"`
}

// TransportConfig tunes the outbound channel.
type TransportConfig struct {
	// SendBuffer is the number of frames that may wait for the writer before
	// Send starts dropping. Default: 4.
	SendBuffer int `yaml:"send_buffer"`

	// DialTimeout bounds the WebSocket handshake. Default: 10s.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// UIConfig selects the renderer.
type UIConfig struct {
	// Mode is "text" (default) or "screen".
	Mode UIMode `yaml:"mode"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level controls verbosity. Default: info.
	Level LogLevel `yaml:"level"`

	// File, when set, sends logs to a rotated file instead of stderr.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated. Default: 10.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. Default: 3.
	MaxBackups int `yaml:"max_backups"`
}

// ObserveConfig configures the diagnostics HTTP server.
type ObserveConfig struct {
	// ListenAddr serves /metrics, /healthz and /readyz. Empty disables the
	// server.
	ListenAddr string `yaml:"listen_addr"`
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultOrigin      = "http://localhost:8000"
	DefaultPath        = "/tune"
	DefaultBlockQueue  = 32
	DefaultSendBuffer  = 4
	DefaultDialTimeout = 10 * time.Second
	DefaultMaxSizeMB   = 10
	DefaultMaxBackups  = 3
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Service.Origin == "" {
		cfg.Service.Origin = DefaultOrigin
	}
	if cfg.Service.Path == "" {
		cfg.Service.Path = DefaultPath
	}
	if cfg.Service.Instrument == "" {
		cfg.Service.Instrument = InstrumentGuitar
	}
	if cfg.Audio.Source == "" {
		cfg.Audio.Source = SourceMic
	}
	if cfg.Audio.BlockQueue == 0 {
		cfg.Audio.BlockQueue = DefaultBlockQueue
	}
	if cfg.Transport.SendBuffer == 0 {
		cfg.Transport.SendBuffer = DefaultSendBuffer
	}
	if cfg.Transport.DialTimeout == 0 {
		cfg.Transport.DialTimeout = DefaultDialTimeout
	}
	if cfg.UI.Mode == "" {
		cfg.UI.Mode = UIText
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogInfo
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = DefaultMaxBackups
	}
}
