package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PITCHSTREAM_"

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are named) into the process environment. Variables that are already set
// win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %q: %w", f, err)
		}
		slog.Debug("loaded environment file", "path", f)
	}
	return nil
}

// ApplyEnv overrides fields of cfg from PITCHSTREAM_* variables found via
// lookup. It returns a joined error for values that cannot be parsed.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}
	flag := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	str("ORIGIN", &cfg.Service.Origin)
	str("PATH", &cfg.Service.Path)
	str("INSTRUMENT", (*string)(&cfg.Service.Instrument))
	str("SOURCE", (*string)(&cfg.Audio.Source))
	str("DEVICE", &cfg.Audio.Device)
	str("FILE", &cfg.Audio.File)
	flag("LOOP", &cfg.Audio.Loop)
	num("BLOCK_QUEUE", &cfg.Audio.BlockQueue)
	num("SEND_BUFFER", &cfg.Transport.SendBuffer)
	dur("DIAL_TIMEOUT", &cfg.Transport.DialTimeout)
	str("UI", (*string)(&cfg.UI.Mode))
	str("LOG_LEVEL", (*string)(&cfg.Log.Level))
	str("LOG_FILE", &cfg.Log.File)
	str("LISTEN_ADDR", &cfg.Observe.ListenAddr)

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Service
	if u, err := url.Parse(cfg.Service.Origin); err != nil {
		errs = append(errs, fmt.Errorf("service.origin %q: %w", cfg.Service.Origin, err))
	} else {
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("service.origin %q must use http or https", cfg.Service.Origin))
		}
		if u.Host == "" {
			errs = append(errs, fmt.Errorf("service.origin %q has no host", cfg.Service.Origin))
		}
		if u.Scheme == "http" && u.Hostname() != "localhost" {
			slog.Warn("service.origin is neither https nor localhost; capture will be refused",
				"origin", cfg.Service.Origin,
			)
		}
	}
	if !strings.HasPrefix(cfg.Service.Path, "/") {
		errs = append(errs, fmt.Errorf("service.path %q must start with /", cfg.Service.Path))
	}
	if cfg.Service.Instrument != "" && !cfg.Service.Instrument.IsValid() {
		errs = append(errs, fmt.Errorf("service.instrument %q is invalid; valid values: guitar, violin, mandolin", cfg.Service.Instrument))
	}

	// Audio
	if cfg.Audio.Source != "" && !cfg.Audio.Source.IsValid() {
		errs = append(errs, fmt.Errorf("audio.source %q is invalid; valid values: mic, file", cfg.Audio.Source))
	}
	if cfg.Audio.Source == SourceFile && cfg.Audio.File == "" {
		errs = append(errs, errors.New("audio.file is required when audio.source is file"))
	}
	if cfg.Audio.Source == SourceMic && cfg.Audio.File != "" {
		slog.Warn("audio.file is ignored when audio.source is mic", "file", cfg.Audio.File)
	}
	if cfg.Audio.BlockQueue < 0 {
		errs = append(errs, fmt.Errorf("audio.block_queue %d must be positive", cfg.Audio.BlockQueue))
	}

	// Transport
	if cfg.Transport.SendBuffer < 0 {
		errs = append(errs, fmt.Errorf("transport.send_buffer %d must be positive", cfg.Transport.SendBuffer))
	}
	if cfg.Transport.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("transport.dial_timeout %s must be positive", cfg.Transport.DialTimeout))
	}

	// UI
	if cfg.UI.Mode != "" && !cfg.UI.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("ui.mode %q is invalid; valid values: text, screen", cfg.UI.Mode))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log.max_size_mb and log.max_backups must not be negative"))
	}
	if cfg.UI.Mode == UIScreen && cfg.Log.File == "" {
		slog.Warn("ui.mode screen without log.file; log lines will be hidden by the screen")
	}

	return errors.Join(errs...)
}
