// Command pitchstream captures audio, streams it as 16 kHz float32 frames to
// a remote pitch service over a WebSocket, and shows the results as a tuner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/pitchstream/internal/config"
	"github.com/MrWong99/pitchstream/internal/health"
	"github.com/MrWong99/pitchstream/internal/observe"
	"github.com/MrWong99/pitchstream/internal/session"
	"github.com/MrWong99/pitchstream/internal/ui"
	"github.com/MrWong99/pitchstream/pkg/audio"
	"github.com/MrWong99/pitchstream/pkg/audio/mic"
	"github.com/MrWong99/pitchstream/pkg/audio/wavfile"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "pitchstream.yaml", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "pitchstream: %v\n", err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, watchable, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pitchstream: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Log.Level))
	logOut, closeLog := logWriter(cfg.Log)
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: &level})))

	slog.Info("pitchstream starting",
		"version", version,
		"config", *configPath,
		"origin", cfg.Service.Origin,
		"instrument", cfg.Service.Instrument,
		"source", cfg.Audio.Source,
		"ui", cfg.UI.Mode,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registry:       reg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Renderer ──────────────────────────────────────────────────────────────
	renderer, err := newRenderer(cfg, stop)
	if err != nil {
		slog.Error("failed to open renderer", "err", err)
		return 1
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			slog.Warn("renderer close error", "err", err)
		}
	}()

	// ── Session ───────────────────────────────────────────────────────────────
	sess := session.New(session.Config{
		Origin:      cfg.Service.Origin,
		Path:        cfg.Service.Path,
		Instrument:  string(cfg.Service.Instrument),
		BlockQueue:  cfg.Audio.BlockQueue,
		SendBuffer:  cfg.Transport.SendBuffer,
		DialTimeout: cfg.Transport.DialTimeout,
	}, newSource(cfg, stop), renderer)

	renderer.Status(ui.StatusStarting)
	if err := sess.Start(ctx); err != nil {
		var perm *session.PermissionError
		switch {
		case errors.Is(err, session.ErrInsecureContext):
			renderer.Status("Microphone access requires HTTPS or localhost.")
		case errors.As(err, &perm):
			renderer.Status("Microphone permission denied or unavailable.")
		default:
			renderer.Status(ui.StatusError)
		}
		slog.Error("failed to start session", "err", err)
		return 1
	}
	defer sess.Stop()

	// ── Config hot reload ─────────────────────────────────────────────────────
	if watchable {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyReload(sess, &level, config.Diff(old, new))
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── Diagnostics server and session supervision ────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Observe.ListenAddr != "" {
		srv := newDiagnosticsServer(cfg.Observe.ListenAddr, provider, sess)
		g.Go(func() error {
			slog.Info("diagnostics listening", "addr", cfg.Observe.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("diagnostics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		select {
		case <-sess.Done():
			// The session ended on its own, e.g. the service closed the
			// channel. Keep the last reading on screen until interrupted.
			slog.Info("session ended", "transport", sess.TransportStatus().String())
			<-gctx.Done()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()

	slog.Info("shutdown signal received, stopping…")
	sess.Stop()
	st := sess.Stats()
	attrs := []any{
		"captured_audio", st.CapturedAudio,
		"frames_sent", st.FramesSent,
		"frames_dropped", st.FramesDropped,
		"results", st.Results,
	}
	if last, ok := sess.LastResult(); ok {
		attrs = append(attrs, "last_note", last.Note, "last_freq", last.Freq, "last_cents", last.Cents)
	}
	slog.Info("goodbye", attrs...)
	if err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	return 0
}

// loadConfig reads path, or falls back to defaults plus environment
// overrides when the file does not exist. watchable reports whether the file
// exists and can be hot-reloaded.
func loadConfig(path string) (cfg *config.Config, watchable bool, err error) {
	cfg, err = config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	cfg = &config.Config{}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, false, err
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func applyReload(sess *session.Session, level *slog.LevelVar, d config.ConfigDiff) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.InstrumentChanged {
		sess.SetInstrument(string(d.NewInstrument))
		slog.Info("instrument changed", "instrument", d.NewInstrument)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "fields", d.RestartRequired)
	}
}

func newSource(cfg *config.Config, stop func()) audio.Source {
	if cfg.Audio.Source == config.SourceFile {
		return wavfile.New(cfg.Audio.File,
			wavfile.WithLoop(cfg.Audio.Loop),
			wavfile.WithOnEOF(func() {
				// Give the service time to answer the last frames.
				slog.Info("capture file finished", "file", cfg.Audio.File)
				time.AfterFunc(2*time.Second, stop)
			}),
		)
	}
	var opts []mic.Option
	if cfg.Audio.Device != "" {
		opts = append(opts, mic.WithDevice(cfg.Audio.Device))
	}
	return mic.New(opts...)
}

func newRenderer(cfg *config.Config, stop func()) (ui.Renderer, error) {
	if cfg.UI.Mode == config.UIScreen {
		return ui.NewScreen(fmt.Sprintf("pitchstream · %s", cfg.Service.Instrument), stop)
	}
	return ui.NewText(os.Stdout), nil
}

func newDiagnosticsServer(addr string, provider *observe.Provider, sess *session.Session) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", provider.Handler())
	health.New(
		[]health.Checker{
			health.CaptureChecker(sess),
			health.TransportChecker(sess),
		},
		health.WithSessionID(sess.ID()),
	).Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(observe.DefaultMetrics(), sess.ID())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logWriter returns stderr, or a size-rotated file when cfg.File is set.
// The screen renderer owns the terminal, so file logging is the usual choice
// with ui.mode screen.
func logWriter(cfg config.LogConfig) (io.Writer, func()) {
	if cfg.File == "" {
		return os.Stderr, func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	return lj, func() { _ = lj.Close() }
}

var _ health.SessionView = (*session.Session)(nil)
