package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-omx/hdf5"
	"github.com/robert-malhotra/go-omx/omx"
	"github.com/robert-malhotra/go-omx/store"
	"github.com/robert-malhotra/go-omx/store/h5store"
	_ "github.com/robert-malhotra/go-omx/store/memstore"
)

// Config is the settings file. Every field is optional.
type Config struct {
	// Backend names a registered backing store.
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"log_level"`
	// DumpFormat is the default for dump --format.
	DumpFormat string `yaml:"dump_format"`
	// Color is auto, always or never.
	Color string `yaml:"color"`

	// Compression applies to datasets written by the hdf5 backend.
	Compression CompressionConfig `yaml:"compression"`
}

type CompressionConfig struct {
	Codec   string `yaml:"codec"`
	Level   int    `yaml:"level"`
	Shuffle bool   `yaml:"shuffle"`
}

func defaultConfig() Config {
	return Config{
		Backend:    "hdf5",
		LogLevel:   "info",
		DumpFormat: "yaml",
		Color:      "auto",
		Compression: CompressionConfig{
			Codec: "none",
			Level: 6,
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// env is what every command needs, built once before the command runs.
type env struct {
	cfg     Config
	logger  *slog.Logger
	backend store.Backend
}

func (e *env) options() []omx.Option {
	return []omx.Option{omx.WithBackend(e.backend), omx.WithLogger(e.logger)}
}

func getEnv(c *cli.Context) *env {
	return c.App.Metadata["env"].(*env)
}

func setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"backend":   &cfg.Backend,
		"log-level": &cfg.LogLevel,
		"color":     &cfg.Color,
	} {
		if c.IsSet(flag) {
			*field = c.String(flag)
		}
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}

	switch cfg.Color {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	case "auto":
	default:
		return fmt.Errorf("color must be auto, always or never, not %q", cfg.Color)
	}

	logger := newLogger(c.App.ErrWriter, cfg)
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata["env"] = &env{cfg: cfg, logger: logger, backend: backend}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	ll := &slog.LevelVar{}
	ll.Set(parseLevel(cfg.LogLevel))
	noColor := cfg.Color == "never"
	if f, ok := w.(*os.File); ok {
		if cfg.Color == "auto" {
			noColor = !isatty.IsTerminal(f.Fd())
		}
		w = colorable.NewColorable(f)
	} else if cfg.Color == "auto" {
		noColor = true
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// openBackend resolves the configured backend. The hdf5 backend is
// rebuilt when compression is configured.
func openBackend(cfg Config, logger *slog.Logger) (store.Backend, error) {
	if cfg.Backend != "hdf5" {
		b, ok := store.Lookup(cfg.Backend)
		if !ok {
			return nil, fmt.Errorf("unknown backend %q (have %v)", cfg.Backend, store.Backends())
		}
		return b, nil
	}
	codec, ok := hdf5.ParseCompression(cfg.Compression.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown compression codec %q", cfg.Compression.Codec)
	}
	opts := []h5store.Option{h5store.WithLogger(logger)}
	if codec != hdf5.NoCompression {
		opts = append(opts, h5store.WithCompression(codec, cfg.Compression.Level))
		if cfg.Compression.Shuffle {
			opts = append(opts, h5store.WithShuffle())
		}
	}
	return h5store.New(opts...), nil
}
