// Package config loads scxmask settings from defaults, an optional YAML
// file, SCXMASK_* environment variables and command line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/bdougie/scxmask/internal/video"
)

const (
	DefaultWorkers = 4
	DefaultFormat  = "yv12"
	DefaultRate    = "25"
)

// Config holds the whole run configuration
type Config struct {
	LogPath     string `yaml:"log_path"     env:"LOG_PATH"`
	Offset      int    `yaml:"offset"       env:"OFFSET"`
	Strict      bool   `yaml:"strict"       env:"STRICT"`
	Clip        string `yaml:"clip"         env:"CLIP"`
	Width       int    `yaml:"width"        env:"WIDTH"`
	Height      int    `yaml:"height"       env:"HEIGHT"`
	Frames      int    `yaml:"frames"       env:"FRAMES"`
	Format      string `yaml:"format"       env:"FORMAT"`
	FrameRate   string `yaml:"frame_rate"   env:"FRAME_RATE"`
	Output      string `yaml:"output"       env:"OUTPUT"`
	Workers     int    `yaml:"workers"      env:"WORKERS"`
	LogLevel    string `yaml:"log_level"    env:"LOG_LEVEL"`
	ResultsDir  string `yaml:"results_dir"  env:"RESULTS_DIR"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Format:    DefaultFormat,
		FrameRate: DefaultRate,
		Workers:   DefaultWorkers,
		LogLevel:  "info",
		Output:    "-",
	}
}

// LoadFile merges the YAML document at path over c
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with any SCXMASK_* variables that are set
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.Environ())
}

func (c *Config) applyEnv(environ []string) error {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(c, env.Options{
		Prefix:      "SCXMASK_",
		Environment: vars,
	}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// ApplyFlags parses command line arguments over c. The --config flag is
// handled by Load and ignored here.
func (c *Config) ApplyFlags(args []string) error {
	for i := 0; i < len(args); i++ {
		name := args[i]
		if !strings.HasPrefix(name, "--") {
			return fmt.Errorf("unexpected argument '%s'", name)
		}
		if name == "--strict" {
			c.Strict = true
			continue
		}
		if name == "--no-strict" {
			c.Strict = false
			continue
		}
		if i+1 >= len(args) {
			return fmt.Errorf("flag %s needs a value", name)
		}
		value := args[i+1]
		i++

		var err error
		switch name {
		case "--config":
		case "--log":
			c.LogPath = value
		case "--offset":
			c.Offset, err = strconv.Atoi(value)
		case "--clip":
			c.Clip = value
		case "--width":
			c.Width, err = strconv.Atoi(value)
		case "--height":
			c.Height, err = strconv.Atoi(value)
		case "--frames":
			c.Frames, err = strconv.Atoi(value)
		case "--format":
			c.Format = value
		case "--rate":
			c.FrameRate = value
		case "--output":
			c.Output = value
		case "--workers":
			c.Workers, err = strconv.Atoi(value)
		case "--log-level":
			c.LogLevel = value
		case "--results":
			c.ResultsDir = value
		case "--database-url":
			c.DatabaseURL = value
		default:
			return fmt.Errorf("unknown flag %s", name)
		}
		if err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, the file named by --config, the
// environment and finally args
func Load(args []string) (Config, error) {
	c := Default()
	if path := configPath(args); path != "" {
		if err := c.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := c.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.ApplyFlags(args); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func configPath(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--config" {
			return args[i+1]
		}
	}
	return ""
}

// Validate checks settings that do not need the log or clip to be read
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	}
	if c.Clip == "" && (c.Width <= 0 || c.Height <= 0) {
		return errors.New("either --clip or both --width and --height are required")
	}
	if _, err := video.ParsePixelFormat(c.Format); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level '%s'", c.LogLevel)
	}
	return level, nil
}
