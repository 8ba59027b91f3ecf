// Package config loads run settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/oclkernel/internal/backend"
	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/demo"
)

// Config holds the settings of a verification run.
type Config struct {
	Backend      string   `yaml:"backend"`
	Source       string   `yaml:"source"`
	Kernel       string   `yaml:"kernel"`
	BuildOptions string   `yaml:"buildOptions"`
	Width        uint64   `yaml:"width"`
	Height       uint64   `yaml:"height"`
	Local        []uint64 `yaml:"local,omitempty"`
	Offset       []uint64 `yaml:"offset,omitempty"`
	Seed         int64    `yaml:"seed"`
	Verbose      bool     `yaml:"verbose"`
	CPUOnly      bool     `yaml:"cpuOnly"`
	DataDir      string   `yaml:"dataDir"`
	Save         bool     `yaml:"save"`
	Tune         Tune     `yaml:"tune"`
}

// Tune holds work-group search settings.
type Tune struct {
	Iterations int   `yaml:"iterations"`
	PopSize    int   `yaml:"popSize"`
	Seed       int64 `yaml:"seed"`
	Repeats    int   `yaml:"repeats"`
}

// Default returns the settings of the stock demo: the embedded square
// kernel over 16x16 elements on the host emulator.
func Default() Config {
	return Config{
		Backend: string(backend.Host),
		Kernel:  "square",
		Width:   16,
		Height:  16,
		Seed:    1,
		DataDir: "./data",
		Tune: Tune{
			Iterations: 20,
			PopSize:    20,
			Seed:       42,
			Repeats:    3,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the settings without touching any device.
func (c Config) Validate() error {
	switch backend.Normalize(c.Backend) {
	case backend.Host, backend.OpenCL:
	default:
		return fmt.Errorf("%w: %q", backend.ErrUnknownBackend, c.Backend)
	}
	if c.Kernel == "" {
		return errors.New("kernel name cannot be empty")
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if _, err := demo.Elements(c.Width, c.Height); err != nil {
		return err
	}
	if len(c.Local) != 0 && len(c.Local) != 2 {
		return fmt.Errorf("%w: local needs 2 sizes, got %d", clkernel.ErrInvalidRange, len(c.Local))
	}
	if len(c.Offset) != 0 && len(c.Offset) != 2 {
		return fmt.Errorf("%w: offset needs 2 values, got %d", clkernel.ErrInvalidRange, len(c.Offset))
	}
	if c.Tune.Iterations <= 0 {
		return errors.New("tune.iterations must be positive")
	}
	if c.Tune.Repeats <= 0 {
		return errors.New("tune.repeats must be positive")
	}
	return nil
}
