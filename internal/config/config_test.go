package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/oclkernel/internal/backend"
	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/demo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oclkernel.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Width*cfg.Height != 256 {
		t.Errorf("default size = %dx%d, want 16x16", cfg.Width, cfg.Height)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: gpu
width: 32
height: 8
local: [8, 4]
verbose: true
tune:
  iterations: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if backend.Normalize(cfg.Backend) != backend.OpenCL {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.Width != 32 || cfg.Height != 8 || !cfg.Verbose {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Local) != 2 || cfg.Local[0] != 8 || cfg.Local[1] != 4 {
		t.Errorf("Local = %v", cfg.Local)
	}
	// Untouched keys keep their defaults.
	if cfg.Kernel != "square" || cfg.Tune.Repeats != 3 || cfg.Tune.Iterations != 5 {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load(empty) failed: %v", err)
	}
	if cfg.Width != Default().Width {
		t.Errorf("Width = %d", cfg.Width)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "colour: blue\n", "field colour not found"},
		{"bad yaml", "width: [\n", "failed to parse"},
		{"invalid", "width: 0\n", "width and height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"unknown backend", func(c *Config) { c.Backend = "cuda" }, backend.ErrUnknownBackend},
		{"local arity", func(c *Config) { c.Local = []uint64{4} }, clkernel.ErrInvalidRange},
		{"offset arity", func(c *Config) { c.Offset = []uint64{1, 2, 3} }, clkernel.ErrInvalidRange},
		{"size overflow", func(c *Config) { c.Width, c.Height = 1<<32, 1<<32 }, demo.ErrTooLarge},
		{"size above limit", func(c *Config) { c.Width, c.Height = demo.MaxElements, 2 }, demo.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.target) {
				t.Errorf("Validate() = %v, want %v", err, tt.target)
			}
		})
	}

	cfg := Default()
	cfg.Kernel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty kernel accepted")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Local = []uint64{4, 4}
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("Load(marshaled) failed: %v", err)
	}
	if loaded.Local[0] != 4 || loaded.DataDir != cfg.DataDir {
		t.Errorf("loaded = %+v", loaded)
	}
}
