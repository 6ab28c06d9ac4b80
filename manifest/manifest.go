// Package manifest handles quill.toml runtime configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/quill-lang/quill/vm"
)

// Manifest represents a quill.toml runtime configuration.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Build   Build   `toml:"build"`
	Cache   Cache   `toml:"cache"`

	// Dir is the directory containing the quill.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime bounds execution.
type Runtime struct {
	// StackLimit caps every thread's operand stack, in slots.
	StackLimit int `toml:"stack-limit"`

	// StepBudget bounds one run to this many instructions; zero or
	// negative means unbounded.
	StepBudget int `toml:"step-budget"`
}

// Log configures logging output.
type Log struct {
	// Verbosity maps to the logging backend's verbosity level.
	Verbosity int `toml:"verbosity"`
}

// Build configures code image output.
type Build struct {
	Output string `toml:"output"`
}

// Cache configures the compiled-code cache.
type Cache struct {
	// Path of the cache database. Empty uses ".quill/cache.db" under
	// the manifest directory.
	Path string `toml:"path"`

	// Disabled turns the cache off entirely.
	Disabled bool `toml:"disabled"`
}

// Default returns the configuration used when no quill.toml exists.
func Default() *Manifest {
	return &Manifest{
		Runtime: Runtime{StackLimit: vm.DefaultMaxStackDepth},
	}
}

// Load parses a quill.toml file from the given directory. A missing
// file is not an error: runtime configuration is optional and Load
// falls back to Default.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "quill.toml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		m := Default()
		if m.Dir, err = filepath.Abs(dir); err != nil {
			return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
		}
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if m.Dir, err = filepath.Abs(dir); err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Runtime.StackLimit <= 0 {
		m.Runtime.StackLimit = Default().Runtime.StackLimit
	}

	return &m, nil
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	if m.Cache.Path != "" {
		if filepath.IsAbs(m.Cache.Path) {
			return m.Cache.Path
		}
		return filepath.Join(m.Dir, m.Cache.Path)
	}
	return filepath.Join(m.Dir, ".quill", "cache.db")
}
