// Package config loads Forma host configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/forma/pkg/graph"
	"gopkg.in/yaml.v3"
)

// Config is the root of forma.yml.
type Config struct {
	Script   ScriptConfig   `yaml:"script"`
	Engine   EngineConfig   `yaml:"engine"`
	Kernel   KernelConfig   `yaml:"kernel"`
	Document DocumentConfig `yaml:"document"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
}

// ScriptConfig controls code generation.
type ScriptConfig struct {
	// Namespace prefixes every primitive and operation call. Empty emits bare calls.
	Namespace string `yaml:"namespace"`
}

// EngineConfig controls DSL evaluation.
type EngineConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// KernelConfig controls preview meshing.
type KernelConfig struct {
	MeshCells   int `yaml:"mesh_cells"`
	Parallelism int `yaml:"parallelism,omitempty"`
}

// DocumentConfig controls how documents are written.
type DocumentConfig struct {
	Codec string `yaml:"codec"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// LogConfig controls host logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected duration string, got %v", node.Kind)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Script:   ScriptConfig{Namespace: graph.DefaultNamespace},
		Engine:   EngineConfig{Timeout: Duration(5 * time.Second)},
		Kernel:   KernelConfig{MeshCells: 200},
		Document: DocumentConfig{Codec: "json"},
		Watch:    WatchConfig{Debounce: Duration(200 * time.Millisecond)},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing or empty file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unknown keys are errors so a misspelled setting is not silently
	// replaced by its default.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout.Std()))
	}
	if c.Kernel.MeshCells <= 0 {
		errs = append(errs, fmt.Errorf("kernel.mesh_cells must be positive, got %d", c.Kernel.MeshCells))
	}
	if c.Kernel.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("kernel.parallelism must not be negative, got %d", c.Kernel.Parallelism))
	}
	if _, err := graph.CodecByName(c.Document.Codec); err != nil {
		errs = append(errs, fmt.Errorf("document.codec: %w", err))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce.Std()))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Generator returns the script generator for the configured namespace.
func (c *Config) Generator() graph.Generator {
	return graph.Generator{Namespace: c.Script.Namespace}
}

// Codec returns the configured document codec.
func (c *Config) Codec() (graph.Codec, error) {
	return graph.CodecByName(c.Document.Codec)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the host logger writing to stderr.
func (l LogConfig) NewLogger() *slog.Logger {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
