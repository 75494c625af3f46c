package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over Default and validates the result.
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

// LoadFromReader decodes YAML from r over Default and validates the result.
// Unknown keys are an error. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent. It returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: json, text, pretty", cfg.Server.LogFormat))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative, got %s", cfg.Server.ShutdownTimeout))
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] is empty", i))
		}
	}

	// Archive
	if cfg.Archive.Enabled && strings.TrimSpace(cfg.Archive.Dir) == "" {
		errs = append(errs, errors.New("archive.dir is required when archive.enabled is true"))
	}
	if cfg.Archive.FlushTurns < 0 {
		errs = append(errs, fmt.Errorf("archive.flush_turns must not be negative, got %d", cfg.Archive.FlushTurns))
	}

	// Render
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"render.node_radius", cfg.Render.NodeRadius},
		{"render.node_stroke_width", cfg.Render.NodeStrokeWidth},
		{"render.edge_stroke_width", cfg.Render.EdgeStrokeWidth},
		{"render.arrow_stroke_width", cfg.Render.ArrowStrokeWidth},
		{"render.arrow_head_length", cfg.Render.ArrowHeadLength},
		{"render.arrow_head_width", cfg.Render.ArrowHeadWidth},
		{"render.emoji_font_size", cfg.Render.EmojiFontSize},
		{"render.count_font_size", cfg.Render.CountFontSize},
	} {
		if f.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", f.name, f.v))
		}
	}
	if cfg.Render.AnimationDuration < 0 {
		errs = append(errs, fmt.Errorf("render.animation_duration must not be negative, got %s", cfg.Render.AnimationDuration))
	}

	// Metrics
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", cfg.Metrics.Path))
	}

	return errors.Join(errs...)
}
