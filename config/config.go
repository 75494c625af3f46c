// Package config provides the configuration schema and loader for the
// lionsweep binaries.
package config

import (
	"time"

	"github.com/brensch/lionsweep/render"
)

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

// LogFormat selects the slog handler.
type LogFormat string

const (
	FormatJSON   LogFormat = "json"
	FormatText   LogFormat = "text"
	FormatPretty LogFormat = "pretty"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatText, FormatPretty:
		return true
	}
	return false
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`
	Render  RenderConfig  `yaml:"render"`
	Metrics MetricsConfig `yaml:"metrics"`
	// GraphDir, when set, replaces the bundled graph catalog with the
	// all-graphs.json index found in that directory.
	GraphDir string `yaml:"graph_dir"`
}

type ServerConfig struct {
	ListenAddr     string    `yaml:"listen_addr"`
	LogLevel       LogLevel  `yaml:"log_level"`
	LogFormat      LogFormat `yaml:"log_format"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ArchiveConfig controls the Parquet turn archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	// FlushTurns writes a file once this many rows are buffered. Zero
	// flushes only on reset, graph load and close.
	FlushTurns int `yaml:"flush_turns"`
}

// RenderConfig holds the cosmetic drawing constants.
type RenderConfig struct {
	NodeRadius        float64       `yaml:"node_radius"`
	NodeStrokeWidth   float64       `yaml:"node_stroke_width"`
	EdgeStrokeWidth   float64       `yaml:"edge_stroke_width"`
	ArrowStrokeWidth  float64       `yaml:"arrow_stroke_width"`
	ArrowHeadLength   float64       `yaml:"arrow_head_length"`
	ArrowHeadWidth    float64       `yaml:"arrow_head_width"`
	EmojiFontSize     float64       `yaml:"emoji_font_size"`
	CountFontSize     float64       `yaml:"count_font_size"`
	AnimationDuration time.Duration `yaml:"animation_duration"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration that runs as is.
func Default() *Config {
	style := render.DefaultStyle()
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			LogFormat:       FormatJSON,
			ShutdownTimeout: 5 * time.Second,
		},
		Archive: ArchiveConfig{
			Dir:        "data/archive",
			FlushTurns: 100,
		},
		Render: RenderConfig{
			NodeRadius:        style.NodeRadius,
			NodeStrokeWidth:   style.NodeStrokeWidth,
			EdgeStrokeWidth:   style.EdgeStrokeWidth,
			ArrowStrokeWidth:  style.ArrowStrokeWidth,
			ArrowHeadLength:   style.ArrowHeadLength,
			ArrowHeadWidth:    style.ArrowHeadWidth,
			EmojiFontSize:     style.EmojiFontSize,
			CountFontSize:     style.CountFontSize,
			AnimationDuration: style.AnimationDuration,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Style converts the render section for the render package.
func (r RenderConfig) Style() render.Style {
	return render.Style{
		NodeRadius:        r.NodeRadius,
		NodeStrokeWidth:   r.NodeStrokeWidth,
		EdgeStrokeWidth:   r.EdgeStrokeWidth,
		ArrowStrokeWidth:  r.ArrowStrokeWidth,
		ArrowHeadLength:   r.ArrowHeadLength,
		ArrowHeadWidth:    r.ArrowHeadWidth,
		EmojiFontSize:     r.EmojiFontSize,
		CountFontSize:     r.CountFontSize,
		AnimationDuration: r.AnimationDuration,
	}
}
