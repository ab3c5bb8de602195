// Package config loads go-camview configuration from a YAML file and the
// environment. Flag parsing stays in cmd/camview.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-camview/pkg/camera"
	"github.com/teslashibe/go-camview/pkg/tracking"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultPort     = "8090"
	DefaultLogLevel = "info"
)

// ViewerConfig selects the on-screen features.
type ViewerConfig struct {
	ShowEdges  bool `yaml:"show_edges"`
	EnableSave bool `yaml:"enable_save"`
	EnableCrop bool `yaml:"enable_crop"`
}

// WebConfig configures the remote control server.
type WebConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           string `yaml:"port"`
	PreviewWidth   int    `yaml:"preview_width"`
	PreviewQuality int    `yaml:"preview_quality"`
	PreviewFPS     int    `yaml:"preview_fps"`
}

// Config aggregates all application configuration.
type Config struct {
	Camera   camera.Config   `yaml:"camera"`
	Viewer   ViewerConfig    `yaml:"viewer"`
	Web      WebConfig       `yaml:"web"`
	Tracking tracking.Config `yaml:"tracking"`
	LogLevel string          `yaml:"log_level"`
}

// Default returns the configuration used when no file is given:
// device 0, 10 FPS, every viewer feature and tracking on, web server off.
func Default() Config {
	return Config{
		Camera: camera.DefaultConfig(),
		Viewer: ViewerConfig{
			ShowEdges:  true,
			EnableSave: true,
			EnableCrop: true,
		},
		Web: WebConfig{
			Port:           DefaultPort,
			PreviewWidth:   320,
			PreviewQuality: 70,
			PreviewFPS:     5,
		},
		Tracking: tracking.DefaultConfig(),
		LogLevel: DefaultLogLevel,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides:
// CAMVIEW_SOURCE, CAMVIEW_OUT, CAMVIEW_PORT, CAMVIEW_FPS, LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CAMVIEW_SOURCE"); v != "" {
		c.Camera.Source = v
	}
	if v := os.Getenv("CAMVIEW_OUT"); v != "" {
		c.Camera.OutputDir = v
	}
	if v := os.Getenv("CAMVIEW_PORT"); v != "" {
		c.Web.Port = v
	}
	if v := os.Getenv("CAMVIEW_FPS"); v != "" {
		if fps, err := strconv.Atoi(v); err == nil {
			c.Camera.Framerate = fps
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	var errs []error
	for _, msg := range c.Camera.Validate() {
		errs = append(errs, errors.New("camera: "+msg))
	}
	if c.Tracking.Enabled {
		for _, msg := range c.Tracking.Validate() {
			errs = append(errs, errors.New(msg))
		}
	}
	if c.Web.Enabled {
		if _, err := strconv.Atoi(c.Web.Port); err != nil {
			errs = append(errs, fmt.Errorf("web: port %q is not a number", c.Web.Port))
		}
	}
	if c.Web.PreviewQuality < 0 || c.Web.PreviewQuality > 100 {
		errs = append(errs, errors.New("web: preview_quality must be between 0 and 100"))
	}
	return errors.Join(errs...)
}
