// Package config loads the application configuration from defaults, an
// optional YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/inpaint"
)

// Environment variable names recognized by ApplyEnv. An .env file loaded at
// startup feeds the same names.
const (
	EnvModelURL     = "BADGEWIPE_MODEL_URL"
	EnvModelPath    = "BADGEWIPE_MODEL_PATH"
	EnvTemplatePath = "BADGEWIPE_TEMPLATE_PATH"
	EnvCacheDir     = "BADGEWIPE_CACHE_DIR"
	EnvDebug        = "BADGEWIPE_DEBUG"
)

// Config is the full application configuration.
type Config struct {
	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// ModelURL is where the inpainting model is downloaded from when no
	// local ModelPath is given.
	ModelURL string `yaml:"model_url"`

	// ModelPath points at a local .onnx file and takes precedence over
	// ModelURL when set.
	ModelPath string `yaml:"model_path"`

	// TemplatePath points at the badge template image used for detection.
	// Optional; without it only the fixed-position flow is available.
	TemplatePath string `yaml:"template_path"`

	// CacheDir holds downloaded model files.
	CacheDir string `yaml:"cache_dir"`

	Detection detection.Config `yaml:"detection"`
	Inpaint   inpaint.Config   `yaml:"inpaint"`
}

// Default returns the configuration used when no file or environment
// overrides are present. The cache directory lands under the OS user cache.
func Default() Config {
	cacheDir := "badgewipe-cache"
	if base, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(base, "badgewipe")
	}
	return Config{
		CacheDir:  cacheDir,
		Detection: detection.DefaultConfig(),
		Inpaint:   inpaint.DefaultConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is non-empty, then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays recognized environment variables onto the config.
// Unset variables leave the existing values alone.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvModelURL); v != "" {
		c.ModelURL = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv(EnvTemplatePath); v != "" {
		c.TemplatePath = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvDebug); v == "1" || v == "true" {
		c.Debug = true
	}
}

// Validate checks the nested pipeline configurations. Model and template
// locations are checked lazily where they are used, since detect-only runs
// need no model at all.
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}
	if err := c.Inpaint.Validate(); err != nil {
		return fmt.Errorf("inpaint config: %w", err)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must not be empty")
	}
	return nil
}

// ModelBytes resolves the model source: a local file when ModelPath is set,
// otherwise an error directing the caller to the download path. Download
// itself lives in the models package; this only covers the local case.
func (c Config) ModelBytes() ([]byte, error) {
	if c.ModelPath == "" {
		return nil, fmt.Errorf("no local model path configured")
	}
	data, err := os.ReadFile(c.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return data, nil
}
