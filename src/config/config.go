package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"imagekit/src/common"
)

// Config represents the application configuration
type Config struct {
	Site   SiteConfig   `yaml:"site"`
	Server ServerConfig `yaml:"server"`
	Image  ImageConfig  `yaml:"image"`
	Build  BuildConfig  `yaml:"build"`
}

type SiteConfig struct {
	Base       string `yaml:"base"`
	PublicDir  string `yaml:"public_dir"`
	ContentDir string `yaml:"content_dir"`
	OutDir     string `yaml:"out_dir"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ImageConfig struct {
	Endpoint       string                 `yaml:"endpoint"`
	Service        ServiceConfig          `yaml:"service"`
	Domains        []string               `yaml:"domains"`
	RemotePatterns []common.RemotePattern `yaml:"remote_patterns"`
	Breakpoints    []int                  `yaml:"breakpoints"`
	Layout         string                 `yaml:"layout"`
	ObjectFit      string                 `yaml:"object_fit"`
	ObjectPosition string                 `yaml:"object_position"`
	Formats        []string               `yaml:"formats"`
	Quality        map[string]int         `yaml:"quality"`
}

type ServiceConfig struct {
	Engine           string `yaml:"engine"`
	LimitInputPixels int    `yaml:"limit_input_pixels"`
	FetchTimeout     int    `yaml:"fetch_timeout_seconds"`
	MaxSourceBytes   int64  `yaml:"max_source_bytes"`
}

type BuildConfig struct {
	AssetsDir   string `yaml:"assets_dir"`
	Concurrency int    `yaml:"concurrency"`
	Manifest    string `yaml:"manifest"`
}

const (
	EngineVips    = "vips"
	EngineImaging = "imaging"
)

// DefaultBreakpoints are the srcset widths used by the full-width and constrained layouts
var DefaultBreakpoints = []int{640, 750, 828, 960, 1080, 1280, 1668, 1920, 2048, 2560, 3200, 3840, 4480, 5120, 6016}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file.
// A .env file next to it and IMAGEKIT_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(&cfg, filepath.Dir(path))
}

// LoadEnv builds a configuration without a file: defaults overridden by a
// .env file in dir and IMAGEKIT_* variables
func LoadEnv(dir string) (*Config, error) {
	return finish(&Config{}, dir)
}

func finish(cfg *Config, dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("IMAGEKIT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("IMAGEKIT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMAGEKIT_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("IMAGEKIT_BASE"); v != "" {
		c.Site.Base = v
	}
	if v := os.Getenv("IMAGEKIT_ENGINE"); v != "" {
		c.Image.Service.Engine = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Site.Base == "" {
		c.Site.Base = "/"
	}
	if c.Site.PublicDir == "" {
		c.Site.PublicDir = "public"
	}
	if c.Site.ContentDir == "" {
		c.Site.ContentDir = "content"
	}
	if c.Site.OutDir == "" {
		c.Site.OutDir = "dist"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 4321
	}
	if c.Image.Endpoint == "" {
		c.Image.Endpoint = "/_image"
	}
	if c.Image.Service.Engine == "" {
		c.Image.Service.Engine = EngineVips
	}
	if c.Image.Service.LimitInputPixels == 0 {
		c.Image.Service.LimitInputPixels = 268402689 // 0x3FFF * 0x3FFF
	}
	if c.Image.Service.FetchTimeout == 0 {
		c.Image.Service.FetchTimeout = 30
	}
	if c.Image.Service.MaxSourceBytes == 0 {
		c.Image.Service.MaxSourceBytes = 50 << 20
	}
	if len(c.Image.Breakpoints) == 0 {
		c.Image.Breakpoints = DefaultBreakpoints
	}
	if len(c.Image.Formats) == 0 {
		c.Image.Formats = []string{"webp"}
	}
	if c.Build.AssetsDir == "" {
		c.Build.AssetsDir = "_assets"
	}
	if c.Build.Manifest == "" {
		c.Build.Manifest = "images.json"
	}
}

// Validate checks configuration values
func (c *Config) Validate() error {
	if c.Site.PublicDir == "" {
		return fmt.Errorf("site.public_dir is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if c.Image.Endpoint == "" || c.Image.Endpoint[0] != '/' {
		return fmt.Errorf("image.endpoint must start with /")
	}
	switch c.Image.Service.Engine {
	case EngineVips, EngineImaging:
	default:
		return fmt.Errorf("image.service.engine must be %q or %q, got %q", EngineVips, EngineImaging, c.Image.Service.Engine)
	}
	switch c.Image.Layout {
	case "", "none", "constrained", "full-width", "fixed":
	default:
		return fmt.Errorf("image.layout %q is not a valid layout", c.Image.Layout)
	}
	for format, q := range c.Image.Quality {
		if q < 1 || q > 100 {
			return fmt.Errorf("image.quality.%s must be between 1 and 100", format)
		}
	}
	for _, bp := range c.Image.Breakpoints {
		if bp <= 0 {
			return fmt.Errorf("image.breakpoints must be positive")
		}
	}
	if c.Build.Concurrency < 0 {
		return fmt.Errorf("build.concurrency must not be negative")
	}
	return nil
}

// Addr returns the host:port the server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DefaultQuality returns the configured quality for an output format, or 0
func (c *Config) DefaultQuality(format string) int {
	if format == "jpg" {
		format = "jpeg"
	}
	if q, ok := c.Image.Quality[format]; ok {
		return q
	}
	return 0
}
