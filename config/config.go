package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/errors"
)

// MaxFileSize bounds the configuration file read by Load.
const MaxFileSize = 1 << 20

// Defaults.
const (
	DefaultAddr          = ":8080"
	DefaultInvokeTimeout = 30 * time.Second
	DefaultMaxUpload     = 64 << 20
	DefaultLogLevel      = "info"
)

// Config is the full set of bridge settings.
type Config struct {
	Engine   Engine `yaml:"engine"`
	Server   Server `yaml:"server"`
	LogLevel string `yaml:"log_level" env:"ENGINE_BRIDGE_LOG_LEVEL"`
}

// Engine selects and constrains the engine image.
type Engine struct {
	// Image is a file path. ImageURL is used when Image is empty.
	Image            string `yaml:"image" env:"ENGINE_BRIDGE_IMAGE"`
	ImageURL         string `yaml:"image_url" env:"ENGINE_BRIDGE_IMAGE_URL"`
	Assets           string `yaml:"assets" env:"ENGINE_BRIDGE_ASSETS"`
	AssetsMount      string `yaml:"assets_mount" env:"ENGINE_BRIDGE_ASSETS_MOUNT"`
	CacheDir         string `yaml:"cache_dir" env:"ENGINE_BRIDGE_CACHE_DIR"`
	Name             string `yaml:"name" env:"ENGINE_BRIDGE_NAME"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" env:"ENGINE_BRIDGE_MEMORY_LIMIT_PAGES"`
}

// Server configures the HTTP host service.
type Server struct {
	Addr string `yaml:"addr" env:"ENGINE_BRIDGE_ADDR"`
	// InvokeTimeout bounds how long a request waits for its turn on the engine.
	InvokeTimeout time.Duration `yaml:"invoke_timeout" env:"ENGINE_BRIDGE_INVOKE_TIMEOUT"`
	MaxUpload     int64         `yaml:"max_upload" env:"ENGINE_BRIDGE_MAX_UPLOAD"`
	Metrics       bool          `yaml:"metrics" env:"ENGINE_BRIDGE_METRICS"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Engine: Engine{
			AssetsMount: engine.DefaultAssetsMount,
			Name:        engine.DefaultModuleName,
		},
		Server: Server{
			Addr:          DefaultAddr,
			InvokeTimeout: DefaultInvokeTimeout,
			MaxUpload:     DefaultMaxUpload,
			Metrics:       true,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.decodeYAML(data); err != nil {
			e := errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config file")
			e.Path = path
			return nil, e
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables already set are kept. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "load .env")
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		e := errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "stat config file")
		e.Path = path
		return nil, e
	}
	if info.Size() > MaxFileSize {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).
			Detail("config file is %d bytes (max %d)", info.Size(), MaxFileSize).
			Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		e := errors.Wrap(errors.PhaseConfig, errors.KindSourceUnreadable, err, "read config file")
		e.Path = path
		return nil, e
	}
	return data, nil
}

// decodeYAML overlays data onto c. Unknown keys are rejected.
func (c *Config) decodeYAML(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return yaml.UnmarshalWithOptions(data, c, yaml.Strict())
}

// ApplyEnv overlays ENGINE_BRIDGE_* variables onto c. Unset variables leave
// fields unchanged.
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode environment")
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
	}
	if c.Engine.Image != "" && c.Engine.ImageURL != "" {
		return invalid("engine.image and engine.image_url are mutually exclusive")
	}
	if u := c.Engine.ImageURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return invalid("engine.image_url must be http or https, got %q", u)
	}
	if m := c.Engine.AssetsMount; m != "" && !strings.HasPrefix(m, "/") {
		return invalid("engine.assets_mount must be absolute, got %q", m)
	}
	if c.Engine.MemoryLimitPages > 65536 {
		return invalid("engine.memory_limit_pages %d exceeds 65536", c.Engine.MemoryLimitPages)
	}
	if c.Server.InvokeTimeout < 0 {
		return invalid("server.invoke_timeout must not be negative")
	}
	if c.Server.MaxUpload <= 0 {
		return invalid("server.max_upload must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// HasImage reports whether an engine image is configured.
func (c *Config) HasImage() bool {
	return c.Engine.Image != "" || c.Engine.ImageURL != ""
}

// EngineConfig converts the engine settings for engine.Open.
func (c *Config) EngineConfig() engine.Config {
	var src engine.Source
	switch {
	case c.Engine.Image != "":
		src = engine.FileSource(c.Engine.Image)
	case c.Engine.ImageURL != "":
		src = engine.URLSource(c.Engine.ImageURL, nil)
	}
	return engine.Config{
		Source:           src,
		AssetsDir:        c.Engine.Assets,
		AssetsMount:      c.Engine.AssetsMount,
		CacheDir:         c.Engine.CacheDir,
		Name:             c.Engine.Name,
		MemoryLimitPages: c.Engine.MemoryLimitPages,
	}
}
