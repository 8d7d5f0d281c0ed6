package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/wippyai/engine-bridge/config"
)

// commonFlags are accepted by every command.
type commonFlags struct {
	config   string
	envFile  string
	image    string
	imageURL string
	assets   string
	cacheDir string
	logLevel string
	pages    uint32
	verbose  bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.config, "config", "c", "", "YAML config file")
	fs.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.StringVarP(&c.image, "image", "i", "", "engine image file")
	fs.StringVar(&c.imageURL, "image-url", "", "engine image URL")
	fs.StringVar(&c.assets, "assets", "", "host directory mounted read-only into the engine")
	fs.StringVar(&c.cacheDir, "cache-dir", "", "directory for the compilation cache")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	fs.Uint32Var(&c.pages, "memory-pages", 0, "engine memory limit in 64KiB pages")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "shorthand for --log-level=debug")
}

// load resolves the configuration: .env, file, environment, then flags.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}

	if fs.Changed("image") {
		cfg.Engine.Image, cfg.Engine.ImageURL = c.image, ""
	}
	if fs.Changed("image-url") {
		cfg.Engine.ImageURL, cfg.Engine.Image = c.imageURL, ""
	}
	if fs.Changed("assets") {
		cfg.Engine.Assets = c.assets
	}
	if fs.Changed("cache-dir") {
		cfg.Engine.CacheDir = c.cacheDir
	}
	if fs.Changed("memory-pages") {
		cfg.Engine.MemoryLimitPages = c.pages
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if c.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasImage() {
		return nil, fmt.Errorf("%w: no engine image; use --image, --image-url or engine.image", ErrUsage)
	}
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}
