// Package config loads the keyforge configuration file.
//
// The file is TOML with one section per concern:
//
//	[optimize]
//	steps = 100000
//	model = "mod01"
//	pins = "1"
//
//	[cache]
//	redis_addr = "localhost:6379"
//	ttl = "72h"
//
//	[store]
//	mongo_uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
//
// Missing values keep their defaults; command line flags override the file.
package config

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/optimize"
	"github.com/matzehuels/keyforge/pkg/pipeline"
)

const appName = "keyforge"

// Config is the full configuration.
type Config struct {
	Optimize Optimize `toml:"optimize"`
	Cache    Cache    `toml:"cache"`
	Store    Store    `toml:"store"`
	Server   Server   `toml:"server"`
}

// Optimize holds defaults for optimization runs.
type Optimize struct {
	Keyboard      string  `toml:"keyboard"`
	Model         string  `toml:"model"`
	Steps         int     `toml:"steps"`
	Cooling       float64 `toml:"cooling"`
	Seed          uint64  `toml:"seed"`
	TriadLimit    int     `toml:"triad_limit"`
	Randomize     bool    `toml:"randomize"`
	Pins          string  `toml:"pins"`
	Restarts      int     `toml:"restarts"`
	ProgressEvery int     `toml:"progress_every"`
}

// Cache selects the cache backend. A redis address takes precedence over
// the directory.
type Cache struct {
	Disabled      bool     `toml:"disabled"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// Store selects the run store. A Mongo URI takes precedence over the
// directory.
type Store struct {
	Disabled      bool   `toml:"disabled"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Server configures the HTTP API.
type Server struct {
	Addr     string `toml:"addr"`
	MaxSteps int    `toml:"max_steps"`
}

// Duration is a time.Duration written as a string like "36h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Optimize: Optimize{
			Keyboard: pipeline.DefaultKeyboard,
			Model:    pipeline.DefaultModel,
			Steps:    pipeline.DefaultSteps,
			Cooling:  optimize.DefaultCooling,
			Seed:     pipeline.DefaultSeed,
			Restarts: pipeline.DefaultRestarts,
		},
		Store:  Store{MongoDatabase: appName},
		Server: Server{Addr: ":8080", MaxSteps: 200000},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/keyforge/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// Load reads the configuration at path over the defaults. An empty path
// reads the default file if it exists.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		if _, err := os.Stat(p); err != nil {
			return Default(), nil
		}
		path = p
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "open config")
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	}
	return cfg, nil
}

// Decode reads TOML over the defaults. Unknown keys are an error.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Config{}, errors.New(errors.ErrCodeInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	o := c.Optimize
	switch {
	case o.Steps < 0:
		return errors.New(errors.ErrCodeInvalidInput, "optimize.steps must not be negative")
	case o.Cooling < 0:
		return errors.New(errors.ErrCodeInvalidInput, "optimize.cooling must not be negative")
	case o.TriadLimit < 0:
		return errors.New(errors.ErrCodeInvalidInput, "optimize.triad_limit must not be negative")
	case o.Restarts < 0:
		return errors.New(errors.ErrCodeInvalidInput, "optimize.restarts must not be negative")
	case o.ProgressEvery < 0:
		return errors.New(errors.ErrCodeInvalidInput, "optimize.progress_every must not be negative")
	case c.Cache.TTL.Duration < 0:
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	case c.Server.MaxSteps < 0:
		return errors.New(errors.ErrCodeInvalidInput, "server.max_steps must not be negative")
	}
	return nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// PipelineOptions returns the optimize section as pipeline options.
func (o Optimize) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Keyboard:      o.Keyboard,
		Model:         o.Model,
		Steps:         o.Steps,
		Cooling:       o.Cooling,
		Seed:          o.Seed,
		TriadLimit:    o.TriadLimit,
		Randomize:     o.Randomize,
		Pins:          o.Pins,
		Restarts:      o.Restarts,
		ProgressEvery: o.ProgressEvery,
	}
}
