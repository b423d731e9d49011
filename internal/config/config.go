package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "STUDIO_CONFIG"

// DefaultPath is used when neither the flag nor EnvPath is set.
const DefaultPath = "config/studio.toml"

type Config struct {
	Studio   StudioConfig   `toml:"studio"`
	Loop     LoopConfig     `toml:"loop"`
	Plugins  PluginsConfig  `toml:"plugins"`
	Scene    SceneConfig    `toml:"scene"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Profile  ProfileConfig  `toml:"profile"`
}

type StudioConfig struct {
	Name string `toml:"name"`
}

type LoopConfig struct {
	TickRate  time.Duration `toml:"tick_rate"`
	MaxFrames int           `toml:"max_frames"` // 0 = run until interrupted
}

type PluginsConfig struct {
	Enabled           []string                  `toml:"enabled"`
	Catalog           string                    `toml:"catalog"`     // YAML catalog of script plugins
	ScriptsDir        string                    `toml:"scripts_dir"` // every .lua file here is loaded
	ActivationTimeout time.Duration             `toml:"activation_timeout"`
	Params            map[string]map[string]any `toml:"params"` // per-plugin StudioContext params
}

type SceneConfig struct {
	Load string `toml:"load"` // .json / .yaml file restored after activation
	Save  string `toml:"save"`  // written on shutdown
	Store bool   `toml:"store"` // also store the final scene in the database
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables persistence
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "cpu", "mem" or "off"
	Path string `toml:"path"`
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// ResolvePath picks the config file: the flag value, then EnvPath, then
// DefaultPath when it exists. It returns "" when there is nothing to load.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

func (c *Config) validate() error {
	if c.Loop.TickRate <= 0 {
		return eris.New("loop.tick_rate must be positive")
	}
	if c.Loop.MaxFrames < 0 {
		return eris.New("loop.max_frames must not be negative")
	}
	if c.Scene.Store && c.Database.DSN == "" {
		return eris.New("scene.store needs database.dsn")
	}
	switch c.Profile.Mode {
	case "", "off", "cpu", "mem":
	default:
		return eris.Errorf("profile.mode %q: want cpu, mem or off", c.Profile.Mode)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return eris.Errorf("logging.format %q: want json or console", c.Logging.Format)
	}
	return nil
}

// PluginParams returns the params configured for one plugin, or nil.
func (c *Config) PluginParams(name string) map[string]any {
	return c.Plugins.Params[name]
}

func defaults() *Config {
	return &Config{
		Studio: StudioConfig{
			Name: "physim-studio",
		},
		Loop: LoopConfig{
			TickRate: time.Second / 60,
		},
		Plugins: PluginsConfig{
			Enabled:           []string{"core"},
			ScriptsDir:        "scripts",
			ActivationTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profile: ProfileConfig{
			Mode: "off",
			Path: ".",
		},
	}
}
