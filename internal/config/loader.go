package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelkit/internal/common/fsutil"
)

// Config holds runtime parameters for the CLI and the routers it builds.
// Zero values mean "unspecified" and are replaced by Default's values.
type Config struct {
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format" toml:"log_format"`
	PanicPolicy string `json:"panic_policy" yaml:"panic_policy" toml:"panic_policy"`
	Coalesce    bool   `json:"coalesce" yaml:"coalesce" toml:"coalesce"`
	Metrics     bool   `json:"metrics" yaml:"metrics" toml:"metrics"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "console",
		PanicPolicy: "continue",
	}
}

// Load reads a configuration file based on its extension and fills
// unspecified fields from Default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	b, err := fsutil.ReadFile("config", path)
	if err != nil {
		return cfg, err
	}
	switch ext := fsutil.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.PanicPolicy == "" {
		c.PanicPolicy = d.PanicPolicy
	}
}

// ApplyEnv overrides fields from MODELKIT_* environment variables.
func (c *Config) ApplyEnv() {
	c.LogLevel = envStr("MODELKIT_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr("MODELKIT_LOG_FORMAT", c.LogFormat)
	c.PanicPolicy = envStr("MODELKIT_PANIC_POLICY", c.PanicPolicy)
	c.Coalesce = envBool("MODELKIT_COALESCE", c.Coalesce)
	c.Metrics = envBool("MODELKIT_METRICS", c.Metrics)
}

// Env helpers
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	s := strings.ToLower(v)
	return s == "1" || s == "true" || s == "yes"
}
