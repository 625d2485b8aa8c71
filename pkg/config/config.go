package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fleetlink/fleetlink/pkg/types"
)

// Config is the agent configuration loaded from a YAML file. The connection
// core only ever sees the read-only Settings derived from it.
type Config struct {
	Server struct {
		URL        string `yaml:"url"`         // e.g. "wss://fleet.example.com/uplink"
		APIKey     string `yaml:"api_key"`     // shared secret
		ClientName string `yaml:"client_name"` // display name sent during auth
	} `yaml:"server"`

	Cache struct {
		Path string `yaml:"path"` // retry cache file; defaults under the data dir
	} `yaml:"cache"`

	Log struct {
		Level string `yaml:"level"` // debug, info, warn, error
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr"` // e.g. ":9290"; empty disables the endpoint
	} `yaml:"metrics"`
}

// Load reads and validates a YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Cache.Path = filepath.Join(home, ".fleetlink", "retry-cache.json")
	}
	if c.Server.ClientName == "" {
		c.Server.ClientName = "fleetlink"
	}
}

// Validate checks the fields the agent cannot run without.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("config: server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("config: server.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("config: server.url must use ws:// or wss://, got %q", u.Scheme)
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("config: server.api_key is required")
	}
	return nil
}

// Settings returns the read-only view consumed by the connection core.
func (c *Config) Settings() types.Settings {
	return types.Settings{
		ServerURL:  c.Server.URL,
		APIKey:     c.Server.APIKey,
		ClientName: c.Server.ClientName,
	}
}
