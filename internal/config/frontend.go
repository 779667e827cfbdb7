package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is the optional TOML file read at startup
const DefaultConfigFile = "frontend.toml"

// Config holds all configuration for the frontend server
type Config struct {
	Server   ServerConfig   `toml:"-"`
	Frontend FrontendConfig `toml:"frontend"`
	Dev      DevConfig      `toml:"dev"`
}

// FrontendConfig describes where the built entry point lives
type FrontendConfig struct {
	// Root is the directory holding the entry document and its bundled assets
	Root string `toml:"root"`

	// Entry is the entry document, relative to Root
	Entry string `toml:"entry"`
}

// DevConfig holds development mode switches
type DevConfig struct {
	Enabled bool `toml:"enabled"`
	HMR     bool `toml:"hmr"`
	Console bool `toml:"console"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultPort},
		Frontend: FrontendConfig{
			Root:  "frontend",
			Entry: "index.html",
		},
		Dev: DevConfig{
			Enabled: true,
			HMR:     true,
			Console: true,
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file at path
// and environment variables, in that order
func Load(path string, getenv func(string) string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if root := getenv("FRONTEND_ROOT"); root != "" {
		config.Frontend.Root = root
	}
	if entry := getenv("FRONTEND_ENTRY"); entry != "" {
		config.Frontend.Entry = entry
	}
	if dev, err := strconv.ParseBool(getenv("FRONTEND_DEV")); err == nil {
		config.Dev.Enabled = dev
	}

	config.Server = LoadServerConfig(getenv)

	return config, nil
}

// Validate checks that the entry document can be located under the root
func (c *Config) Validate() error {
	if c.Frontend.Root == "" {
		return fmt.Errorf("frontend root is required")
	}
	if c.Frontend.Entry == "" {
		return fmt.Errorf("frontend entry is required")
	}
	entry := filepath.ToSlash(c.Frontend.Entry)
	if filepath.IsAbs(c.Frontend.Entry) || strings.HasPrefix(entry, "/") || !fs.ValidPath(entry) {
		return fmt.Errorf("frontend entry %q must be a path inside the root", c.Frontend.Entry)
	}
	return nil
}

// FS opens the asset root as a filesystem
func (f FrontendConfig) FS() fs.FS {
	return os.DirFS(f.Root)
}
