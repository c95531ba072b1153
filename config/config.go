package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNetworkName = "casper-test"
	DefaultContractID  = "hash-permit-local"
	DefaultDataDir     = "./permit-data"
	DefaultBackend     = "leveldb"
)

// Config describes one local ledger: the domain permits are bound to, where
// state lives and how the operator tooling logs.
type Config struct {
	NetworkName  string    `toml:"NetworkName" yaml:"NetworkName"`
	ContractID   string    `toml:"ContractID" yaml:"ContractID"`
	DataDir      string    `toml:"DataDir" yaml:"DataDir"`
	Backend      string    `toml:"Backend" yaml:"Backend"`
	Token        Token     `toml:"token" yaml:"token"`
	KeystorePath string    `toml:"KeystorePath" yaml:"KeystorePath"`
	LogFile      string    `toml:"LogFile" yaml:"LogFile"`
	MetricsFile  string    `toml:"MetricsFile" yaml:"MetricsFile"`
	Telemetry    Telemetry `toml:"telemetry" yaml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown field %s", path, undecoded[0])
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh workspace.
func Default() *Config {
	return &Config{
		NetworkName: DefaultNetworkName,
		ContractID:  DefaultContractID,
		DataDir:     DefaultDataDir,
		Backend:     DefaultBackend,
		Token:       DefaultToken(),
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = DefaultBackend
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in the format selected by its extension.
func Save(path string, cfg *Config) error {
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

// ResolvePath interprets p relative to the directory holding the config file.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
