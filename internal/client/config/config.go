package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/openvault/vaultsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".vaultsync", "config.json")
	DefaultVaultDir   = filepath.Join(home, "Vault")
	DefaultRemoteRoot = "notes"
)

var (
	ErrNoVaultDir  = errors.New("config: vault dir missing")
	ErrNoServerURL = errors.New("config: server url missing")
)

type Config struct {
	VaultDir   string `json:"vault_dir"`
	ServerURL  string `json:"server_url"`
	RemoteRoot string `json:"remote_root"`
	APIKey     string `json:"api_key,omitempty"`
	DeviceID   string `json:"device_id"`
	QuickScan  bool   `json:"quick_scan,omitempty"`
	Path       string `json:"-"`
}

func (c *Config) Validate() error {
	if c.VaultDir == "" {
		return ErrNoVaultDir
	}
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	if _, err := url.Parse(c.ServerURL); err != nil {
		return fmt.Errorf("config: invalid server url %q: %w", c.ServerURL, err)
	}
	if c.RemoteRoot == "" {
		c.RemoteRoot = DefaultRemoteRoot
	}
	return nil
}

// EnsureDeviceID derives and pins a device id on first use. The id is
// persisted so conflict-copy filenames stay stable for this install.
func (c *Config) EnsureDeviceID() error {
	if c.DeviceID != "" {
		return nil
	}
	id, err := utils.DeviceID()
	if err != nil {
		return err
	}
	c.DeviceID = id
	return c.Save(c.Path)
}

func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath
	}
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	if cfg.RemoteRoot == "" {
		cfg.RemoteRoot = DefaultRemoteRoot
	}

	return &cfg, nil
}
