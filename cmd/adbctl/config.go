package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownDevice is one entry in the CLI's configured device list, addressed
// by name instead of a raw host:port every time.
type KnownDevice struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Config is adbctl's YAML configuration schema.
type Config struct {
	KeyPath               string        `yaml:"key_path"`
	TrustStorePath        string        `yaml:"trust_store_path"`
	AssumePairingRequired bool          `yaml:"assume_pairing_required"`
	Devices               []KnownDevice `yaml:"devices"`
}

// defaultConfig supplies the CLI's own defaults: a key under the user's
// home and a trust store next to it, so a bare "adbctl shell <device>"
// works before any config exists.
func defaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		KeyPath:        home + "/.adbctl/adbkey",
		TrustStorePath: home + "/.adbctl/trusted",
	}
}

// LoadConfig reads the YAML file at path if it exists, overlaying it on
// defaultConfig; a missing file is not an error, following
// cmd/portal-tunnel/config.go's LoadConfig/validate split except that a
// config file here is optional rather than required.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	var errs []string
	for i, d := range cfg.Devices {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Sprintf("devices[%d]: name cannot be empty", i))
		}
		if strings.TrimSpace(d.Address) == "" {
			errs = append(errs, fmt.Sprintf("devices[%d]: address cannot be empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n - %s", strings.Join(errs, "\n - "))
	}
	return nil
}

// resolveAddress maps a configured device name to its address, or returns
// addressOrName unchanged if it isn't a known device (so a raw host:port
// always works too).
func (cfg *Config) resolveAddress(addressOrName string) string {
	for _, d := range cfg.Devices {
		if d.Name == addressOrName {
			return d.Address
		}
	}
	return addressOrName
}
