package tray

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configDir = ".netmountd"
const configFile = "tray.yaml"

// Config holds tray-local preferences, separate from the daemon config:
// these are toggled from the menu itself and persist between sessions.
type Config struct {
	ShowNotifications bool `yaml:"showNotifications"`
}

// DefaultConfig returns the default tray configuration.
func DefaultConfig() Config {
	return Config{
		ShowNotifications: true,
	}
}

func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, configDir, configFile)
}

// LoadConfig loads tray preferences from ~/.netmountd/tray.yaml.
// Returns defaults if the file does not exist or cannot be parsed.
func LoadConfig() Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath())
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig()
	}
	return cfg
}

// SaveConfig writes tray preferences to ~/.netmountd/tray.yaml.
func SaveConfig(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
