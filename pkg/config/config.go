package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed default.yaml
var defaultConfig []byte

const (
	configDir  = ".netmountd"
	configFile = "config.yaml"
)

// ConfigManager loads configuration from an embedded default set overlaid
// with an optional user config file. The file path comes from CONFIG_PATH
// or defaults to ~/.netmountd/config.yaml; a missing file is not an error.
type ConfigManager[T any] struct {
	k      *koanf.Koanf
	config T
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		parser := parserFor(path)
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	var cfg T
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "key"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &ConfigManager[T]{k: k, config: cfg}, nil
}

// GetConfig returns the loaded configuration.
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

func parserFor(path string) koanf.Parser {
	if strings.HasSuffix(path, ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

// DefaultConfigPath returns ~/.netmountd/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, configDir, configFile)
}

// DefaultSettingsPath returns ~/.netmountd/settings.json, where per-bookmark
// settings persist between runs.
func DefaultSettingsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, configDir, "settings.json")
}

// DefaultBookmarksPath returns the GTK bookmarks file netmountd reads by default.
func DefaultBookmarksPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gtk-3.0", "bookmarks")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
