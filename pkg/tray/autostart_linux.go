//go:build linux

package tray

import (
	"fmt"
	"os"
	"path/filepath"
)

const desktopFileName = "netmountd.desktop"

func autostartDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "autostart")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "autostart")
}

func autostartPath() string {
	return filepath.Join(autostartDir(), desktopFileName)
}

const desktopTemplate = `[Desktop Entry]
Type=Application
Name=Network Mounts
Comment=Automatically mount network bookmarks
Exec=%s run --tray
Icon=folder-remote
Terminal=false
Categories=Utility;
StartupNotify=false
X-GNOME-Autostart-enabled=true
`

// EnableAutostart creates an XDG autostart desktop entry for the daemon.
func EnableAutostart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	path := autostartPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf(desktopTemplate, exe)), 0644)
}

// DisableAutostart removes the XDG autostart desktop entry.
func DisableAutostart() error {
	err := os.Remove(autostartPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsAutostartEnabled checks if the autostart desktop entry exists.
func IsAutostartEnabled() bool {
	_, err := os.Stat(autostartPath())
	return err == nil
}
