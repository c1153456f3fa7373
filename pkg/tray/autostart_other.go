//go:build !linux

package tray

import "errors"

// GVFS only exists on Linux desktops; other platforms get no autostart.

func EnableAutostart() error {
	return errors.New("autostart is only supported on Linux")
}

func DisableAutostart() error {
	return nil
}

func IsAutostartEnabled() bool {
	return false
}
