package types

import "time"

// AppConfig is the root configuration for the netmountd daemon
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	BookmarksPath string `key:"bookmarksPath" json:"bookmarks_path"` // GTK bookmarks file
	SettingsPath  string `key:"settingsPath" json:"settings_path"`   // per-bookmark settings JSON

	Mount         MountConfig        `key:"mount" json:"mount"`
	Notifications NotificationConfig `key:"notifications" json:"notifications"`
}

// MountConfig controls the reconciliation and retry behavior
type MountConfig struct {
	CheckInterval int    `key:"checkInterval" json:"check_interval"` // minutes between reconcile passes
	RetryAttempts int    `key:"retryAttempts" json:"retry_attempts"` // max consecutive failures before giving up
	RetryDelay    int    `key:"retryDelay" json:"retry_delay"`       // seconds between retries
	BaseDir       string `key:"baseDir" json:"base_dir"`             // where symlinks are created
	StartupDelay  int    `key:"startupDelay" json:"startup_delay"`   // seconds before the first reconcile
	GraceDelay    int    `key:"graceDelay" json:"grace_delay"`       // seconds to let a fresh mount settle before symlinking
	MountTimeout  int    `key:"mountTimeout" json:"mount_timeout"`   // seconds for a single gio mount/unmount call
}

// NotificationConfig gates what gets surfaced to the desktop
type NotificationConfig struct {
	Enabled     bool `key:"enabled" json:"enabled"`
	ShowSuccess bool `key:"showSuccess" json:"show_success"`
	ShowErrors  bool `key:"showErrors" json:"show_errors"`
}

func (c MountConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(c.CheckInterval) * time.Minute
}

func (c MountConfig) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

func (c MountConfig) StartupDelayDuration() time.Duration {
	return time.Duration(c.StartupDelay) * time.Second
}

func (c MountConfig) GraceDelayDuration() time.Duration {
	return time.Duration(c.GraceDelay) * time.Second
}

func (c MountConfig) MountTimeoutDuration() time.Duration {
	return time.Duration(c.MountTimeout) * time.Second
}
