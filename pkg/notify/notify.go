package notify

import (
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
)

type Severity int

const (
	// SeverityInfo marks success notices; shown only when showSuccess is on.
	SeverityInfo Severity = iota

	// SeverityStatus marks replies to an explicit user request (manual
	// check summaries). Not gated by showSuccess: the user asked for it.
	SeverityStatus

	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityStatus:
		return "status"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier surfaces mount lifecycle outcomes to the user.
type Notifier interface {
	Notify(title, message string, sev Severity)
}

// DesktopNotifier shows OS desktop notifications.
type DesktopNotifier struct{}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

func (n *DesktopNotifier) Notify(title, message string, sev Severity) {
	var err error
	if sev == SeverityError {
		err = beeep.Alert(title, message, "")
	} else {
		err = beeep.Notify(title, message, "")
	}
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("desktop notification failed")
	}
}

// LogNotifier writes notifications to the log. Used headless.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(title, message string, sev Severity) {
	ev := log.Info()
	switch sev {
	case SeverityWarning:
		ev = log.Warn()
	case SeverityError:
		ev = log.Error()
	}
	ev.Str("title", title).Msg(message)
}

// ConfigGated filters notifications through the show-* settings: info-class
// messages require showSuccess, warnings and errors require showErrors,
// status replies only need notifications on, and nothing gets through when
// notifications are disabled entirely. State stays visible through the menu
// and `netmountd list` regardless.
type ConfigGated struct {
	inner Notifier

	mu  sync.Mutex
	cfg types.NotificationConfig
}

func NewConfigGated(inner Notifier, cfg types.NotificationConfig) *ConfigGated {
	return &ConfigGated{inner: inner, cfg: cfg}
}

// SetEnabled flips the master notification switch at runtime. Used by the
// tray's notifications toggle.
func (n *ConfigGated) SetEnabled(on bool) {
	n.mu.Lock()
	n.cfg.Enabled = on
	n.mu.Unlock()
}

// Enabled reports the master notification switch.
func (n *ConfigGated) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg.Enabled
}

func (n *ConfigGated) Notify(title, message string, sev Severity) {
	n.mu.Lock()
	cfg := n.cfg
	n.mu.Unlock()

	if !cfg.Enabled {
		return
	}
	switch sev {
	case SeverityInfo:
		if !cfg.ShowSuccess {
			return
		}
	case SeverityStatus:
		// Requested status reports pass whenever notifications are on.
	case SeverityWarning, SeverityError:
		if !cfg.ShowErrors {
			return
		}
	}
	n.inner.Notify(title, message, sev)
}
