package tray

import (
	_ "embed"

	"fyne.io/systray"
	"github.com/netmount/netmountd/pkg/controller"
	"github.com/netmount/netmountd/pkg/notify"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
)

//go:embed icons/connected.png
var iconConnected []byte

//go:embed icons/disconnected.png
var iconDisconnected []byte

// App is the tray presenter: it renders bookmark state received over the
// controller's event bus and feeds user commands back into the controller.
// It never touches mount state itself.
type App struct {
	cfg     types.AppConfig
	trayCfg Config
	ctrl    *controller.Controller
	gate    *notify.ConfigGated
	ui      *ui
	onQuit  func()
}

// Run starts the tray and blocks until Quit is chosen. Must run on the main
// goroutine; onQuit is invoked once when the tray exits. The notification
// gate is shared with the daemon so the menu toggle takes effect live.
func Run(cfg types.AppConfig, ctrl *controller.Controller, gate *notify.ConfigGated, onQuit func()) {
	app := &App{cfg: cfg, trayCfg: LoadConfig(), ctrl: ctrl, gate: gate, onQuit: onQuit}
	if gate != nil && !app.trayCfg.ShowNotifications {
		gate.SetEnabled(false)
	}
	systray.Run(app.onReady, app.onExit)
}

func (a *App) onReady() {
	a.ui = newUI(a)

	bus := a.ctrl.Bus()
	bus.On(controller.EventStateChanged, func(e controller.Event) {
		if a.ui != nil {
			a.ui.updateBookmark(e)
		}
	})
	bus.On(controller.EventListReloaded, func(controller.Event) {
		if a.ui != nil {
			a.ui.syncBookmarks(a.ctrl.Bookmarks())
		}
	})

	a.ui.syncBookmarks(a.ctrl.Bookmarks())
}

func (a *App) onExit() {
	if a.onQuit != nil {
		a.onQuit()
	}
}

func (a *App) checkNow() {
	go a.ctrl.Reconcile(true, false)
}

func (a *App) mountAll() {
	go func() {
		n := a.ctrl.MountAllEnabled()
		log.Info().Int("attempted", n).Msg("mount all requested")
	}()
}

func (a *App) unmountAll() {
	go func() {
		n := a.ctrl.UnmountAll()
		log.Info().Int("attempted", n).Msg("unmount all requested")
	}()
}

func (a *App) toggleNotifications() {
	a.trayCfg.ShowNotifications = !a.trayCfg.ShowNotifications
	if a.gate != nil {
		a.gate.SetEnabled(a.trayCfg.ShowNotifications)
	}
	if err := SaveConfig(a.trayCfg); err != nil {
		log.Warn().Err(err).Msg("tray config save failed")
	}
	if a.ui != nil {
		setChecked(a.ui.mNotify, a.trayCfg.ShowNotifications)
	}
}

func (a *App) toggleAutostart() {
	var err error
	if IsAutostartEnabled() {
		err = DisableAutostart()
	} else {
		err = EnableAutostart()
	}
	if err != nil {
		log.Error().Err(err).Msg("autostart toggle")
	}
	if a.ui != nil {
		a.ui.updateAutostartItem()
	}
}
