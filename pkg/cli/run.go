package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/netmount/netmountd/pkg/bookmarks"
	"github.com/netmount/netmountd/pkg/config"
	"github.com/netmount/netmountd/pkg/controller"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/notify"
	"github.com/netmount/netmountd/pkg/retry"
	"github.com/netmount/netmountd/pkg/symlink"
	"github.com/netmount/netmountd/pkg/tray"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the auto-mount daemon",
	Long: `Run the reconciliation daemon: bookmarks are mounted on startup and
kept mounted, symlinks are maintained, and failures retried. The daemon
re-checks on the configured interval and whenever the bookmarks or
settings file changes.

Examples:
  netmountd run
  netmountd run --tray
  netmountd run --config ~/.netmountd/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		gate := desktopNotifier(cfg)
		ctrl := buildController(cfg, gate)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			err := ctrl.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})

		watcher, err := bookmarks.NewWatcher(
			[]string{cfg.BookmarksPath, cfg.SettingsPath},
			ctrl.TriggerReconcile,
		)
		if err != nil {
			log.Warn().Err(err).Msg("file watching unavailable, relying on periodic checks")
		} else {
			g.Go(func() error {
				err := watcher.Run(ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			})
		}

		// Config edits take effect without a restart: a changed check
		// interval re-arms the controller's ticker.
		cfgPath := os.Getenv("CONFIG_PATH")
		if cfgPath == "" {
			cfgPath = config.DefaultConfigPath()
		}
		cfgWatcher, err := bookmarks.NewWatcher([]string{cfgPath}, func() {
			log.Info().Str("path", cfgPath).Msg("config file changed, reloading")
			ctrl.ApplyConfig(loadConfig())
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watching unavailable, restart to apply changes")
		} else {
			g.Go(func() error {
				err := cfgWatcher.Run(ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			})
		}

		log.Info().
			Str("bookmarks", cfg.BookmarksPath).
			Str("base_dir", cfg.Mount.BaseDir).
			Int("check_interval_min", cfg.Mount.CheckInterval).
			Msg("netmountd started")

		if withTray {
			// systray insists on the main goroutine; Quit cancels the rest.
			tray.Run(cfg, ctrl, gate, cancel)
		}

		err = g.Wait()
		if closeErr := ctrl.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("shutdown cleanup incomplete")
		}
		log.Info().Msg("netmountd stopped")
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&withTray, "tray", false, "Show a system tray menu")
}

// buildController wires the controller with its live collaborators.
func buildController(cfg types.AppConfig, notifier notify.Notifier) *controller.Controller {
	store := bookmarks.NewStore(cfg.BookmarksPath, cfg.SettingsPath)
	return controller.New(
		cfg,
		store,
		mount.NewGvfsObserver(),
		mount.NewGioMounter(),
		symlink.NewManager(cfg.Mount.BaseDir),
		retry.NewScheduler(),
		notifier,
	)
}

func desktopNotifier(cfg types.AppConfig) *notify.ConfigGated {
	return notify.NewConfigGated(notify.NewDesktopNotifier(), cfg.Notifications)
}
