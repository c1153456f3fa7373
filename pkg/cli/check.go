package cli

import (
	"fmt"
	"time"

	"github.com/netmount/netmountd/pkg/mount"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reconcile pass and exit",
	Long: `Load the bookmarks, mount everything that is enabled and currently
unmounted, fix up symlinks, and exit. Bookmarks whose retries were
exhausted are attempted again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctrl := buildController(cfg, desktopNotifier(cfg))
		defer ctrl.Close()

		ctrl.Reconcile(true, false)

		// Mounts run asynchronously; wait for them to settle.
		deadline := time.Now().Add(cfg.Mount.MountTimeoutDuration() + 5*time.Second)
		for ctrl.InFlight() > 0 && time.Now().Before(deadline) {
			time.Sleep(200 * time.Millisecond)
		}

		observer := mount.NewGvfsObserver()
		mounted, total := 0, 0
		for _, b := range ctrl.Bookmarks() {
			if !b.Enabled {
				continue
			}
			total++
			if observer.IsMounted(b.URI) {
				mounted++
			}
		}
		if mounted == total {
			fmt.Println(SuccessStyle.Render(fmt.Sprintf("%d of %d bookmarks mounted", mounted, total)))
		} else {
			fmt.Println(WarningStyle.Render(fmt.Sprintf("%d of %d bookmarks mounted", mounted, total)))
		}
		return nil
	},
}
