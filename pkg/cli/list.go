package cli

import (
	"fmt"

	"github.com/netmount/netmountd/pkg/bookmarks"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/symlink"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List network bookmarks and their mount state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		store := bookmarks.NewStore(cfg.BookmarksPath, cfg.SettingsPath)
		list, err := store.Load()
		if err != nil {
			return err
		}
		settings, err := store.LoadSettings()
		if err != nil {
			log.Warn().Err(err).Msg("settings unreadable, showing defaults")
		}
		store.ApplySettings(list, settings)

		if len(list) == 0 {
			fmt.Println(DimStyle.Render("no network bookmarks in " + cfg.BookmarksPath))
			return nil
		}

		observer := mount.NewGvfsObserver()
		links := symlink.NewManager(cfg.Mount.BaseDir)

		for _, b := range list {
			symbol := DimStyle.Render(SymbolUnmounted)
			state := DimStyle.Render("unmounted")
			if !b.Enabled {
				symbol = DimStyle.Render(SymbolDisabled)
				state = DimStyle.Render("disabled")
			}
			if observer.IsMounted(b.URI) {
				symbol = SuccessStyle.Render(SymbolMounted)
				state = SuccessStyle.Render("mounted")
			}

			fmt.Printf("  %s %s %s %s\n", symbol, BoldStyle.Render(b.DisplayName()), DimStyle.Render(b.URI), state)
			if b.CreateSymlink {
				fmt.Printf("      %s\n", DimStyle.Render("symlink: "+links.DesiredPath(b)))
			}
		}
		return nil
	},
}
