package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/netmount/netmountd/pkg/bookmarks"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/symlink"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <uri|name>",
	Short: "Mount a single bookmark now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		b, err := resolveBookmark(cfg, args[0])
		if err != nil {
			return err
		}

		observer := mount.NewGvfsObserver()
		links := symlink.NewManager(cfg.Mount.BaseDir)

		if !observer.IsMounted(b.URI) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Mount.MountTimeoutDuration())
			defer cancel()
			if err := mount.NewGioMounter().Mount(ctx, b.URI); err != nil {
				return &types.ErrMountFailed{URI: b.URI, Cause: err}
			}
		}

		if b.CreateSymlink {
			if path, ok := observer.ResolvePath(b.URI); ok {
				if err := links.Ensure(b, path); err != nil {
					log.Warn().Err(err).Str("uri", b.URI).Msg("symlink not created")
				}
			}
		}
		fmt.Println(SuccessStyle.Render(SymbolMounted) + " " + BoldStyle.Render(b.DisplayName()) + " mounted")
		return nil
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount <uri|name>",
	Short: "Unmount a single bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		b, err := resolveBookmark(cfg, args[0])
		if err != nil {
			return err
		}

		links := symlink.NewManager(cfg.Mount.BaseDir)
		if err := links.Remove(b); err != nil {
			log.Warn().Err(err).Str("uri", b.URI).Msg("symlink not removed")
		}

		if !mount.NewGvfsObserver().IsMounted(b.URI) {
			fmt.Println(DimStyle.Render(b.DisplayName() + " is not mounted"))
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mount.MountTimeoutDuration())
		defer cancel()
		if err := mount.NewGioMounter().Unmount(ctx, b.URI); err != nil {
			return err
		}
		fmt.Println(DimStyle.Render(SymbolUnmounted) + " " + BoldStyle.Render(b.DisplayName()) + " unmounted")
		return nil
	},
}

// resolveBookmark finds a bookmark by exact URI or by display name.
func resolveBookmark(cfg types.AppConfig, arg string) (*types.Bookmark, error) {
	store := bookmarks.NewStore(cfg.BookmarksPath, cfg.SettingsPath)
	list, err := store.Load()
	if err != nil {
		return nil, err
	}
	settings, err := store.LoadSettings()
	if err != nil {
		log.Warn().Err(err).Msg("settings unreadable, using defaults")
	}
	store.ApplySettings(list, settings)

	for _, b := range list {
		if b.URI == arg {
			return b, nil
		}
	}
	for _, b := range list {
		if strings.EqualFold(b.DisplayName(), arg) {
			return b, nil
		}
	}
	return nil, &types.ErrBookmarkNotFound{URI: arg}
}
