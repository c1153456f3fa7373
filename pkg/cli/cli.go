package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/netmount/netmountd/pkg/config"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

var (
	configPath string
	withTray   bool
)

var rootCmd = &cobra.Command{
	Use:   "netmountd",
	Short: "Auto-mount network bookmarks",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("netmountd") + ` - Auto-mount network bookmarks

Keeps the remote shares from your file manager bookmarks mounted,
exposes each mount under a stable symlink, and retries failures.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv("CONFIG_PATH", configPath)
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("netmountd version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.netmountd/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig builds the effective configuration with all paths resolved.
func loadConfig() types.AppConfig {
	cm, err := config.NewConfigManager[types.AppConfig]()
	if err != nil {
		log.Warn().Err(err).Msg("config unreadable, using defaults")
		cm, err = freshDefaults()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot build default config")
		}
	}
	cfg := cm.GetConfig()

	if cfg.BookmarksPath == "" {
		cfg.BookmarksPath = config.DefaultBookmarksPath()
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = config.DefaultSettingsPath()
	}
	cfg.BookmarksPath = config.ExpandHome(cfg.BookmarksPath)
	cfg.SettingsPath = config.ExpandHome(cfg.SettingsPath)
	cfg.Mount.BaseDir = config.ExpandHome(cfg.Mount.BaseDir)

	setupLogging(cfg)
	return cfg
}

// freshDefaults retries config loading with the user file out of the way.
func freshDefaults() (*config.ConfigManager[types.AppConfig], error) {
	os.Setenv("CONFIG_PATH", os.DevNull)
	return config.NewConfigManager[types.AppConfig]()
}

func setupLogging(cfg types.AppConfig) {
	level := zerolog.InfoLevel
	if cfg.DebugMode {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Logger.Level(level)
	if cfg.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}
