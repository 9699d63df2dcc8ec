package main

import (
	"github.com/spf13/cobra"

	"github.com/jonasrichard/mediamosaic/internal/config"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "mediamosaic",
	Short: "Sprite-sheet thumbnail galleries for image directories",
	Long: `mediamosaic scans a directory of images, packs same-height thumbnails into
composite sprite sheets and writes a bundles.json sidecar describing where
every thumbnail sits, so a whole gallery renders from a handful of images.

Configuration is read from mediamosaic.toml (or --config), then
MEDIAMOSAIC_<SECTION>_<KEY> environment variables, then flags.

Quick Start:
  mediamosaic serve --root ~/Pictures      Serve and sync on request
  mediamosaic sync holiday --root ~/Pictures   Build one gallery and exit`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mediamosaic.toml)")
	rootCmd.PersistentFlags().String("root", "", "directory served and synced")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	v.BindPFlag("storage.root", rootCmd.PersistentFlags().Lookup("root"))
	v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}
