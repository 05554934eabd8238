package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "nativeshot",
		Short: "nativeshot - capture the pixels of the app's own native window",
		Long: `nativeshot opens a demo window, reads its on-screen pixels back through
the platform window system and delivers them to the app's tick loop.

Features:
  • X11 capture via Composite or GetImage
  • Win32 capture via GDI
  • Headless virtual backend for CI
  • PNG, BMP and TIFF output
  • REST API and websocket notifications`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/nativeshot/config.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("backend", "", "capture backend (auto, x11, virtual)")
	flags.Int("tick-rate", 0, "loop ticks per second (default is 60)")
	flags.Int("port", 0, "server port (default is 8080)")
	flags.String("title", "", "demo window title")
	flags.Int("width", 0, "demo window width")
	flags.Int("height", 0, "demo window height")

	// Bind flags to viper
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("backend", flags.Lookup("backend"))
	viper.BindPFlag("tick_rate", flags.Lookup("tick-rate"))
	viper.BindPFlag("server_port", flags.Lookup("port"))
	viper.BindPFlag("window.title", flags.Lookup("title"))
	viper.BindPFlag("window.width", flags.Lookup("width"))
	viper.BindPFlag("window.height", flags.Lookup("height"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
