// Package cmd wires the eegstream command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eegstream/eegstream-go/cmd/acquire"
	"github.com/eegstream/eegstream-go/cmd/config"
	"github.com/eegstream/eegstream-go/cmd/devices"
	"github.com/eegstream/eegstream-go/cmd/sessions"
	"github.com/eegstream/eegstream-go/internal/buildinfo"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// RootCommand creates and returns the root command. Settings are loaded
// before any subcommand runs, so subcommands share the pointer and read it
// in their RunE.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "eegstream",
		Short:         "Multichannel signal acquisition pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       info.Version(),
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml, default search paths when empty")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initLogging(settings)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Global().Flush()
	}

	rootCmd.AddCommand(
		acquire.Command(settings, info),
		devices.Command(settings),
		sessions.Command(settings),
		config.Command(settings),
	)
	return rootCmd
}

// initLogging replaces the fallback console logger with one built from settings
func initLogging(settings *conf.Settings) error {
	cfg := settings.Main.Log
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
