// Package acquire implements the acquire command.
package acquire

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eegstream/eegstream-go/internal/acquisition"
	"github.com/eegstream/eegstream-go/internal/buildinfo"
	"github.com/eegstream/eegstream-go/internal/conf"
	"github.com/eegstream/eegstream-go/internal/logger"
	"github.com/eegstream/eegstream-go/internal/telemetry"
)

// Command creates the acquire command
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire samples until interrupted",
		Long: `Start the configured device and process blocks until SIGINT or SIGTERM.
Without the web server the command also exits when a finite device, such as a
file, is exhausted. SIGHUP reopens log files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, info)
		},
	}

	setupFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, info *buildinfo.Context) error {
	log := logger.Global().Module("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Sentry.Enabled {
		systemID, err := telemetry.LoadOrCreateSystemID(configDir())
		if err != nil {
			log.Warn("failed to load system id, using a temporary one", logger.Error(err))
			systemID, _ = telemetry.GenerateSystemID()
		}
		info = info.WithSystemID(systemID)
		if err := telemetry.InitSentry(settings, info.SystemID(), info.Version()); err != nil {
			return err
		}
		defer telemetry.Close()
	}

	log.Info("starting acquisition",
		logger.String("version", info.Version()),
		logger.String("build_date", info.BuildDate()),
		logger.String("device_type", settings.Device.Type))

	return acquisition.Run(ctx, settings, logger.Global().Rotate)
}

// configDir is where the loaded config file lives, or the first default path
func configDir() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return filepath.Dir(used)
	}
	paths, err := conf.GetDefaultConfigPaths()
	if err != nil || len(paths) == 0 {
		return "."
	}
	return paths[0]
}

// setupFlags binds command flags to their config keys so flags take
// precedence over the config file.
func setupFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("device", "", "Device type: simulated, file, stream or soundcard")
	flags.String("file", "", "Recording to play back with the file device")
	flags.String("stream", "", "host:port of the sample stream")
	flags.Int("channels", 0, "Channels per block")
	flags.Int("samples", 0, "Samples per channel in one block")
	flags.Int("capacity", 0, "Blocks held by the sample buffer")
	flags.String("listen", "", "Web server listen address")
	flags.Bool("record", false, "Record the session to WAV")

	bindings := map[string]string{
		"device":   "device.type",
		"file":     "device.file.path",
		"stream":   "device.stream.address",
		"channels": "acquisition.channels",
		"samples":  "acquisition.samplesperblock",
		"capacity": "acquisition.capacity",
		"listen":   "webserver.listen",
		"record":   "processing.recorder.enabled",
	}
	for name, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			logger.Global().Module("main").Warn("error binding flag",
				logger.String("flag", name),
				logger.Error(err))
		}
	}
}
