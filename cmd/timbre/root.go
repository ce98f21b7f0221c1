package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/config"
)

var (
	configFile string
	verbose    bool

	v         = config.NewViper()
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "timbre",
	Short: "Real-time timbre analysis",
	Long: `Detects onsets in audio, extracts a windowed matrix of spectral and
temporal features around each one and classifies the result with a k-NN model.

Configuration is read from a YAML file (--config), TIMBRE_* environment
variables and flags, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (YAML)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Float64("sample-rate", 44100, "sample rate in Hz (files use their own)")
	flags.Int("block-size", 64, "audio block size in samples")
	flags.Int("channel", 0, "channel to analyse")
	flags.Int("window-size", 1024, "extraction super-window in samples")
	flags.StringSlice("features", nil, "enabled features (default all but Cepstrum)")

	bindFlag(flags, "log.level", "log-level")
	bindFlag(flags, "audio.sample_rate", "sample-rate")
	bindFlag(flags, "audio.block_size", "block-size")
	bindFlag(flags, "audio.channel", "channel")
	bindFlag(flags, "extraction.window_size", "window-size")
	bindFlag(flags, "extraction.features", "features")
}

func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

// initializeConfig loads the configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	// keep stdout for command output
	logging.SetGlobalLogger(logging.NewWriterLogger(os.Stderr, os.Stderr, true))

	if err := config.ReadFile(v, configFile); err != nil {
		return err
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()
	if verbose {
		logging.SetLevel(logging.DebugLevel)
	}

	appConfig = cfg
	return nil
}
