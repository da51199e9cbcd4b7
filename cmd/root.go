package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is prepended to flag names to form environment overrides, e.g.
// WAVEGEN_MAX_AGENTS for --max-agents.
const envPrefix = "WAVEGEN"

var (
	logLevel  string // Log verbosity level
	logFormat string // text or json
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "wavegen",
	Short:         "Sine-wave shaped multi-agent TCP load generator",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyEnv(cmd.Flags()); err != nil {
			return err
		}
		return setupLogging(logLevel, logFormat)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// applyEnv fills every flag the user did not set on the command line from
// its WAVEGEN_* environment variable, if present.
func applyEnv(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if bindErr := v.BindEnv(f.Name); bindErr != nil {
			err = bindErr
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if setErr := flags.Set(f.Name, v.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("environment override for --%s: %w", f.Name, setErr)
		}
	})
	return err
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", level)
	}
	logrus.SetLevel(lvl)
	switch format {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q (text, json)", format)
	}
	logrus.SetOutput(os.Stderr)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}
