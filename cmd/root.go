// Package cmd assembles the h2wire inspection CLI: offline decoding of
// frame streams and header blocks, and an hpack-test-case story runner.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/h2wire/internal/config"
	"github.com/xkilldash9x/h2wire/internal/observability"
)

var (
	cfgFile  string
	logLevel string

	// cfg is the resolved configuration every subcommand reads.
	cfg *config.Config
	// log is the root command logger, tagged with a per-invocation id so
	// file logs from overlapping runs stay separable.
	log *zap.Logger
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "h2wire",
	Short:   "h2wire inspects HTTP/2 frame streams and HPACK header blocks.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		var err error
		cfg, err = config.NewFromViper(viper.GetViper())
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "h2wire"})
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logger.Level = logLevel
		}

		observability.InitializeLogger(cfg.Logger)
		log = observability.GetLogger().With(zap.String("run_id", uuid.NewString()))
		return nil
	},
}

// Execute runs the command tree.
func Execute() error {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches . and ~/.h2wire)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads the config file and H2WIRE_* environment variables.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		for _, p := range config.DefaultSearchPaths() {
			v.AddConfigPath(p)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("H2WIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}
