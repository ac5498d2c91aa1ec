package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/layer-3/gatekeeper/internal/config"
	"github.com/layer-3/gatekeeper/internal/logging"
)

var (
	configFile string

	// set by PersistentPreRunE
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Identity verification by password or wallet signature",
	Long: `Gatekeeper authenticates callers with an email and password or with a signed
wallet challenge, and issues session tokens that are re-checked against the
identity record on every use.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := initConfig()
		if err != nil {
			return err
		}

		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		logger, err = logging.Init(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		if configPath != "" {
			log.Debug().Msgf("using config file: %s", configPath)
		}
		return nil
	},
}

func init() {
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Configuration file (default is gatekeeper.yaml in the working directory or $HOME)")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", logging.FormatConsole, "Log format (console, json)")
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func initConfig() (string, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("gatekeeper")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
		return "", nil
	}
	return viper.ConfigFileUsed(), nil
}
