package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
)

var (
	cfgFile string
	Version = "v0.1"
	rootCmd = &cobra.Command{
		Use:   "trailsentry",
		Short: "TrailSentry - IAM access-audit anomaly detection",
		Long:  "TrailSentry: parse CloudTrail logs and score per-principal risk with rules and an unsupervised outlier model.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// load config
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				// default: ./config.yaml
				viper.SetConfigFile("config.yaml")
			}
			if err := viper.ReadInConfig(); err != nil {
				// Most commands work fine on defaults; note it and continue.
				fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
			}
			if err := config.Load(viper.GetViper()); err != nil {
				return err
			}

			// init logger
			cfg := config.Get()
			if err := logger.InitLogger(logger.LogConfig{
				Level:       cfg.Logging.Level,
				Development: cfg.Logging.Development,
			}); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
