package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	vcfg    = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril runs workflow functions invoked by an orchestration engine",
	Long: `Tendril serves workflow functions over HTTP, runs a development state store
and drives functions from the engine side for testing.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	_ = vcfg.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = vcfg.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// loadConfig merges defaults, the config file, the environment and flags.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		vcfg.SetConfigFile(cfgFile)
		if err := vcfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return config.Decode(vcfg)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewWithFormat(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}
