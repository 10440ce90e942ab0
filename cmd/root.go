// Package cmd wires the spider services together behind a cobra CLI. Each
// pipeline stage runs as its own subcommand so the stages can be scaled and
// deployed independently.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/debias/spider/internal/config"
	"github.com/debias/spider/internal/logger"
)

var (
	cfgFile   string
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "debias-spider",
	Short: "Distributed crawl pipeline for politically aligned news sources",
	Long: `debias-spider crawls configured news targets through a durable work
queue. The fetch, render and process stages each run as a separate
subcommand consuming from their own queue subject.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		// Missing .env is fine; real deployments use the environment.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
}

// loadConfig reads the configuration and builds the root logger.
func loadConfig() (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.Debug = true
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}
