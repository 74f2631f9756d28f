// Package cli provides the command-line interface for the Airweave sync
// platform. It wires the platform's components — metadata store, Redis rate
// limiters and progress channels, storage backend, destinations, and the
// search pipeline — from configuration, and exposes the operational commands:
// running sync jobs, replaying archives, managing destination slots, and
// querying collections.
//
// Configuration precedence follows 12-factor conventions:
//  1. Command-line flags
//  2. Environment variables (AIRWEAVE_ prefix)
//  3. YAML configuration file
//  4. Built-in defaults
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanchitsharma77/airweave-sub002/common"
)

// cfgFile holds the path to the configuration file specified via
// command-line flag. When empty, the configuration is discovered in the
// standard search locations.
var cfgFile string

// RootCmd defines the main CLI command for the Airweave platform.
var RootCmd = &cobra.Command{
	Use:   "airweave",
	Short: "data ingestion and retrieval platform core",
	Long: `Airweave Sync Platform

Pulls records from third-party sources, transforms them into a uniform
entity model, and writes them to vector and keyword search destinations
plus a raw archive and a relational metadata store. Collections over
these destinations are queried through a multi-stage search pipeline.

Commands cover the operational surface:
- Running and replaying sync jobs
- Managing destination slots (list, fork, switch)
- Searching collections
- Inspecting build and dependency information

Configuration can be provided via command-line flags, environment
variables, or a YAML configuration file with automatic precedence
handling.`,
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		common.Logger.WithField("error", err.Error()).Error("command failed")
		os.Exit(1)
	}
}

// init initializes the CLI command structure and configuration bindings.
func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.airweave.yaml)")
	RootCmd.PersistentFlags().String("redis-url", "", "Redis connection URL")
	RootCmd.PersistentFlags().String("db-dsn", "", "PostgreSQL metadata store DSN")
	RootCmd.PersistentFlags().String("storage-backend", "", "storage backend: local or s3")
	RootCmd.PersistentFlags().String("storage-root", "", "local storage root directory")
	RootCmd.PersistentFlags().String("search-defaults", "search_defaults.yml", "path to search defaults file")
	RootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	viper.BindPFlag("redis.url", RootCmd.PersistentFlags().Lookup("redis-url"))
	viper.BindPFlag("db.dsn", RootCmd.PersistentFlags().Lookup("db-dsn"))
	viper.BindPFlag("storage.backend", RootCmd.PersistentFlags().Lookup("storage-backend"))
	viper.BindPFlag("storage.root", RootCmd.PersistentFlags().Lookup("storage-root"))
	viper.BindPFlag("search.defaults", RootCmd.PersistentFlags().Lookup("search-defaults"))
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system using Viper.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".airweave")
	}

	viper.SetEnvPrefix("AIRWEAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}

	switch common.LogLevel(viper.GetString("log.level")) {
	case common.LogLevelDebug:
		common.Logger.SetLevel(logrus.DebugLevel)
	case common.LogLevelWarn:
		common.Logger.SetLevel(logrus.WarnLevel)
	case common.LogLevelError:
		common.Logger.SetLevel(logrus.ErrorLevel)
	case common.LogLevelInfo:
		common.Logger.SetLevel(logrus.InfoLevel)
	}
}
