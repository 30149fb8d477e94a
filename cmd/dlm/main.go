// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-dlm/pkg/version"
)

var (
	cfgFile     string
	viperConfig *viper.Viper
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dlm",
	Short: "A CLI tool for managing the data lifecycle archive",
	Long: `dlm is a CLI tool for the data lifecycle manager. It catalogs data
items, places copies across storage backends, and tracks items through
their lifecycle from ingestion to expiration.

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (DLM_*)
  - Configuration file (~/.dlm.yaml or ./dlm.yaml)
  - Default values (lowest priority)`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = initConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := viperConfig.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dlm %s (%s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}

func initConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dlm")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("DLM")
	v.AutomaticEnv()

	v.SetDefault("url", "http://localhost:8000")
	v.SetDefault("token", "")

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./dlm.yaml or ~/.dlm.yaml)")
	rootCmd.PersistentFlags().String("url", "http://localhost:8000", "DLM server base URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for authenticated servers")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(migrationCmd)
	rootCmd.AddCommand(storageCmd)
}
