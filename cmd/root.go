// Package cmd provides the command-line interface for pagekit.
//
// Configuration System:
//
//	Settings come from several sources with clear precedence:
//	1. Command-line flags (--config, --log-level, ...) - highest priority
//	2. PAGEKIT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (PAGEKIT_TOAST_DURATION, ...)
//	4. Configuration file (.pagekit.yml) - lowest priority
//
// Environment variables follow the PAGEKIT_<SECTION>_<OPTION> pattern, for
// example PAGEKIT_LOG_LEVEL=debug or PAGEKIT_STORAGE_PATH=state.yml.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagekit",
	Short: "Boot and inspect interactive page components",
	Long: `pagekit boots the interactive widgets of a static page (toasts, collapses,
tabs, search filters, notebooks) against a parsed copy of the page and
reports what came up.

Quick Start:
  pagekit init                  Write a default .pagekit.yml
  pagekit check                 Validate the configuration
  pagekit boot index.html       Boot the configured components
  pagekit watch index.html      Re-boot stale components when the page changes
  pagekit kinds                 List the widget kinds that can be loaded`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pagekit.yml, can also use PAGEKIT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig wires viper to the config file, the environment and the
// persistent flags.
func initConfig() {
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PAGEKIT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pagekit")
	}

	viper.SetEnvPrefix("PAGEKIT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Unmarshal only sees keys viper knows about, so scalar settings are
	// bound explicitly to make them reachable from the environment
	for _, key := range []string{"toast.duration", "storage.path", "log.level", "log.format", "watch.debounce"} {
		_ = viper.BindEnv(key)
	}

	// A missing file leaves the defaults in place; a broken one is reported
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}
