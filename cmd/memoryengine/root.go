package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/app"
)

// Version is set during build.
var Version = "0.1.0"

var quiet bool

var theApp *app.App

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "memoryengine",
	Short: "Biomimetic agent memory engine",
	Long: `memoryengine stores, links, recalls and consolidates an agent's
memories across named banks.

Examples:
  memoryengine bank create work --mission "track project decisions"
  memoryengine remember work "the staging DB moved to us-west-2"
  memoryengine recall work "where is staging"
  memoryengine consolidate work`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command, printing any error to stderr.
func Execute() {
	defer func() {
		if theApp != nil {
			theApp.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-essential output")
}

// mustApp lazily loads config and wires the app on first use, exiting the
// process on failure since every subcommand needs it.
func mustApp() *app.App {
	if theApp != nil {
		return theApp
	}
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	theApp = a
	return a
}
