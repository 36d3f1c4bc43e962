package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synerthink/dotdb/internal/dotlog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dotdb",
	Short: "dotdb - an embedded transactional MPT-backed storage engine",
	Long: `dotdb is an embedded key-value store combining a paged file
format, write-ahead log, MVCC, a Merkle Patricia Trie for content-addressed
state, and pluggable secondary indexes, as a single binary.`,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./dotdb-data", "Data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides flags where set)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	dotlog.Init(dotlog.Config{
		Level:      dotlog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
