package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gws-scanner",
	Short: "A filesystem profiler for group workspace volumes",
	Long: `gws-scanner walks GWS volumes and indexes per-directory size,
count, and heat metadata into Elasticsearch for later querying.`,
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}
