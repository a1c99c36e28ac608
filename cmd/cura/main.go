// Package main provides the entry point for the Cura server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cura",
	Short: "Cura resume assistant server",
	Long:  "Cura runs asynchronous resume analysis and build tasks against job postings and serves an inline suggestion review workflow over a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
