// Package main provides the entry point for the JobTailor HTTP API server
// and its one-shot CLI commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobtailor",
	Short: "Job scraping and AI-powered CV tailoring service",
	Long:  "JobTailor scrapes job listings, discovers openings across the open web and generates tailored CVs and cover letters as PDFs, rotating across a pool of AI provider API keys.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
