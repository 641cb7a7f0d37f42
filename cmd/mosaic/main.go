// Command mosaic runs the tutoring service: an HTTP API routing student
// messages through the orchestrator and its specialist agents, backed by
// pluggable graph, memory and retrieval stores.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	curriculumPath string
)

func main() {
	// A missing .env is fine; the environment may be set elsewhere.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "mosaic",
		Short: "Multi-agent tutoring service",
		Long: "mosaic serves a tutoring pipeline: student messages are routed to solver,\n" +
			"assessment and feedback agents, with per-student mastery tracked on a\n" +
			"knowledge graph.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a yaml config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&curriculumPath, "curriculum", "", "path to a curriculum JSON bundle")
	root.AddCommand(serve)

	ingest := &cobra.Command{
		Use:   "ingest <curriculum.json>",
		Short: "Load a curriculum bundle into the configured graph backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	root.AddCommand(ingest)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
