package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title Clinic Queue API
// @version 1.0.0
// @description Walk-in patient registration, department tokens and the consultation queue.
// @BasePath /api/v1
// @schemes http

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-queue",
		Short:        "Clinic walk-in queue and token service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}
