// Package main provides the entry point for the famtree CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "famtree",
		Short:         "Family trees with donor-conception aware relationships",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newInitCmd(),
		newPersonCmd(),
		newConnectCmd(),
		newConnectionsCmd(),
		newTreeCmd(),
		newTreesCmd(),
		newImportCmd(),
		newExportCmd(),
		newRepairCmd(),
		newTypesCmd(),
	)

	return rootCmd
}
