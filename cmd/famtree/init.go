package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	var opts handlers.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new famtree project",
		Long:  "Creates a .famtree directory with default configuration and creates the store schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Store driver (sqlite, postgres)")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Account the CLI acts for")

	return cmd
}

func runInit(cmd *cobra.Command, opts handlers.InitOptions) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	result, err := handlers.NewInitHandler(openStore).Handle(cmd.Context(), cwd, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Created %s\n", result.ConfigPath)
	fmt.Fprintf(stdout, "Store: %s\n", result.Driver)
	fmt.Fprintln(stdout, "famtree initialized successfully!")
	return nil
}
