package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/services"
)

func newImportCmd() *cobra.Command {
	var (
		format     string
		dryRun     bool
		onConflict string
		tree       string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import connections from a JSON or CSV file",
		Long: `Imports connections from a file. Persons and trees are referenced by
name and created when missing.

JSON: an array of {"from", "type", "to", "tree", "notes", "attributes"}.
CSV: a header with from,type,to and optional tree,notes,attributes columns;
attributes are separated by ';'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy := services.ConflictStrategy(onConflict)
			if strategy != services.ConflictSkip && strategy != services.ConflictFail {
				return fmt.Errorf("invalid --on-conflict %q (valid: skip, fail)", onConflict)
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.ImportHandler.Handle(cmd.Context(), args[0], handlers.ImportOptions{
					Format:     format,
					DryRun:     dryRun,
					OnConflict: strategy,
					Tree:       tree,
				})
				if err != nil {
					return fmt.Errorf("importing: %w", err)
				}
				displayImportResult(result, dryRun)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&onConflict, "on-conflict", string(services.ConflictSkip), "Existing connections: skip or fail")
	cmd.Flags().StringVarP(&tree, "tree", "t", "", "Tree for rows that name none")

	return cmd
}

func displayImportResult(result *services.ImportResult, dryRun bool) {
	if dryRun {
		fmt.Fprintf(stdout, "Dry run: %d connection(s) valid\n", result.Imported)
	} else {
		fmt.Fprintf(stdout, "Imported %d connection(s), skipped %d, created %d person(s)\n",
			result.Imported, result.Skipped, result.PersonsCreated)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(stdout, "\n%d error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(stdout, "  %s\n", e.Error())
		}
	}
}
