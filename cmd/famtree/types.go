package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/registry"
)

func newTypesCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List relationship types and attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := handlers.NewTypesHandler(registry.Default()).HandleList(filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tLABEL\tDIRECTION\tRECIPROCAL")
			for _, tc := range result.Types {
				direction := "directional"
				if tc.Bidirectional {
					direction = "bidirectional"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tc.Type, tc.Label, direction, tc.Reciprocal)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			attrs := make([]string, len(result.Attributes))
			for i, a := range result.Attributes {
				attrs[i] = string(a)
			}
			fmt.Fprintf(stdout, "\nAttributes: %s\n", strings.Join(attrs, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", handlers.TypesAll, "all, directional or bidirectional")

	return cmd
}
