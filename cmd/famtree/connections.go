package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
)

func newConnectionsCmd() *cobra.Command {
	var (
		req    handlers.ListRequest
		format string
	)

	cmd := &cobra.Command{
		Use:   "connections [person]",
		Short: "List connections",
		Long: `Lists the connections of one person, of a family tree (--tree) or of
everyone (--all). Reciprocal pairs are shown once.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, viewFormats); err != nil {
				return err
			}
			if len(args) == 1 {
				req.Person = args[0]
			}

			return withConnectionHandler(cmd.Context(), func(h *handlers.ConnectionHandler) error {
				result, err := h.HandleList(cmd.Context(), req)
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(stdout, result)
				}
				return displayConnections(result)
			})
		},
	}

	cmd.Flags().StringVarP(&req.Tree, "tree", "t", "", "List connections of a family tree")
	cmd.Flags().BoolVar(&req.All, "all", false, "List every connection")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func displayConnections(result *handlers.ConnectionListResult) error {
	if len(result.Connections) == 0 {
		fmt.Fprintln(stdout, "No connections found.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONNECTION\tNOTES")
	for i := range result.Connections {
		c := &result.Connections[i]
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, describeConnection(c, result.Names), truncate(c.Notes, 40))
	}
	return w.Flush()
}
