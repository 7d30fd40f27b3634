package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
)

func newConnectCmd() *cobra.Command {
	var req handlers.ConnectRequest

	cmd := &cobra.Command{
		Use:   "connect <from> <type> <to>",
		Short: "Connect two persons",
		Long: `Creates a connection between two persons, identified by ID or name.
Directional types (parent, child, donor, biological_parent, social_parent)
also get their reciprocal row, so "Ann parent Ben" stores Ben child Ann too.
Use 'famtree types' to list every type and attribute.

Examples:
  famtree connect Maria parent Leo --attr biological
  famtree connect "Donor X" donor Leo --attr known_donor --tree Garcia
  famtree connect David spouse Maria`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.From, req.Type, req.To = args[0], args[1], args[2]
			return withConnectionHandler(cmd.Context(), func(h *handlers.ConnectionHandler) error {
				result, err := h.HandleConnect(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("creating connection: %w", err)
				}

				fmt.Fprintf(stdout, "Created connection: %s\n", result.Main.ID)
				fmt.Fprintf(stdout, "  %s -[%s]-> %s\n", req.From, result.Main.Type, req.To)
				if result.Reciprocal != nil {
					fmt.Fprintf(stdout, "  reciprocal %s: %s -[%s]-> %s\n", result.Reciprocal.ID, req.To, result.Reciprocal.Type, req.From)
				}
				if result.ReciprocalErr != nil {
					fmt.Fprintf(stdout, "  warning: reciprocal row not written (run 'famtree repair --heal'): %v\n", result.ReciprocalErr)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Tree, "tree", "t", "", "Family tree the connection belongs to")
	cmd.Flags().StringVar(&req.OrganizationID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&req.GroupID, "group", "", "Group ID")
	cmd.Flags().StringVarP(&req.Notes, "notes", "n", "", "Notes")
	cmd.Flags().StringSliceVarP(&req.Attributes, "attr", "a", nil, "Attributes (repeatable or comma separated)")

	cmd.AddCommand(
		newConnectUpdateCmd(),
		newConnectDeleteCmd(),
	)

	return cmd
}

func newConnectUpdateCmd() *cobra.Command {
	var (
		relType string
		notes   string
		attrs   []string
	)

	cmd := &cobra.Command{
		Use:   "update <connection-id>",
		Short: "Update a connection and its reciprocal row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := handlers.UpdateRequest{Type: relType}
			if cmd.Flags().Changed("notes") {
				req.Notes = &notes
			}
			if cmd.Flags().Changed("attr") {
				req.Attributes = &attrs
			}

			return withConnectionHandler(cmd.Context(), func(h *handlers.ConnectionHandler) error {
				result, err := h.HandleUpdate(cmd.Context(), args[0], req)
				if err != nil {
					return fmt.Errorf("updating connection: %w", err)
				}

				fmt.Fprintf(stdout, "Updated connection: %s [%s]\n", result.Main.ID, result.Main.Type)
				if result.Mirror != nil {
					fmt.Fprintf(stdout, "  reciprocal %s [%s]\n", result.Mirror.ID, result.Mirror.Type)
				}
				if result.ReciprocalErr != nil {
					fmt.Fprintf(stdout, "  warning: reciprocal row not updated: %v\n", result.ReciprocalErr)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&relType, "type", "t", "", "New relationship type")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "New notes")
	cmd.Flags().StringSliceVarP(&attrs, "attr", "a", nil, "New attributes (replaces existing)")

	return cmd
}

func newConnectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <connection-id>",
		Short: "Delete a connection and its reciprocal row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnectionHandler(cmd.Context(), func(h *handlers.ConnectionHandler) error {
				result, err := h.HandleDelete(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("deleting connection: %w", err)
				}

				fmt.Fprintf(stdout, "Deleted connection: %s\n", result.Deleted.ID)
				if result.MirrorsDeleted > 0 {
					fmt.Fprintf(stdout, "  and %d reciprocal row(s)\n", result.MirrorsDeleted)
				}
				return nil
			})
		},
	}
}

func describeConnection(c *entities.Connection, names map[string]string) string {
	s := fmt.Sprintf("%s -[%s]-> %s", nameOr(names, c.FromPersonID), c.Type, nameOr(names, c.ToPersonID))
	if attrs := formatAttributes(c.Metadata); attrs != "" {
		s += " {" + attrs + "}"
	}
	return s
}
