package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
)

func newTreesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trees",
		Short: "Manage family trees",
		RunE:  runTreesList,
	}

	cmd.AddCommand(
		newTreesListCmd(),
		newTreesCreateCmd(),
		newTreesShowCmd(),
		newTreesAddCmd(),
		newTreesRemoveCmd(),
	)

	return cmd
}

func newTreesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all family trees",
		RunE:  runTreesList,
	}
}

func runTreesList(cmd *cobra.Command, args []string) error {
	return withFamilyTreeHandler(cmd.Context(), func(h *handlers.FamilyTreeHandler) error {
		summaries, err := h.HandleList(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing trees: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Fprintln(stdout, "No family trees.")
			fmt.Fprintln(stdout, "Use 'famtree trees create NAME' to create one.")
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMEMBERS\tDESCRIPTION")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%s\n", s.Tree.Name, s.Members, truncate(s.Tree.Description, 50))
		}
		return w.Flush()
	})
}

func newTreesCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a family tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFamilyTreeHandler(cmd.Context(), func(h *handlers.FamilyTreeHandler) error {
				tree, err := h.HandleCreate(cmd.Context(), args[0], description)
				if err != nil {
					return fmt.Errorf("creating tree: %w", err)
				}
				fmt.Fprintf(stdout, "Created family tree %q (%s)\n", tree.Name, tree.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Tree description")

	return cmd
}

func newTreesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TREE",
		Short: "List the members of a family tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFamilyTreeHandler(cmd.Context(), func(h *handlers.FamilyTreeHandler) error {
				result, err := h.HandleMembers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%s (%d members)\n", result.Tree.Name, len(result.Members))
				for _, p := range result.Members {
					fmt.Fprintf(stdout, "  %s (%s)\n", p.Name, p.ID)
				}
				return nil
			})
		},
	}
}

func newTreesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add TREE PERSON...",
		Short: "Add persons to a family tree",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFamilyTreeHandler(cmd.Context(), func(h *handlers.FamilyTreeHandler) error {
				tree, err := h.HandleAddMember(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return fmt.Errorf("adding members: %w", err)
				}
				fmt.Fprintf(stdout, "Added %d person(s) to %s\n", len(args)-1, tree.Name)
				return nil
			})
		},
	}
}

func newTreesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove TREE PERSON...",
		Short: "Remove persons from a family tree",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFamilyTreeHandler(cmd.Context(), func(h *handlers.FamilyTreeHandler) error {
				tree, err := h.HandleRemoveMember(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return fmt.Errorf("removing members: %w", err)
				}
				fmt.Fprintf(stdout, "Removed %d person(s) from %s\n", len(args)-1, tree.Name)
				return nil
			})
		},
	}
}
