package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

type treeFlags struct {
	tree          string
	format        string
	singleParents bool
	minShared     int
	groupSiblings bool
	noUnions      bool
	countFrom     string
}

func newTreeCmd() *cobra.Command {
	var flags treeFlags

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the family graph by generation",
		Long: `Derives co-parent unions and assigns generations to every person of a
family tree (--tree) or of everyone. Defaults come from the graph section
of the config; flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, viewFormats); err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				req, err := graphRequest(d.Config.Graph, flags, cmd.Flags().Changed)
				if err != nil {
					return err
				}
				result, err := d.GraphHandler.Handle(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("building graph: %w", err)
				}
				if flags.format == "json" {
					return printJSON(stdout, result)
				}
				return displayGraph(stdout, result)
			})
		},
	}

	cmd.Flags().StringVarP(&flags.tree, "tree", "t", "", "Family tree to show (default: everyone)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&flags.singleParents, "single-parents", false, "Create unions for single parents")
	cmd.Flags().IntVar(&flags.minShared, "min-shared", 1, "Children two parents must share to form a union")
	cmd.Flags().BoolVar(&flags.groupSiblings, "group-siblings", false, "Report sibling groups")
	cmd.Flags().BoolVar(&flags.noUnions, "no-unions", false, "Skip union derivation")
	cmd.Flags().StringVar(&flags.countFrom, "count-from", "", "Generation 0 end (roots, leaves)")

	return cmd
}

// graphRequest merges the configured graph defaults with the flags the user set.
func graphRequest(cfg config.GraphConfig, flags treeFlags, changed func(name string) bool) (handlers.GraphRequest, error) {
	unions := services.UnionOptions{
		EnableUnions:         !cfg.DisableUnions,
		MinSharedChildren:    cfg.MinSharedChildren,
		IncludeSingleParents: cfg.IncludeSingleParents,
		GroupSiblings:        cfg.GroupSiblings,
	}
	if changed("no-unions") {
		unions.EnableUnions = !flags.noUnions
	}
	if changed("min-shared") {
		unions.MinSharedChildren = flags.minShared
	}
	if changed("single-parents") {
		unions.IncludeSingleParents = flags.singleParents
	}
	if changed("group-siblings") {
		unions.GroupSiblings = flags.groupSiblings
	}

	countFrom := cfg.CountFrom
	if changed("count-from") {
		countFrom = flags.countFrom
	}
	counting, err := services.ParseGenerationCounting(countFrom)
	if err != nil {
		return handlers.GraphRequest{}, err
	}

	layout := services.DefaultLayoutOptions()
	layout.Counting = counting
	if cfg.NodeWidth > 0 {
		layout.NodeWidth = cfg.NodeWidth
	}
	if cfg.LevelHeight > 0 {
		layout.LevelHeight = cfg.LevelHeight
	}

	return handlers.GraphRequest{Tree: flags.tree, Unions: unions, Layout: layout}, nil
}

func displayGraph(w io.Writer, result *handlers.GraphResult) error {
	names := make(map[string]string, len(result.Persons))
	for i := range result.Persons {
		names[result.Persons[i].ID] = result.Persons[i].Name
	}

	if result.Tree != nil {
		fmt.Fprintf(w, "Family tree: %s\n\n", result.Tree.Name)
	}
	if len(result.Persons) == 0 {
		fmt.Fprintln(w, "No persons found.")
		return nil
	}

	nodes := slices.Clone(result.Layout.Nodes)
	slices.SortStableFunc(nodes, func(a, b services.NodePosition) int {
		return cmp.Or(cmp.Compare(a.Generation, b.Generation), cmp.Compare(a.Slot, b.Slot))
	})
	byGen := make(map[int][]string)
	for _, node := range nodes {
		if node.Union {
			continue
		}
		g := int(node.Generation)
		byGen[g] = append(byGen[g], nameOr(names, node.ID))
	}
	gens := make([]int, 0, len(byGen))
	for g := range byGen {
		gens = append(gens, g)
	}
	slices.Sort(gens)

	fmt.Fprintf(w, "Generations (counted from %s):\n", result.Layout.Counting)
	for _, g := range gens {
		fmt.Fprintf(w, "  %d: %s\n", g, strings.Join(byGen[g], ", "))
	}

	if len(result.Derivation.FamilyUnits) > 0 {
		units := slices.Clone(result.Derivation.FamilyUnits)
		slices.SortStableFunc(units, func(a, b entities.FamilyUnit) int {
			return cmp.Compare(a.Generation, b.Generation)
		})
		fmt.Fprintln(w, "\nUnions:")
		for _, u := range units {
			fmt.Fprintf(w, "  [%s] %s => %s (generation %.1f)\n",
				u.Union.UnionType, joinNames(names, u.Union.ParentIDs), joinNames(names, u.ChildIDs), u.Generation)
		}
	}

	if len(result.Derivation.SiblingGroups) > 0 {
		fmt.Fprintln(w, "\nSibling groups:")
		for _, g := range result.Derivation.SiblingGroups {
			fmt.Fprintf(w, "  %s\n", joinNames(names, g.ChildIDs))
		}
	}

	if len(result.Layout.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Layout.Warnings {
			fmt.Fprintf(w, "  %s: %s (%s)\n", warn.Kind, warn.Message, joinNames(names, warn.PersonIDs))
		}
	}
	return nil
}

func joinNames(names map[string]string, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = nameOr(names, id)
	}
	return strings.Join(out, " + ")
}
