package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
)

func newPersonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "person",
		Aliases: []string{"persons", "people"},
		Short:   "Manage persons",
	}

	cmd.AddCommand(
		newPersonAddCmd(),
		newPersonListCmd(),
		newPersonShowCmd(),
		newPersonDeleteCmd(),
		newPersonSelfCmd(),
	)

	return cmd
}

type personAddFlags struct {
	gender string
	born   string
	status string
	self   bool
}

func newPersonAddCmd() *cobra.Command {
	var flags personAddFlags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(args[0])
			if err != nil {
				return err
			}
			return withPersonHandler(cmd.Context(), func(h *handlers.PersonHandler) error {
				p, err := h.HandleAdd(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("adding person: %w", err)
				}
				fmt.Fprintf(stdout, "Added %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.gender, "gender", "", "Gender")
	cmd.Flags().StringVar(&flags.born, "born", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.status, "status", "", "living or deceased")
	cmd.Flags().BoolVar(&flags.self, "self", false, "Mark as yourself")

	return cmd
}

func (f personAddFlags) input(name string) (services.PersonInput, error) {
	in := services.PersonInput{
		Name:   name,
		Gender: f.gender,
		Status: entities.PersonStatus(f.status),
		IsSelf: f.self,
	}
	if f.born != "" {
		dob, err := time.Parse(time.DateOnly, f.born)
		if err != nil {
			return in, fmt.Errorf("invalid --born %q (want YYYY-MM-DD)", f.born)
		}
		in.DateOfBirth = &dob
	}
	return in, nil
}

func newPersonListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonHandler(cmd.Context(), func(h *handlers.PersonHandler) error {
				result, err := h.HandleList(cmd.Context(), limit, offset)
				if err != nil {
					return fmt.Errorf("listing persons: %w", err)
				}
				if len(result.Persons) == 0 {
					fmt.Fprintln(stdout, "No persons found.")
					return nil
				}

				fmt.Fprintf(stdout, "Showing %d of %d persons:\n\n", len(result.Persons), result.Total)
				w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tID\tBORN\tSTATUS\tSELF")
				for i := range result.Persons {
					p := result.Persons[i]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.ID, formatDate(p.DateOfBirth), p.Status, yesIf(p.IsSelf))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultListLimit, "Maximum number of persons to display")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of persons to skip")

	return cmd
}

func newPersonShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <person>",
		Short: "Show a person and their connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonHandler(cmd.Context(), func(h *handlers.PersonHandler) error {
				detail, err := h.HandleShow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				displayPersonDetail(detail)
				return nil
			})
		},
	}
}

func displayPersonDetail(d *handlers.PersonDetail) {
	p := d.Person
	fmt.Fprintf(stdout, "%s (%s)\n", p.Name, p.ID)
	if p.Gender != "" {
		fmt.Fprintf(stdout, "  Gender: %s\n", p.Gender)
	}
	if p.DateOfBirth != nil {
		fmt.Fprintf(stdout, "  Born: %s\n", formatDate(p.DateOfBirth))
	}
	fmt.Fprintf(stdout, "  Status: %s\n", p.Status)
	if p.IsSelf {
		fmt.Fprintln(stdout, "  (you)")
	}

	if len(d.Connections) == 0 {
		fmt.Fprintln(stdout, "\nNo connections.")
		return
	}

	fmt.Fprintf(stdout, "\nConnections (%d):\n", len(d.Connections))
	for i := range d.Connections {
		pc := &d.Connections[i]
		other := pc.OtherPersonName
		if other == "" {
			other = pc.OtherPersonID
		}
		arrow := "->"
		if pc.Direction == entities.DirectionIncoming {
			arrow = "<-"
		}
		line := fmt.Sprintf("  %s [%s] %s", arrow, pc.Connection.Type, other)
		if attrs := formatAttributes(pc.Connection.Metadata); attrs != "" {
			line += " {" + attrs + "}"
		}
		fmt.Fprintf(stdout, "%s  (%s)\n", line, pc.Connection.ID)
	}
}

func newPersonDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <person>",
		Short: "Delete a person and all of their connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonHandler(cmd.Context(), func(h *handlers.PersonHandler) error {
				p, removed, err := h.HandleDelete(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("deleting person: %w", err)
				}
				fmt.Fprintf(stdout, "Deleted %s and %d connections\n", p.Name, removed)
				return nil
			})
		},
	}
}

func newPersonSelfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self [person]",
		Short: "Show or set the person that represents you",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonHandler(cmd.Context(), func(h *handlers.PersonHandler) error {
				if len(args) == 1 {
					p, err := h.HandleSetSelf(cmd.Context(), args[0])
					if err != nil {
						return fmt.Errorf("setting self: %w", err)
					}
					fmt.Fprintf(stdout, "You are now %s\n", p.Name)
					return nil
				}

				p, err := h.HandleSelf(cmd.Context())
				if err != nil {
					return err
				}
				if p == nil {
					fmt.Fprintln(stdout, "No self person set. Use 'famtree person self <person>'.")
					return nil
				}
				fmt.Fprintf(stdout, "%s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func yesIf(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
