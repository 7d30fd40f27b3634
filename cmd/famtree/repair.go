package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/domain/services"
)

func newRepairCmd() *cobra.Command {
	var heal bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Find directional connections whose reciprocal row is missing",
		Long: `Checks every directional connection for its reciprocal row. Without
--heal the missing rows are only reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				report, err := d.RepairHandler.Handle(cmd.Context(), heal)
				if err != nil {
					return fmt.Errorf("repairing: %w", err)
				}
				displayRepairReport(report, heal)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&heal, "heal", false, "Create the missing reciprocal rows")

	return cmd
}

func displayRepairReport(report *services.RepairReport, heal bool) {
	fmt.Fprintf(stdout, "Checked %d directional connection(s)\n", report.Checked)
	if len(report.Missing) == 0 {
		fmt.Fprintln(stdout, "All reciprocal rows present.")
		return
	}

	fmt.Fprintf(stdout, "Missing %d reciprocal row(s):\n", len(report.Missing))
	for i := range report.Missing {
		m := &report.Missing[i]
		status := ""
		switch {
		case m.Healed:
			status = " healed"
		case m.Error != "":
			status = " failed: " + m.Error
		}
		fmt.Fprintf(stdout, "  %s [%s] needs %s%s\n", m.Connection.ID, m.Connection.Type, m.ExpectedType, status)
	}

	if heal {
		fmt.Fprintf(stdout, "Healed %d, failed %d\n", report.Healed, report.Failed)
	} else {
		fmt.Fprintln(stdout, "Run with --heal to create them.")
	}
}
