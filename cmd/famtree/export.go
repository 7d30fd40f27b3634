package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/infrastructure/parsers"
)

type exportFlags struct {
	format string
	output string
	tree   string
}

// exportData is the flattened graph written by every export format.
type exportData struct {
	Tree        string               `json:"tree,omitempty"`
	Persons     []exportPerson       `json:"persons"`
	Connections []exportConnection   `json:"connections"`
	Unions      []entities.UnionNode `json:"unions"`
}

type exportPerson struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Status      string `json:"status"`
	Generation  int    `json:"generation"`
}

type exportConnection struct {
	ID         string   `json:"id"`
	From       string   `json:"from"`
	Type       string   `json:"type"`
	To         string   `json:"to"`
	Tree       string   `json:"tree,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

type exporter struct {
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export persons and connections to file",
		Long: `Exports the family graph to JSON, CSV, or markdown format.
CSV output uses the import columns, so it can be imported again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&flags.tree, "tree", "t", "", "Export one family tree")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if err := checkFormat(flags.format, validFormats); err != nil {
		return err
	}

	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		req, err := graphRequest(d.Config.Graph, treeFlags{tree: flags.tree}, func(string) bool { return false })
		if err != nil {
			return err
		}
		result, err := d.GraphHandler.Handle(ctx, req)
		if err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
		if len(result.Persons) == 0 {
			return fmt.Errorf("no persons found to export")
		}

		e := &exporter{format: flags.format, output: flags.output}
		return e.export(buildExport(result))
	})
}

func buildExport(result *handlers.GraphResult) exportData {
	names := make(map[string]string, len(result.Persons))
	data := exportData{
		Persons:     make([]exportPerson, 0, len(result.Persons)),
		Connections: []exportConnection{},
		Unions:      []entities.UnionNode{},
	}
	if result.Tree != nil {
		data.Tree = result.Tree.Name
	}

	for i := range result.Persons {
		p := &result.Persons[i]
		names[p.ID] = p.Name
		data.Persons = append(data.Persons, exportPerson{
			ID:          p.ID,
			Name:        p.Name,
			Gender:      p.Gender,
			DateOfBirth: formatDate(p.DateOfBirth),
			Status:      string(p.Status),
			Generation:  result.Layout.Generations[p.ID],
		})
	}

	for i := range result.Derivation.OriginalConnections {
		c := &result.Derivation.OriginalConnections[i]
		ec := exportConnection{
			ID:    c.ID,
			From:  nameOr(names, c.FromPersonID),
			Type:  string(c.Type),
			To:    nameOr(names, c.ToPersonID),
			Notes: c.Notes,
		}
		if result.Tree != nil && c.FamilyTreeID == result.Tree.ID {
			ec.Tree = result.Tree.Name
		}
		for _, a := range c.Metadata.Attributes {
			ec.Attributes = append(ec.Attributes, string(a))
		}
		data.Connections = append(data.Connections, ec)
	}

	if result.Derivation.Unions != nil {
		data.Unions = result.Derivation.Unions
	}
	return data
}

func (e *exporter) export(data exportData) (err error) {
	var w io.Writer
	var f *os.File

	if e.output != "" {
		f, err = os.OpenFile(e.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	} else {
		w = stdout
	}

	if err := e.formatData(w, data); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if e.output != "" {
		fmt.Fprintf(stdout, "Exported %d persons and %d connections to %s\n", len(data.Persons), len(data.Connections), e.output)
	}

	return nil
}

func (e *exporter) formatData(w io.Writer, data exportData) error {
	switch e.format {
	case "json":
		return formatJSON(w, data)
	case "csv":
		return formatCSV(w, data)
	case "markdown":
		return formatMarkdown(w, data)
	default:
		return fmt.Errorf("unknown format: %s", e.format)
	}
}

func formatJSON(w io.Writer, data exportData) error {
	return printJSON(w, data)
}

func formatCSV(w io.Writer, data exportData) error {
	writer := csv.NewWriter(w)

	header := []string{"from", "type", "to", "tree", "notes", "attributes"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range data.Connections {
		row := []string{
			c.From,
			c.Type,
			c.To,
			c.Tree,
			c.Notes,
			strings.Join(c.Attributes, parsers.AttributeSeparator),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatMarkdown(w io.Writer, data exportData) error {
	title := "Family"
	if data.Tree != "" {
		title = data.Tree
	}
	if _, err := fmt.Fprintf(w, "# %s\n\nTotal: %d persons, %d connections\n\n", escapeMarkdown(title), len(data.Persons), len(data.Connections)); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "## Persons\n\n| Name | Born | Status | Generation |\n|------|------|--------|------------|\n"); err != nil {
		return err
	}
	for _, p := range data.Persons {
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %d |\n",
			escapeMarkdown(p.Name), p.DateOfBirth, p.Status, p.Generation); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprint(w, "\n## Connections\n\n| From | Type | To | Attributes | Notes |\n|------|------|----|------------|-------|\n"); err != nil {
		return err
	}
	for _, c := range data.Connections {
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			escapeMarkdown(c.From),
			c.Type,
			escapeMarkdown(c.To),
			strings.Join(c.Attributes, ", "),
			escapeMarkdown(truncate(c.Notes, 60)),
		); err != nil {
			return err
		}
	}

	return nil
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
