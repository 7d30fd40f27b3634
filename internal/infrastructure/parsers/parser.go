// Package parsers provides parsers for importing connections from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawConnection is a connection parsed from an external source before
// validation. Persons and trees are referenced by name.
type RawConnection struct {
	From       string   `json:"from"`
	Type       string   `json:"type"`
	To         string   `json:"to"`
	Tree       string   `json:"tree,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	LineNum    int      `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing connections from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawConnection, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
