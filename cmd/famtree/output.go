package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/ersonp/famtree/internal/domain/entities"
)

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func checkFormat(format string, valid []string) error {
	if !slices.Contains(valid, format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, valid)
	}
	return nil
}

func formatAttributes(m entities.Metadata) string {
	if len(m.Attributes) == 0 {
		return ""
	}
	parts := make([]string, len(m.Attributes))
	for i, a := range m.Attributes {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

// stdout is replaced in tests.
var stdout io.Writer = os.Stdout
