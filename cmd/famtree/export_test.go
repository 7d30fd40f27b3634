package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
	"github.com/ersonp/famtree/internal/infrastructure/parsers"
)

func sampleGraph() *handlers.GraphResult {
	tree := &entities.FamilyTree{ID: "t1", Name: "Garcia"}
	persons := []entities.Person{
		{ID: "p1", Name: "Maria", Status: entities.StatusLiving},
		{ID: "p2", Name: "Leo", Status: entities.StatusLiving},
	}
	conns := []entities.Connection{
		{
			ID: "c1", FromPersonID: "p1", ToPersonID: "p2", Type: entities.RelationParent,
			FamilyTreeID: "t1", Notes: "birth mother",
			Metadata: entities.NewMetadata(entities.AttrBiological, entities.AttrIVF),
		},
		{
			ID: "c2", FromPersonID: "p2", ToPersonID: "p1", Type: entities.RelationChild,
			FamilyTreeID: "t1", Metadata: entities.NewMetadata(entities.AttrBiological, entities.AttrIVF),
		},
	}
	return &handlers.GraphResult{
		Tree:    tree,
		Persons: persons,
		Derivation: &services.Derivation{
			OriginalConnections: conns,
		},
		Layout: &services.Layout{
			Counting:    services.CountFromRoots,
			Generations: map[string]int{"p1": 0, "p2": 1},
		},
	}
}

func TestBuildExport(t *testing.T) {
	data := buildExport(sampleGraph())

	assert.Equal(t, "Garcia", data.Tree)
	require.Len(t, data.Persons, 2)
	assert.Equal(t, 1, data.Persons[1].Generation)
	require.Len(t, data.Connections, 2)
	assert.Equal(t, exportConnection{
		ID: "c1", From: "Maria", Type: "parent", To: "Leo", Tree: "Garcia",
		Notes: "birth mother", Attributes: []string{"biological", "ivf"},
	}, data.Connections[0])
	assert.NotNil(t, data.Unions)
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatJSON(&buf, buildExport(sampleGraph())))

	var parsed struct {
		Tree        string           `json:"tree"`
		Persons     []map[string]any `json:"persons"`
		Connections []map[string]any `json:"connections"`
		Unions      []any            `json:"unions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))

	assert.Equal(t, "Garcia", parsed.Tree)
	assert.Len(t, parsed.Persons, 2)
	assert.Equal(t, "Maria", parsed.Connections[0]["from"])
	assert.Equal(t, "parent", parsed.Connections[0]["type"])
	assert.NotNil(t, parsed.Unions)
}

func TestFormatCSV_RoundTripsThroughImportParser(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatCSV(&buf, buildExport(sampleGraph())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "from,type,to,tree,notes,attributes", lines[0])
	assert.Equal(t, "Maria,parent,Leo,Garcia,birth mother,biological;ivf", lines[1])

	rows, err := (&parsers.CSVParser{}).Parse(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Maria", rows[0].From)
	assert.Equal(t, []string{"biological", "ivf"}, rows[0].Attributes)
	assert.Equal(t, "Garcia", rows[1].Tree)
}

func TestFormatMarkdown(t *testing.T) {
	data := buildExport(sampleGraph())
	data.Persons[0].Name = "Maria | Garcia"

	var buf bytes.Buffer
	require.NoError(t, formatMarkdown(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "# Garcia")
	assert.Contains(t, out, "Total: 2 persons, 2 connections")
	assert.Contains(t, out, "| Maria \\| Garcia |  | living | 0 |")
	assert.Contains(t, out, "| Maria | parent | Leo | biological, ivf | birth mother |")
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "plain", want: "plain"},
		{input: "a|b", want: "a\\|b"},
		{input: "line1\nline2", want: "line1 line2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeMarkdown(tt.input))
		})
	}
}

func TestExporter_WritesFile(t *testing.T) {
	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	path := filepath.Join(t.TempDir(), "family.csv")
	e := &exporter{format: "csv", output: path}

	require.NoError(t, e.export(buildExport(sampleGraph())))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "from,type,to"))
	assert.Contains(t, out.String(), "Exported 2 persons and 2 connections")
}

func TestExporter_UnknownFormat(t *testing.T) {
	e := &exporter{format: "xml"}

	err := e.formatData(&bytes.Buffer{}, exportData{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
