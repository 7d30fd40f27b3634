package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI in the current directory and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "famtree %v", args)
	return out
}

// newProject initializes a SQLite-backed project in a temp directory.
func newProject(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	t.Setenv("FAMTREE_STORE_DRIVER", "sqlite")
	t.Setenv("FAMTREE_USER_ID", "tester")
	dir := t.TempDir()
	t.Chdir(dir)

	out := mustExecute(t, "init")
	assert.Contains(t, out, "famtree initialized successfully!")
	return dir
}

type graphJSON struct {
	Persons []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"persons"`
	Derivation struct {
		Unions []struct {
			ParentIDs []string `json:"parent_ids"`
			ChildIDs  []string `json:"child_ids"`
		} `json:"unions"`
	} `json:"derivation"`
	Layout struct {
		Generations map[string]int `json:"generations"`
		Warnings    []any          `json:"warnings"`
	} `json:"layout"`
}

func TestCLI_DonorFamily(t *testing.T) {
	dir := newProject(t)
	_, err := os.Stat(filepath.Join(dir, ".famtree", "famtree.db"))
	require.NoError(t, err)

	for _, name := range []string{"David", "Maria", "Elena", "Jamie", "DonorX"} {
		mustExecute(t, "person", "add", name)
	}
	mustExecute(t, "connect", "David", "parent", "Elena")
	mustExecute(t, "connect", "Maria", "parent", "Elena")
	out := mustExecute(t, "connect", "DonorX", "donor", "Elena", "--attr", "known_donor")
	assert.Contains(t, out, "reciprocal")
	mustExecute(t, "connect", "DonorX", "donor", "Jamie")

	_, err = execute(t, "connect", "DonorX", "donor", "Jamie")
	require.Error(t, err)

	out = mustExecute(t, "connections", "--all")
	assert.NotContains(t, out, "[sibling]")
	assert.Contains(t, out, "DonorX -[donor]-> Elena {known_donor}")

	var graph graphJSON
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "tree", "--format", "json")), &graph))

	ids := make(map[string]string, len(graph.Persons))
	for _, p := range graph.Persons {
		ids[p.Name] = p.ID
	}
	require.Len(t, ids, 5)
	require.Len(t, graph.Derivation.Unions, 1)
	assert.ElementsMatch(t,
		[]string{ids["David"], ids["Maria"], ids["DonorX"]},
		graph.Derivation.Unions[0].ParentIDs)
	assert.Equal(t, []string{ids["Elena"]}, graph.Derivation.Unions[0].ChildIDs)

	assert.Equal(t, 0, graph.Layout.Generations[ids["DonorX"]])
	assert.Equal(t, 1, graph.Layout.Generations[ids["Elena"]])
	assert.Equal(t, 1, graph.Layout.Generations[ids["Jamie"]])
	assert.Empty(t, graph.Layout.Warnings)

	out = mustExecute(t, "repair")
	assert.Contains(t, out, "All reciprocal rows present.")

	out = mustExecute(t, "person", "delete", "Jamie")
	assert.Contains(t, out, "Deleted Jamie and 2 connections")
}

func TestCLI_TreesAndExportImport(t *testing.T) {
	dir := newProject(t)

	mustExecute(t, "trees", "create", "Garcia", "-d", "maternal side")
	mustExecute(t, "person", "add", "Ana", "--born", "1960-04-02")
	mustExecute(t, "person", "add", "Luis")
	mustExecute(t, "person", "add", "Outsider")
	mustExecute(t, "trees", "add", "Garcia", "Ana", "Luis")
	mustExecute(t, "connect", "Ana", "parent", "Luis", "--tree", "Garcia", "--attr", "biological")
	mustExecute(t, "connect", "Ana", "sibling", "Outsider")

	out := mustExecute(t, "trees", "list")
	assert.Contains(t, out, "Garcia")

	out = mustExecute(t, "tree", "--tree", "Garcia")
	assert.Contains(t, out, "Family tree: Garcia")
	assert.Contains(t, out, "0: Ana")
	assert.Contains(t, out, "1: Luis")
	assert.NotContains(t, out, "Outsider")

	exportPath := filepath.Join(dir, "garcia.csv")
	out = mustExecute(t, "export", "--tree", "Garcia", "--format", "csv", "--output", exportPath)
	assert.Contains(t, out, "Exported 2 persons")

	// Importing into the same project finds every row already present.
	out = mustExecute(t, "import", exportPath)
	assert.Contains(t, out, "Imported 0 connection(s), skipped 2, created 0 person(s)")

	_, err := execute(t, "export", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCLI_PersonSelfAndTypes(t *testing.T) {
	newProject(t)

	out := mustExecute(t, "person", "self")
	assert.Contains(t, out, "No self person set.")

	mustExecute(t, "person", "add", "Me", "--self")
	out = mustExecute(t, "person", "self")
	assert.Contains(t, out, "Me (")

	out = mustExecute(t, "types", "--filter", "directional")
	assert.Contains(t, out, "donor")
	assert.NotContains(t, out, "spouse")
	assert.Contains(t, out, "Attributes: biological")

	_, err := execute(t, "person", "add", "Bad", "--born", "02/04/1960")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --born")
}

func TestCLI_RequiresInit(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "person", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 'famtree init' first")
}
