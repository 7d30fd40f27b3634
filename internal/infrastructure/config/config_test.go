package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(ConfigDir(dir), 0755))
	require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte(content), 0644))
	return dir
}

func TestLoad_DefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Account.UserID)
	assert.Equal(t, 1, cfg.Graph.MinSharedChildren)
	assert.Equal(t, "roots", cfg.Graph.CountFrom)
	assert.Equal(t, 200.0, cfg.Graph.NodeWidth)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConnections)
}

func TestLoad_AppliesDefaultsToMissingKeys(t *testing.T) {
	dir := writeConfig(t, "account:\n  user_id: u-1\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, Default().Graph, cfg.Graph)
	assert.Equal(t, Default().Log, cfg.Log)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, "store:\n  driver: sqlite\naccount:\n  user_id: from-file\nlog:\n  level: info\n")
	t.Setenv("FAMTREE_USER_ID", "from-env")
	t.Setenv("FAMTREE_LOG_LEVEL", "debug")
	t.Setenv("FAMTREE_STORE_DRIVER", "postgres")
	t.Setenv("FAMTREE_DATABASE_URL", "postgres://localhost/famtree")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Account.UserID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/famtree", cfg.Postgres.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "postgres without url", content: "store:\n  driver: postgres\n", wantErr: "no URL is set"},
		{name: "unknown driver", content: "store:\n  driver: mysql\n", wantErr: "unknown store driver"},
		{name: "bad counting", content: "graph:\n  count_from: sideways\n", wantErr: "invalid graph.count_from"},
		{name: "bad yaml", content: "store: [\n", wantErr: "reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)

			_, err := Load(dir)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_NotInitialized(t *testing.T) {
	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "famtree init")
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	err := WriteDefault(dir)

	require.Error(t, err)
	assert.True(t, Exists(dir))
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Account.UserID = "u-9"
	cfg.Graph.IncludeSingleParents = true
	cfg.Graph.CountFrom = "leaves"

	require.NoError(t, Write(dir, cfg))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSQLitePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "default", path: "", want: filepath.Join("/proj", ".famtree", "famtree.db")},
		{name: "relative", path: "data/tree.db", want: filepath.Join("/proj", "data", "tree.db")},
		{name: "absolute", path: "/var/lib/famtree.db", want: "/var/lib/famtree.db"},
		{name: "memory", path: ":memory:", want: ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SQLite.Path = tt.path
			assert.Equal(t, tt.want, cfg.SQLitePath("/proj"))
		})
	}
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, "/home/user/project/.famtree", ConfigDir("/home/user/project"))
	assert.Equal(t, "/home/user/project/.famtree/config.yaml", ConfigFilePath("/home/user/project"))
	assert.False(t, Exists(t.TempDir()))
}
