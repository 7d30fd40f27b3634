// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// DefaultConfigDir is the directory name for famtree configuration.
	DefaultConfigDir = ".famtree"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the SQLite file used when sqlite.path is empty.
	DefaultDatabaseFile = "famtree.db"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds static configuration (read-only after load).
// Environment variables override values from the file.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	Account  AccountConfig  `yaml:"account"`
	Graph    GraphConfig    `yaml:"graph"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"FAMTREE_STORE_DRIVER" env-default:"sqlite"`
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file. Relative paths are resolved against the
	// project directory; empty means .famtree/famtree.db.
	Path string `yaml:"path,omitempty" env:"FAMTREE_SQLITE_PATH"`
}

// PostgresConfig holds configuration for the PostgreSQL store.
type PostgresConfig struct {
	URL            string `yaml:"url,omitempty" env:"FAMTREE_DATABASE_URL"`
	MaxConnections int32  `yaml:"max_connections,omitempty" env:"FAMTREE_DATABASE_MAX_CONNS" env-default:"10"`
}

// AccountConfig identifies the user the CLI acts for.
type AccountConfig struct {
	UserID string `yaml:"user_id" env:"FAMTREE_USER_ID"`
}

// GraphConfig holds the default union and layout options for the tree view.
type GraphConfig struct {
	DisableUnions        bool    `yaml:"disable_unions,omitempty"`
	MinSharedChildren    int     `yaml:"min_shared_children" env-default:"1"`
	IncludeSingleParents bool    `yaml:"include_single_parents,omitempty"`
	GroupSiblings        bool    `yaml:"group_siblings,omitempty"`
	CountFrom            string  `yaml:"count_from" env:"FAMTREE_COUNT_FROM" env-default:"roots"`
	NodeWidth            float64 `yaml:"node_width" env-default:"200"`
	LevelHeight          float64 `yaml:"level_height" env-default:"150"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"FAMTREE_LOG_LEVEL" env-default:"warn"`
	Format string `yaml:"format" env:"FAMTREE_LOG_FORMAT" env-default:"console"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Driver: DriverSQLite},
		Postgres: PostgresConfig{
			MaxConnections: 10,
		},
		Graph: GraphConfig{
			MinSharedChildren: 1,
			CountFrom:         "roots",
			NodeWidth:         200,
			LevelHeight:       150,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from the .famtree directory in the given path
// and applies environment overrides.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'famtree init' first)", configFile)
	}

	cfg := &Config{}
	if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cleanenv cannot.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("store.driver is postgres but no URL is set (postgres.url or FAMTREE_DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown store driver %q (valid: sqlite, postgres)", c.Store.Driver)
	}

	switch c.Graph.CountFrom {
	case "", "roots", "leaves":
	default:
		return fmt.Errorf("invalid graph.count_from %q (valid: roots, leaves)", c.Graph.CountFrom)
	}
	return nil
}

// SQLitePath resolves the SQLite database path for a project directory.
func (c *Config) SQLitePath(basePath string) string {
	switch {
	case c.SQLite.Path == "":
		return filepath.Join(basePath, DefaultConfigDir, DefaultDatabaseFile)
	case c.SQLite.Path == ":memory:" || filepath.IsAbs(c.SQLite.Path):
		return c.SQLite.Path
	default:
		return filepath.Join(basePath, c.SQLite.Path)
	}
}

// ConfigDir returns the path to the .famtree config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// Exists checks if a famtree config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
