// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

// StoreOpener opens the store described by a config.
type StoreOpener func(ctx context.Context, basePath string, cfg *config.Config) (ports.RelationalDB, error)

// InitHandler handles project initialization.
type InitHandler struct {
	open StoreOpener
}

// NewInitHandler creates a new init handler.
func NewInitHandler(open StoreOpener) *InitHandler {
	return &InitHandler{open: open}
}

// InitOptions override defaults in the written config. Empty fields keep
// the default.
type InitOptions struct {
	Driver      string
	DatabaseURL string
	UserID      string
}

func (o InitOptions) empty() bool {
	return o.Driver == "" && o.DatabaseURL == "" && o.UserID == ""
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	Driver     string
}

// Handle writes the default config and creates the store schema.
func (h *InitHandler) Handle(ctx context.Context, basePath string, opts InitOptions) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("famtree already initialized in %s", basePath)
	}

	if opts.empty() {
		if err := config.WriteDefault(basePath); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	} else if err := writeWithOptions(basePath, opts); err != nil {
		return nil, err
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := h.open(ctx, basePath, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		Driver:     cfg.Store.Driver,
	}, nil
}

func writeWithOptions(basePath string, opts InitOptions) error {
	cfg := config.Default()
	cfg.Account.UserID = "local"
	if opts.Driver != "" {
		cfg.Store.Driver = opts.Driver
	}
	if opts.DatabaseURL != "" {
		cfg.Postgres.URL = opts.DatabaseURL
	}
	if opts.UserID != "" {
		cfg.Account.UserID = opts.UserID
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Write(basePath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
