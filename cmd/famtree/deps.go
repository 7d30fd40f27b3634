package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/domain/registry"
	"github.com/ersonp/famtree/internal/domain/services"
	"github.com/ersonp/famtree/internal/infrastructure/config"
	"github.com/ersonp/famtree/internal/infrastructure/logging"
	"github.com/ersonp/famtree/internal/infrastructure/relationaldb/postgres"
	"github.com/ersonp/famtree/internal/infrastructure/relationaldb/sqlite"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config            *config.Config
	PersonHandler     *handlers.PersonHandler
	FamilyTreeHandler *handlers.FamilyTreeHandler
	ConnectionHandler *handlers.ConnectionHandler
	GraphHandler      *handlers.GraphHandler
	ImportHandler     *handlers.ImportHandler
	RepairHandler     *handlers.RepairHandler
}

// withDeps loads config, opens the store and builds dependencies, then calls
// the provided function. It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cwd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	reg := registry.Default()
	auth := ports.StaticAuth{UserID: cfg.Account.UserID}

	personSvc := services.NewPersonService(store, auth)
	treeSvc := services.NewFamilyTreeService(store, store, auth)
	connSvc := services.NewConnectionService(store, store, store, auth, logger)
	engine := services.NewConsistencyEngine(reg, connSvc, store, store, logger)
	importSvc := services.NewImportService(reg, personSvc, treeSvc, engine, logger)

	deps := &Deps{
		Config:            cfg,
		PersonHandler:     handlers.NewPersonHandler(personSvc, connSvc, engine),
		FamilyTreeHandler: handlers.NewFamilyTreeHandler(treeSvc, personSvc),
		ConnectionHandler: handlers.NewConnectionHandler(reg, personSvc, treeSvc, connSvc, engine),
		GraphHandler: handlers.NewGraphHandler(personSvc, treeSvc, connSvc, engine,
			services.NewUnionDeriver(reg), services.NewLayoutAssigner(reg)),
		ImportHandler: handlers.NewImportHandler(importSvc),
		RepairHandler: handlers.NewRepairHandler(connSvc, engine),
	}

	return fn(deps)
}

// openStore opens the store selected by store.driver. It is also the
// StoreOpener used by init.
func openStore(ctx context.Context, basePath string, cfg *config.Config) (ports.RelationalDB, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		repo, err := postgres.NewRepository(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("creating postgres repository: %w", err)
		}
		return repo, nil
	default:
		repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(basePath)})
		if err != nil {
			return nil, fmt.Errorf("creating sqlite repository: %w", err)
		}
		return repo, nil
	}
}

// withPersonHandler provides access to the PersonHandler.
func withPersonHandler(ctx context.Context, fn func(*handlers.PersonHandler) error) error {
	return withDeps(ctx, func(d *Deps) error {
		return fn(d.PersonHandler)
	})
}

// withFamilyTreeHandler provides access to the FamilyTreeHandler.
func withFamilyTreeHandler(ctx context.Context, fn func(*handlers.FamilyTreeHandler) error) error {
	return withDeps(ctx, func(d *Deps) error {
		return fn(d.FamilyTreeHandler)
	})
}

// withConnectionHandler provides access to the ConnectionHandler.
func withConnectionHandler(ctx context.Context, fn func(*handlers.ConnectionHandler) error) error {
	return withDeps(ctx, func(d *Deps) error {
		return fn(d.ConnectionHandler)
	})
}
