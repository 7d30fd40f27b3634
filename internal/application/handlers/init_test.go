package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/mocks"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

func openerFor(db ports.RelationalDB, err error) StoreOpener {
	return func(context.Context, string, *config.Config) (ports.RelationalDB, error) {
		return db, err
	}
}

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()
	var gotBase string
	handler := NewInitHandler(func(_ context.Context, basePath string, _ *config.Config) (ports.RelationalDB, error) {
		gotBase = basePath
		return mocks.NewRelationalDB(), nil
	})

	result, err := handler.Handle(t.Context(), tmpDir, InitOptions{})

	require.NoError(t, err)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Equal(t, config.DriverSQLite, result.Driver)
	assert.Equal(t, tmpDir, gotBase)
	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, config.WriteDefault(tmpDir))

	handler := NewInitHandler(openerFor(mocks.NewRelationalDB(), nil))

	_, err := handler.Handle(t.Context(), tmpDir, InitOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitHandler_Handle_StoreErrors(t *testing.T) {
	failing := mocks.NewRelationalDB()
	failing.Err = errors.New("disk full")

	tests := []struct {
		name    string
		opener  StoreOpener
		wantErr string
	}{
		{name: "open", opener: openerFor(nil, errors.New("connection refused")), wantErr: "opening store: connection refused"},
		{name: "schema", opener: openerFor(failing, nil), wantErr: "creating schema: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInitHandler(tt.opener).Handle(t.Context(), t.TempDir(), InitOptions{})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitHandler_Handle_Options(t *testing.T) {
	tmpDir := t.TempDir()
	handler := NewInitHandler(openerFor(mocks.NewRelationalDB(), nil))

	result, err := handler.Handle(t.Context(), tmpDir, InitOptions{
		Driver:      config.DriverPostgres,
		DatabaseURL: "postgres://famtree@localhost:5432/famtree",
		UserID:      "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, result.Driver)

	cfg, err := config.Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Account.UserID)
	assert.Equal(t, "postgres://famtree@localhost:5432/famtree", cfg.Postgres.URL)
	assert.Equal(t, "roots", cfg.Graph.CountFrom)
}

func TestInitHandler_Handle_InvalidOptions(t *testing.T) {
	tmpDir := t.TempDir()
	handler := NewInitHandler(openerFor(mocks.NewRelationalDB(), nil))

	_, err := handler.Handle(t.Context(), tmpDir, InitOptions{Driver: config.DriverPostgres})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URL is set")
	assert.False(t, config.Exists(tmpDir))
}
