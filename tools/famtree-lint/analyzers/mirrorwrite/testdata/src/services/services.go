package services

import "context"

type Connection struct{ ID string }

type ConnectionStore interface {
	InsertConnection(ctx context.Context, conn *Connection) error
}

func create(ctx context.Context, store ConnectionStore) error {
	return store.InsertConnection(ctx, &Connection{ID: "c1"})
}
