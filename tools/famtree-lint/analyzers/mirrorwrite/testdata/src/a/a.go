package a

import "context"

type Connection struct{ ID string }

type ConnectionStore interface {
	InsertConnection(ctx context.Context, conn *Connection) error
	DeleteConnection(ctx context.Context, id string) error
	FindConnectionByID(ctx context.Context, id string) (*Connection, error)
}

func handler(ctx context.Context, store ConnectionStore) {
	store.InsertConnection(ctx, &Connection{ID: "c1"}) // want "InsertConnection writes a connection row directly"
	store.DeleteConnection(ctx, "c1")                  // want "DeleteConnection writes a connection row directly"
	store.FindConnectionByID(ctx, "c1")
}
