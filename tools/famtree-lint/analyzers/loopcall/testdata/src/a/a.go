package a

import "context"

type Person struct{ ID string }

type PersonStore interface {
	FindPersonByID(ctx context.Context, id string) (*Person, error)
	FindPersonsByIDs(ctx context.Context, ids []string) ([]*Person, error)
}

type ConnectionStore interface {
	FindConnectionsByPerson(ctx context.Context, personID string) ([]string, error)
}

func bad(ctx context.Context, ids []string, persons PersonStore, conns ConnectionStore) {
	for _, id := range ids {
		persons.FindPersonByID(ctx, id)        // want "potential N\\+1: FindPersonByID called inside loop - consider FindPersonsByIDs"
		conns.FindConnectionsByPerson(ctx, id) // want "potential N\\+1: FindConnectionsByPerson called inside loop"
	}
	for i := 0; i < len(ids); i++ {
		persons.FindPersonByID(ctx, ids[i]) // want "potential N\\+1: FindPersonByID called inside loop"
	}
}

func good(ctx context.Context, ids []string, persons PersonStore) {
	persons.FindPersonsByIDs(ctx, ids)
	persons.FindPersonByID(ctx, "one")
	for _, id := range ids {
		_ = len(id)
	}
}
