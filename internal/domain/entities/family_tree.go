package entities

import "time"

// FamilyTree groups persons that are displayed together.
// Membership is tracked separately from connections: a connection belongs to
// a tree either by its FamilyTreeID or because both endpoints are members.
type FamilyTree struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
