package entities

import (
	"strings"
	"time"
)

// PersonStatus records whether a person is living.
type PersonStatus string

const (
	StatusLiving   PersonStatus = "living"
	StatusDeceased PersonStatus = "deceased"
)

// Person is an individual that can participate in connections.
// OwnerID is the account the record belongs to; at most one person per
// owner may be marked IsSelf.
type Person struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Name           string       `json:"name"`
	NormalizedName string       `json:"normalized_name"`
	Gender         string       `json:"gender,omitempty"`
	DateOfBirth    *time.Time   `json:"date_of_birth,omitempty"`
	Status         PersonStatus `json:"status"`
	IsSelf         bool         `json:"is_self"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsValid reports whether s is a known person status.
func (s PersonStatus) IsValid() bool {
	return s == StatusLiving || s == StatusDeceased
}
