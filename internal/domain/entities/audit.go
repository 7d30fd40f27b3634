package entities

import "time"

// Audit actions recorded for connections.
const (
	AuditConnectionCreated = "connection.created"
	AuditConnectionUpdated = "connection.updated"
	AuditConnectionDeleted = "connection.deleted"
	AuditReciprocalFailed  = "reciprocal.failed"
	AuditReciprocalHealed  = "reciprocal.healed"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID           int64          `json:"id"`
	Action       string         `json:"action"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
