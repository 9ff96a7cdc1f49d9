package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingImport is a discovered-but-unconfirmed contact record staged for
// reconciliation. At most one row exists per (scope, uid): a later
// discovery of the same uid within the same scope replaces the earlier
// one.
type PendingImport struct {
	ID    uuid.UUID
	Scope Scope
	UID   string

	// Location is the remote object path for server-sourced records or a
	// synthetic token for uploads. ETag is the server version tag when
	// available, empty otherwise.
	Location string
	ETag     string

	// Raw is the source vCard text exactly as discovered.
	Raw string

	DisplayName  string
	DiscoveredAt time.Time
	NotifiedAt   *time.Time
}
