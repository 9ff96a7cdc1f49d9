package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactMapping is the durable link between a remote (connection, uid)
// pair and a local contact. Unique per (connection, uid) and per
// (connection, contact): one remote object maps to one local record and
// vice versa. Never created for upload scopes — an upload has no remote
// counterpart to reconcile against on a future pass.
type ContactMapping struct {
	ConnectionID uuid.UUID
	UID          string
	ContactID    uuid.UUID

	// Location and ETag are the last-seen remote path and version tag.
	Location string
	ETag     string

	// ContentHash is the content hash of the record as of the last
	// successful sync; used to suppress redundant local updates.
	ContentHash string

	SyncedAt time.Time
}
