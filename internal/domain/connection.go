package domain

import (
	"time"

	"github.com/google/uuid"
)

// Connection is a configured CardDAV address-book account belonging to a
// user. SyncToken is the server's collection sync token as of the last
// completed pass; empty means the next pass lists the full collection.
type Connection struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string

	BaseURL         string
	AddressBookPath string
	Username        string
	Password        string

	SyncToken string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncLock is the ephemeral per-scope lock row guarding reconciliation
// runs. A lock whose ExpiresAt has passed is treated as abandoned by its
// holder and may be reclaimed by a later acquisition attempt.
type SyncLock struct {
	ScopeKind  ScopeKind
	ScopeID    uuid.UUID
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the lock's holder missed its deadline.
func (l SyncLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
