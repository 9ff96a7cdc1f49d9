package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ScopeKind discriminates the two owners a staged record can belong to.
type ScopeKind string

const (
	// ScopeKindConnection scopes staged records to a CardDAV connection.
	ScopeKindConnection ScopeKind = "connection"
	// ScopeKindUpload scopes staged records to an uploading user.
	ScopeKindUpload ScopeKind = "upload"
)

// Scope identifies the owner of staged records: exactly one of an
// external connection or an uploading user. The zero value is invalid;
// use ConnectionScope or UploadScope.
type Scope struct {
	kind ScopeKind
	id   uuid.UUID
}

// ConnectionScope returns a scope owned by a CardDAV connection.
func ConnectionScope(connectionID uuid.UUID) Scope {
	return Scope{kind: ScopeKindConnection, id: connectionID}
}

// UploadScope returns a scope owned by an uploading user.
func UploadScope(userID uuid.UUID) Scope {
	return Scope{kind: ScopeKindUpload, id: userID}
}

// NewScope reconstructs a scope from its stored kind and id, e.g. when
// reading a pending_imports row.
func NewScope(kind ScopeKind, id uuid.UUID) (Scope, error) {
	switch kind {
	case ScopeKindConnection, ScopeKindUpload:
	default:
		return Scope{}, fmt.Errorf("scope kind %q: %w", kind, ErrValidation)
	}
	if id == uuid.Nil {
		return Scope{}, NewValidationError("scope_id", "must not be nil")
	}
	return Scope{kind: kind, id: id}, nil
}

// Kind returns the scope discriminator.
func (s Scope) Kind() ScopeKind { return s.kind }

// ID returns the owning connection or user id, depending on Kind.
func (s Scope) ID() uuid.UUID { return s.id }

// ConnectionID returns the connection id and true for connection scopes.
func (s Scope) ConnectionID() (uuid.UUID, bool) {
	if s.kind == ScopeKindConnection {
		return s.id, true
	}
	return uuid.Nil, false
}

// UserID returns the uploading user id and true for upload scopes.
func (s Scope) UserID() (uuid.UUID, bool) {
	if s.kind == ScopeKindUpload {
		return s.id, true
	}
	return uuid.Nil, false
}

// IsZero reports whether the scope was never initialized.
func (s Scope) IsZero() bool { return s.kind == "" }

// Validate rejects the zero scope.
func (s Scope) Validate() error {
	if s.IsZero() || s.id == uuid.Nil {
		return NewValidationError("scope", "must name a connection or a user")
	}
	return nil
}

func (s Scope) String() string {
	return string(s.kind) + ":" + s.id.String()
}
