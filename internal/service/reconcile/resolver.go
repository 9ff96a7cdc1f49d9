package reconcile

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// ClassKind is the identity-match category of one staged record.
type ClassKind int

const (
	// ClassNew means the uid matches nothing known.
	ClassNew ClassKind = iota
	// ClassDuplicateInBatch marks an occurrence superseded by a later
	// one with the same uid in the same batch.
	ClassDuplicateInBatch
	// ClassMatchesActive means an active local contact holds the uid.
	ClassMatchesActive
	// ClassMatchesDeleted means a soft-deleted local contact holds the uid.
	ClassMatchesDeleted
)

// Classification is the resolver's verdict; LocalID is set for the two
// Matches cases.
type Classification struct {
	Kind    ClassKind
	LocalID uuid.UUID
}

// Classify decides how one staged record relates to local state.
// superseded reports that a later occurrence of the same uid exists in
// the batch; last write wins, so this occurrence is skipped. When both
// an active and a soft-deleted contact hold the uid (the active-uid
// uniqueness invariant should prevent this), the active match takes
// precedence. Pure function over the supplied snapshots.
func Classify(uid string, superseded bool, active, deleted map[string]uuid.UUID) Classification {
	if superseded {
		return Classification{Kind: ClassDuplicateInBatch}
	}
	if id, ok := active[uid]; ok {
		return Classification{Kind: ClassMatchesActive, LocalID: id}
	}
	if id, ok := deleted[uid]; ok {
		return Classification{Kind: ClassMatchesDeleted, LocalID: id}
	}
	return Classification{Kind: ClassNew}
}

// supersededSet precomputes which batch positions are shadowed by a
// later occurrence of the same uid. The returned slice is parallel to
// items: true means a later item carries the same uid.
func supersededSet(items []domain.PendingImport) []bool {
	lastIndex := make(map[string]int, len(items))
	for i, item := range items {
		lastIndex[item.UID] = i
	}
	superseded := make([]bool, len(items))
	for i, item := range items {
		superseded[i] = lastIndex[item.UID] != i
	}
	return superseded
}
