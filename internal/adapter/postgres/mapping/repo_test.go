package mapping_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/mapping"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// newRepo sets up a test DB and returns a ready Repo + pool.
func newRepo(t *testing.T) (*mapping.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return mapping.New(pool), pool
}

// buildMapping creates a domain.ContactMapping for testing.
func buildMapping(connectionID, contactID uuid.UUID, uid string) domain.ContactMapping {
	return domain.ContactMapping{
		ConnectionID: connectionID,
		UID:          uid,
		ContactID:    contactID,
		Location:     "/addressbooks/default/" + uid + ".vcf",
		ETag:         `"etag-1"`,
		ContentHash:  "hash-1",
		SyncedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

// ---------------------------------------------------------------------------
// Upsert tests
// ---------------------------------------------------------------------------

func TestRepo_Upsert_HappyPath(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	conn := testhelper.SeedConnection(t, pool)
	c := testhelper.SeedContact(t, pool, conn.UserID, "uid-map-1")

	m := buildMapping(conn.ID, c.ID, "uid-map-1")
	if err := repo.Upsert(ctx, &m); err != nil {
		t.Fatalf("Upsert: unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, conn.ID, "uid-map-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContactID != c.ID {
		t.Errorf("ContactID mismatch: got %s, want %s", got.ContactID, c.ID)
	}
	if got.ETag != `"etag-1"` || got.ContentHash != "hash-1" {
		t.Errorf("stored fields mismatch: %+v", got)
	}
}

func TestRepo_Upsert_ReplacesExisting(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	conn := testhelper.SeedConnection(t, pool)
	c := testhelper.SeedContact(t, pool, conn.UserID, "uid-map-replace")

	m := buildMapping(conn.ID, c.ID, "uid-map-replace")
	if err := repo.Upsert(ctx, &m); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	m.ETag = `"etag-2"`
	m.ContentHash = "hash-2"
	m.SyncedAt = m.SyncedAt.Add(time.Minute)
	if err := repo.Upsert(ctx, &m); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	got, err := repo.Get(ctx, conn.ID, "uid-map-replace")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ETag != `"etag-2"` || got.ContentHash != "hash-2" {
		t.Errorf("mapping should be replaced: %+v", got)
	}
}

func TestRepo_Upsert_ContactTakenByAnotherUID(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	conn := testhelper.SeedConnection(t, pool)
	c := testhelper.SeedContact(t, pool, conn.UserID, "uid-map-taken")

	first := buildMapping(conn.ID, c.ID, "uid-map-taken")
	if err := repo.Upsert(ctx, &first); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	// A second remote uid claiming the same local contact violates the
	// one-contact-per-connection invariant.
	second := buildMapping(conn.ID, c.ID, "uid-map-other")
	err := repo.Upsert(ctx, &second)
	assertIsDomainError(t, err, domain.ErrConflict)
}

func TestRepo_Upsert_MissingConnection(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	c := testhelper.SeedContact(t, pool, uuid.New(), "uid-map-orphan")

	m := buildMapping(uuid.New(), c.ID, "uid-map-orphan")
	err := repo.Upsert(ctx, &m)
	assertIsDomainError(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Read tests
// ---------------------------------------------------------------------------

func TestRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	conn := testhelper.SeedConnection(t, pool)

	_, err := repo.Get(ctx, conn.ID, "uid-nope")
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func TestRepo_ListByConnection(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	conn := testhelper.SeedConnection(t, pool)
	other := testhelper.SeedConnection(t, pool)

	for _, uid := range []string{"uid-list-a", "uid-list-b"} {
		c := testhelper.SeedContact(t, pool, conn.UserID, uid)
		m := buildMapping(conn.ID, c.ID, uid)
		if err := repo.Upsert(ctx, &m); err != nil {
			t.Fatalf("Upsert %s: %v", uid, err)
		}
	}
	oc := testhelper.SeedContact(t, pool, other.UserID, "uid-list-other")
	om := buildMapping(other.ID, oc.ID, "uid-list-other")
	if err := repo.Upsert(ctx, &om); err != nil {
		t.Fatalf("Upsert other: %v", err)
	}

	got, err := repo.ListByConnection(ctx, conn.ID)
	if err != nil {
		t.Fatalf("ListByConnection: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(got))
	}
	if _, ok := got["uid-list-a"]; !ok {
		t.Error("uid-list-a missing from index")
	}
	if _, ok := got["uid-list-other"]; ok {
		t.Error("other connection's mapping leaked into index")
	}
}

// ---------------------------------------------------------------------------
// Delete tests
// ---------------------------------------------------------------------------

func TestRepo_DeleteByContact(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	connA := testhelper.SeedConnection(t, pool)
	connB := testhelper.SeedConnection(t, pool)
	c := testhelper.SeedContact(t, pool, connA.UserID, "uid-del-contact")

	ma := buildMapping(connA.ID, c.ID, "uid-del-contact")
	mb := buildMapping(connB.ID, c.ID, "uid-del-contact")
	if err := repo.Upsert(ctx, &ma); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if err := repo.Upsert(ctx, &mb); err != nil {
		t.Fatalf("Upsert b: %v", err)
	}

	n, err := repo.DeleteByContact(ctx, c.ID)
	if err != nil {
		t.Fatalf("DeleteByContact: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted mappings, got %d", n)
	}

	_, err = repo.Get(ctx, connA.ID, "uid-del-contact")
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func assertIsDomainError(t *testing.T, err error, target error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error wrapping %v, got nil", target)
	}
	if !errors.Is(err, target) {
		t.Fatalf("expected error wrapping %v, got: %v", target, err)
	}
}
