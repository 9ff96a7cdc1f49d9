package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedConnection creates an address book connection with generated
// credentials. Returns a filled domain.Connection.
func SeedConnection(t *testing.T, pool *pgxpool.Pool) domain.Connection {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	conn := domain.Connection{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Name:            "Test Connection " + suffix,
		BaseURL:         "https://dav.example.com",
		AddressBookPath: "/addressbooks/testuser-" + suffix + "/default/",
		Username:        "testuser-" + suffix,
		Password:        "testpass-" + suffix,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO addressbook_connections
		 (id, user_id, name, base_url, address_book_path, username, password, sync_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		conn.ID, conn.UserID, conn.Name, conn.BaseURL, conn.AddressBookPath,
		conn.Username, conn.Password, conn.SyncToken, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedConnection insert: %v", err)
	}

	return conn
}

// SeedContact creates an active contact with the given uid for the user.
// Only the scalar columns are filled; multi-value fields keep their
// defaults.
func SeedContact(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, uid string) domain.Contact {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := domain.Contact{
		ID:        uuid.New(),
		UserID:    userID,
		UID:       uid,
		Name:      domain.NameParts{Given: "Seed", Family: "Contact " + suffix},
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := c.Record()
	c.DisplayName = rec.DisplayName()

	_, err := pool.Exec(ctx,
		`INSERT INTO contacts (id, user_id, uid, display_name, given_name, family_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.UID, c.DisplayName, c.Name.Given, c.Name.Family, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedContact insert: %v", err)
	}

	return c
}

// SeedDeletedContact creates a soft-deleted contact with the given uid,
// deleted at the given time.
func SeedDeletedContact(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, uid string, deletedAt time.Time) domain.Contact {
	t.Helper()
	ctx := context.Background()

	c := SeedContact(t, pool, userID, uid)
	deletedAt = deletedAt.UTC().Truncate(time.Microsecond)

	_, err := pool.Exec(ctx,
		`UPDATE contacts SET deleted_at = $2 WHERE id = $1`,
		c.ID, deletedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedDeletedContact update: %v", err)
	}

	c.DeletedAt = &deletedAt
	return c
}

// SeedPending creates a pending import row in the given scope.
func SeedPending(t *testing.T, pool *pgxpool.Pool, scope domain.Scope, uid string) domain.PendingImport {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := domain.PendingImport{
		ID:           uuid.New(),
		Scope:        scope,
		UID:          uid,
		Location:     "/addressbooks/default/" + uid + ".vcf",
		ETag:         `"` + uniqueSuffix() + `"`,
		Raw:          "BEGIN:VCARD\r\nVERSION:4.0\r\nUID:" + uid + "\r\nFN:Pending " + uid + "\r\nEND:VCARD\r\n",
		DisplayName:  "Pending " + uid,
		DiscoveredAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO pending_imports
		 (id, scope_kind, scope_id, uid, location, etag, raw, display_name, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, string(p.Scope.Kind()), p.Scope.ID(), p.UID, p.Location, p.ETag, p.Raw, p.DisplayName, p.DiscoveredAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPending insert: %v", err)
	}

	return p
}
