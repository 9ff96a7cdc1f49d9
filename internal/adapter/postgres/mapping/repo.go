// Package mapping implements the external-mapping store: the durable
// (connection, uid) ↔ local contact links used by connection-scoped
// reconciliation. Upload scopes never touch this table.
package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Repo provides contact-mapping persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new mapping repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const mappingColumns = `connection_id, uid, contact_id, location, etag, content_hash, synced_at`

const upsertSQL = `
INSERT INTO contact_mappings (connection_id, uid, contact_id, location, etag, content_hash, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (connection_id, uid) DO UPDATE SET
    contact_id   = EXCLUDED.contact_id,
    location     = EXCLUDED.location,
    etag         = EXCLUDED.etag,
    content_hash = EXCLUDED.content_hash,
    synced_at    = EXCLUDED.synced_at`

// Upsert writes the mapping for (connection, uid), updating the last-seen
// location, version tag, and content hash on every successful sync.
// A conflict on the (connection, contact) uniqueness maps to ErrConflict:
// it means two remote uids claim the same local contact.
func (r *Repo) Upsert(ctx context.Context, m *domain.ContactMapping) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := querier.Exec(ctx, upsertSQL,
		m.ConnectionID, m.UID, m.ContactID, m.Location, m.ETag, m.ContentHash, m.SyncedAt,
	)
	if err != nil {
		return mapError(err, m.ConnectionID, m.UID)
	}
	return nil
}

// Get returns the mapping for (connection, uid).
func (r *Repo) Get(ctx context.Context, connectionID uuid.UUID, uid string) (*domain.ContactMapping, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM contact_mappings WHERE connection_id = $1 AND uid = $2`,
		connectionID, uid,
	)

	var m domain.ContactMapping
	err := row.Scan(&m.ConnectionID, &m.UID, &m.ContactID, &m.Location, &m.ETag, &m.ContentHash, &m.SyncedAt)
	if err != nil {
		return nil, mapError(err, connectionID, uid)
	}
	return &m, nil
}

// ListByConnection returns every mapping for a connection, keyed by uid.
// The reconciliation engine builds this index once per run.
func (r *Repo) ListByConnection(ctx context.Context, connectionID uuid.UUID) (map[string]domain.ContactMapping, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx,
		`SELECT `+mappingColumns+` FROM contact_mappings WHERE connection_id = $1`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contact_mappings: %w", err)
	}
	defer rows.Close()

	index := make(map[string]domain.ContactMapping)
	for rows.Next() {
		var m domain.ContactMapping
		if err := rows.Scan(&m.ConnectionID, &m.UID, &m.ContactID, &m.Location, &m.ETag, &m.ContentHash, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan contact_mapping: %w", err)
		}
		index[m.UID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact_mappings: %w", err)
	}
	return index, nil
}

// DeleteByContact removes the mappings pointing at a local contact, used
// when the contact is permanently deleted.
func (r *Repo) DeleteByContact(ctx context.Context, contactID uuid.UUID) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, `DELETE FROM contact_mappings WHERE contact_id = $1`, contactID)
	if err != nil {
		return 0, fmt.Errorf("delete contact_mappings for contact %s: %w", contactID, err)
	}
	return int(tag.RowsAffected()), nil
}

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, connectionID uuid.UUID, uid string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("contact_mapping %s/%s: %w", connectionID, uid, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("contact_mapping %s/%s: %w", connectionID, uid, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation — (connection, contact_id) taken by another uid
			return fmt.Errorf("contact_mapping %s/%s: %w", connectionID, uid, domain.ErrConflict)
		case "23503": // foreign_key_violation — connection or contact gone
			return fmt.Errorf("contact_mapping %s/%s: %w", connectionID, uid, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("contact_mapping %s/%s: %w", connectionID, uid, err)
}
