// Package contact implements the local contact store using PostgreSQL.
// The reconciliation engine treats it as a collaborator: it looks up
// active and soft-deleted contacts by uid and creates, updates, or
// restores records from decoded contact records.
package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Repo provides contact persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new contact repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const contactColumns = `id, user_id, uid, display_name,
	name_prefix, given_name, middle_name, family_name, second_family_name, name_suffix,
	nickname, organization, title, note, photo_ref,
	phones, emails, addresses, links, messaging, dates,
	created_at, updated_at, deleted_at`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a contact by primary key, deleted or not.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)

	c, err := scanContact(row)
	if err != nil {
		return nil, mapError(err, id)
	}
	return c, nil
}

// FindActiveByUIDs returns uid → contact id for the user's active
// (not soft-deleted) contacts among the given uids.
func (r *Repo) FindActiveByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error) {
	return r.findByUIDs(ctx, userID, uids, false)
}

// FindDeletedByUIDs returns uid → contact id for the user's soft-deleted
// contacts among the given uids. When several deleted contacts share a
// uid, the most recently deleted one wins.
func (r *Repo) FindDeletedByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error) {
	return r.findByUIDs(ctx, userID, uids, true)
}

func (r *Repo) findByUIDs(ctx context.Context, userID uuid.UUID, uids []string, deleted bool) (map[string]uuid.UUID, error) {
	if len(uids) == 0 {
		return map[string]uuid.UUID{}, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	predicate := "deleted_at IS NULL"
	order := "uid"
	if deleted {
		predicate = "deleted_at IS NOT NULL"
		// Later rows overwrite earlier ones in the map, so ascending
		// deleted_at leaves the most recently deleted contact.
		order = "uid, deleted_at"
	}

	rows, err := querier.Query(ctx,
		`SELECT uid, id FROM contacts
		 WHERE user_id = $1 AND uid = ANY($2) AND `+predicate+`
		 ORDER BY `+order,
		userID, uids,
	)
	if err != nil {
		return nil, fmt.Errorf("find contacts by uids: %w", err)
	}
	defer rows.Close()

	index := make(map[string]uuid.UUID)
	for rows.Next() {
		var (
			uid string
			id  uuid.UUID
		)
		if err := rows.Scan(&uid, &id); err != nil {
			return nil, fmt.Errorf("scan contact uid: %w", err)
		}
		index[uid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return index, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const createSQL = `
INSERT INTO contacts (id, user_id, uid, display_name,
	name_prefix, given_name, middle_name, family_name, second_family_name, name_suffix,
	nickname, organization, title, note, photo_ref,
	phones, emails, addresses, links, messaging, dates,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21, $22, $23)
RETURNING ` + contactColumns

// CreateFromRecord creates an active contact from a decoded record.
// Violating the active-uid uniqueness invariant maps to ErrAlreadyExists.
func (r *Repo) CreateFromRecord(ctx context.Context, userID uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	id := uuid.New()
	now := time.Now().UTC()

	row := querier.QueryRow(ctx, createSQL,
		id, userID, rec.UID, rec.DisplayName(),
		rec.Name.Prefix, rec.Name.Given, rec.Name.Middle, rec.Name.Family, rec.Name.SecondFamily, rec.Name.Suffix,
		rec.Nickname, rec.Organization, rec.Title, rec.Note, rec.PhotoRef,
		jsonSlice(rec.Phones), jsonSlice(rec.Emails), jsonSlice(rec.Addresses),
		jsonSlice(rec.Links), jsonSlice(rec.Messaging), jsonSlice(rec.Dates),
		now, now,
	)

	c, err := scanContact(row)
	if err != nil {
		return nil, mapError(err, id)
	}
	return c, nil
}

const updateSQL = `
UPDATE contacts SET
	display_name = $2,
	name_prefix = $3, given_name = $4, middle_name = $5, family_name = $6,
	second_family_name = $7, name_suffix = $8,
	nickname = $9, organization = $10, title = $11, note = $12, photo_ref = $13,
	phones = $14, emails = $15, addresses = $16, links = $17, messaging = $18, dates = $19,
	updated_at = $20
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + contactColumns

// UpdateFromRecord overwrites an active contact's fields from a decoded
// record. The uid itself never changes. Returns domain.ErrNotFound if the
// contact does not exist or is soft-deleted.
func (r *Repo) UpdateFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	return r.applyRecord(ctx, updateSQL, id, rec)
}

const restoreSQL = `
UPDATE contacts SET
	display_name = $2,
	name_prefix = $3, given_name = $4, middle_name = $5, family_name = $6,
	second_family_name = $7, name_suffix = $8,
	nickname = $9, organization = $10, title = $11, note = $12, photo_ref = $13,
	phones = $14, emails = $15, addresses = $16, links = $17, messaging = $18, dates = $19,
	updated_at = $20,
	deleted_at = NULL
WHERE id = $1 AND deleted_at IS NOT NULL
RETURNING ` + contactColumns

// RestoreFromRecord clears a soft-deleted contact's delete marker and
// applies the incoming fields, preserving the contact's id and therefore
// its relationships and group memberships. Returns domain.ErrNotFound if
// the contact does not exist or is not soft-deleted.
func (r *Repo) RestoreFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	return r.applyRecord(ctx, restoreSQL, id, rec)
}

func (r *Repo) applyRecord(ctx context.Context, sql string, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, sql,
		id, rec.DisplayName(),
		rec.Name.Prefix, rec.Name.Given, rec.Name.Middle, rec.Name.Family, rec.Name.SecondFamily, rec.Name.Suffix,
		rec.Nickname, rec.Organization, rec.Title, rec.Note, rec.PhotoRef,
		jsonSlice(rec.Phones), jsonSlice(rec.Emails), jsonSlice(rec.Addresses),
		jsonSlice(rec.Links), jsonSlice(rec.Messaging), jsonSlice(rec.Dates),
		time.Now().UTC(),
	)

	c, err := scanContact(row)
	if err != nil {
		return nil, mapError(err, id)
	}
	return c, nil
}

// SoftDelete marks a contact deleted without removing its row.
func (r *Repo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx,
		`UPDATE contacts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return mapError(err, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
