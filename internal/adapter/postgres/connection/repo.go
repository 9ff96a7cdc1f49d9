// Package connection implements the CardDAV connection repository using
// PostgreSQL.
package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Repo provides connection persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new connection repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const connectionColumns = `id, user_id, name, base_url, address_book_path, username, password, sync_token, created_at, updated_at`

// GetByID returns a connection by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM addressbook_connections WHERE id = $1`, id)

	c, err := scanConnection(row)
	if err != nil {
		return nil, postgres.MapScanError(err, "connection", id.String())
	}
	return c, nil
}

// List returns all configured connections ordered by creation time.
func (r *Repo) List(ctx context.Context) ([]domain.Connection, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx,
		`SELECT `+connectionColumns+` FROM addressbook_connections ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

// Create inserts a new connection and returns the persisted row.
func (r *Repo) Create(ctx context.Context, c *domain.Connection) (*domain.Connection, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC()
	row := querier.QueryRow(ctx,
		`INSERT INTO addressbook_connections (`+connectionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+connectionColumns,
		c.ID, c.UserID, c.Name, c.BaseURL, c.AddressBookPath,
		c.Username, c.Password, c.SyncToken, now, now,
	)

	stored, err := scanConnection(row)
	if err != nil {
		return nil, postgres.MapScanError(err, "connection", c.ID.String())
	}
	return stored, nil
}

// UpdateSyncToken persists the server's collection token after a
// completed discovery pass.
func (r *Repo) UpdateSyncToken(ctx context.Context, id uuid.UUID, token string) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx,
		`UPDATE addressbook_connections SET sync_token = $2, updated_at = $3 WHERE id = $1`,
		id, token, time.Now().UTC(),
	)
	if err != nil {
		return postgres.MapScanError(err, "connection", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a connection; mappings and locks cascade or are cleaned
// up by their own stores.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, `DELETE FROM addressbook_connections WHERE id = $1`, id)
	if err != nil {
		return postgres.MapScanError(err, "connection", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanConnection(row pgx.Row) (*domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.BaseURL, &c.AddressBookPath,
		&c.Username, &c.Password, &c.SyncToken, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
