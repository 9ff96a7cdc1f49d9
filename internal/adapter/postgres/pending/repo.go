// Package pending implements the staging store for discovered-but-unconfirmed
// contact records using PostgreSQL. It provides storage semantics only
// (upsert-by-(scope, uid), reads, bulk deletes); reconciliation decisions
// live in the reconcile service.
package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Repo provides pending-import persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new pending-import repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const pendingColumns = `id, scope_kind, scope_id, uid, location, etag, raw, display_name, discovered_at, notified_at`

const upsertSQL = `
INSERT INTO pending_imports (id, scope_kind, scope_id, uid, location, etag, raw, display_name, discovered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (scope_kind, scope_id, uid) DO UPDATE SET
    location      = EXCLUDED.location,
    etag          = EXCLUDED.etag,
    raw           = EXCLUDED.raw,
    display_name  = EXCLUDED.display_name,
    discovered_at = EXCLUDED.discovered_at,
    notified_at   = NULL
RETURNING ` + pendingColumns

// Upsert inserts a pending import, or replaces the existing entry for the
// same (scope, uid) — last write wins. The surviving row keeps its
// original id; the returned PendingImport reflects the stored state.
func (r *Repo) Upsert(ctx context.Context, p *domain.PendingImport) (*domain.PendingImport, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, upsertSQL,
		p.ID, string(p.Scope.Kind()), p.Scope.ID(), p.UID,
		p.Location, p.ETag, p.Raw, p.DisplayName, p.DiscoveredAt,
	)

	stored, err := scanPending(row)
	if err != nil {
		return nil, mapError(err, p.ID)
	}
	return stored, nil
}

const getByIDsSQL = `
SELECT ` + pendingColumns + `
FROM pending_imports
WHERE id = ANY($1)
ORDER BY discovered_at, id`

// GetByIDs returns the pending imports with the given ids in discovery
// (arrival) order. Missing ids are silently absent from the result.
func (r *Repo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.PendingImport, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("get pending_imports by ids: %w", err)
	}
	defer rows.Close()

	return collectPending(rows)
}

// Filter narrows ListByScope results.
type Filter struct {
	// OnlyUnnotified keeps entries the user has not been told about yet.
	OnlyUnnotified bool
	// Limit bounds the result; 0 means no limit.
	Limit int
}

// ListByScope returns a scope's pending imports in discovery order.
func (r *Repo) ListByScope(ctx context.Context, scope domain.Scope, f Filter) ([]domain.PendingImport, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	builder := sq.Select(pendingColumns).
		From("pending_imports").
		Where(sq.Eq{"scope_kind": string(scope.Kind()), "scope_id": scope.ID()}).
		OrderBy("discovered_at", "id").
		PlaceholderFormat(sq.Dollar)

	if f.OnlyUnnotified {
		builder = builder.Where(sq.Eq{"notified_at": nil})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending_imports query: %w", err)
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending_imports: %w", err)
	}
	defer rows.Close()

	return collectPending(rows)
}

// AllByScope returns every pending import in the scope, oldest first.
func (r *Repo) AllByScope(ctx context.Context, scope domain.Scope) ([]domain.PendingImport, error) {
	return r.ListByScope(ctx, scope, Filter{})
}

// DeleteByIDs removes the given pending imports. Missing ids are not an
// error; returns the number of deleted rows.
func (r *Repo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, `DELETE FROM pending_imports WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete pending_imports: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteByScope removes all of a scope's pending imports. Discovery calls
// this before staging a fresh pass so abandoned entries never accumulate.
func (r *Repo) DeleteByScope(ctx context.Context, scope domain.Scope) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx,
		`DELETE FROM pending_imports WHERE scope_kind = $1 AND scope_id = $2`,
		string(scope.Kind()), scope.ID(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete pending_imports for scope %s: %w", scope, err)
	}
	return int(tag.RowsAffected()), nil
}

// MarkNotified stamps the "user notified" timestamp on the given entries.
func (r *Repo) MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := querier.Exec(ctx,
		`UPDATE pending_imports SET notified_at = $2 WHERE id = ANY($1)`,
		ids, at,
	)
	if err != nil {
		return fmt.Errorf("mark pending_imports notified: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

func scanPending(row pgx.Row) (*domain.PendingImport, error) {
	var (
		p         domain.PendingImport
		scopeKind string
		scopeID   uuid.UUID
	)
	err := row.Scan(
		&p.ID, &scopeKind, &scopeID, &p.UID,
		&p.Location, &p.ETag, &p.Raw, &p.DisplayName,
		&p.DiscoveredAt, &p.NotifiedAt,
	)
	if err != nil {
		return nil, err
	}

	scope, err := domain.NewScope(domain.ScopeKind(scopeKind), scopeID)
	if err != nil {
		return nil, err
	}
	p.Scope = scope
	return &p, nil
}

func collectPending(rows pgx.Rows) ([]domain.PendingImport, error) {
	var items []domain.PendingImport
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending_import: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending_imports: %w", err)
	}
	return items, nil
}

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("pending_import %s: %w", id, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pending_import %s: %w", id, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("pending_import %s: %w", id, domain.ErrAlreadyExists)
	}
	return fmt.Errorf("pending_import %s: %w", id, err)
}
