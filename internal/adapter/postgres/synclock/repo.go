// Package synclock implements the per-scope sync lock as a database row,
// so mutual exclusion holds across processes and survives restarts. An
// expired lock is treated as abandoned and reclaimed by the next
// acquisition attempt instead of wedging the scope forever.
package synclock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Repo provides sync-lock persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new sync-lock repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// The upsert only succeeds when no row exists or the existing row has
// expired; a live lock leaves the WHERE clause false and affects no rows.
const acquireSQL = `
INSERT INTO sync_locks (scope_kind, scope_id, acquired_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (scope_kind, scope_id) DO UPDATE SET
    acquired_at = EXCLUDED.acquired_at,
    expires_at  = EXCLUDED.expires_at
WHERE sync_locks.expires_at < EXCLUDED.acquired_at`

// Acquire takes the scope's lock with the given TTL. Returns
// domain.ErrSyncInProgress when a non-expired lock is held by another
// run; an expired lock is reclaimed.
func (r *Repo) Acquire(ctx context.Context, scope domain.Scope, ttl time.Duration) (*domain.SyncLock, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC()
	lock := &domain.SyncLock{
		ScopeKind:  scope.Kind(),
		ScopeID:    scope.ID(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	tag, err := querier.Exec(ctx, acquireSQL,
		string(lock.ScopeKind), lock.ScopeID, lock.AcquiredAt, lock.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock %s: %w", scope, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("sync lock %s: %w", scope, domain.ErrSyncInProgress)
	}
	return lock, nil
}

// Release frees the scope's lock. Releasing an already-released lock is
// not an error: the holder may have exceeded its TTL and been reclaimed.
func (r *Repo) Release(ctx context.Context, scope domain.Scope) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := querier.Exec(ctx,
		`DELETE FROM sync_locks WHERE scope_kind = $1 AND scope_id = $2`,
		string(scope.Kind()), scope.ID(),
	)
	if err != nil {
		return fmt.Errorf("release sync lock %s: %w", scope, err)
	}
	return nil
}

// Get returns the scope's lock row, or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, scope domain.Scope) (*domain.SyncLock, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx,
		`SELECT scope_kind, scope_id, acquired_at, expires_at
		 FROM sync_locks WHERE scope_kind = $1 AND scope_id = $2`,
		string(scope.Kind()), scope.ID(),
	)

	var lock domain.SyncLock
	if err := row.Scan(&lock.ScopeKind, &lock.ScopeID, &lock.AcquiredAt, &lock.ExpiresAt); err != nil {
		return nil, postgres.MapScanError(err, "sync_lock", scope.String())
	}
	return &lock, nil
}
