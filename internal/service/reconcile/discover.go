package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/carddav"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// SyncConnection runs a full pass over one CardDAV connection: list
// changes since the stored token, stage the fetched records, reconcile
// them, and persist the server's next token — all under the
// connection's exclusive lock.
func (s *Service) SyncConnection(ctx context.Context, connectionID uuid.UUID) (*RunResult, error) {
	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	scope := domain.ConnectionScope(connectionID)
	result := &RunResult{}

	err = s.withLock(ctx, scope, func(ctx context.Context) error {
		var (
			changes   []carddav.ChangedObject
			nextToken string
		)
		listErr := s.caller.call(ctx, func(ctx context.Context) error {
			var err error
			changes, nextToken, err = s.remote.ListChanges(ctx, conn, conn.SyncToken)
			return err
		})
		if listErr != nil {
			return fmt.Errorf("list remote changes: %w", listErr)
		}

		s.log.InfoContext(ctx, "remote changes listed",
			slog.String("connection", connectionID.String()),
			slog.Int("changed", len(changes)),
		)

		// A fresh discovery supersedes whatever an earlier, abandoned
		// pass left behind.
		if _, err := s.pending.DeleteByScope(ctx, scope); err != nil {
			return fmt.Errorf("clear stale pending set: %w", err)
		}

		objects, fetchErrors := s.fetchObjects(ctx, conn, changes)
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i, obj := range objects {
			p := s.buildPending(ctx, scope, obj.Text, obj.Path, obj.ETag, now.Add(time.Duration(i)*time.Microsecond))
			if _, err := s.pending.Upsert(ctx, p); err != nil {
				return fmt.Errorf("stage %s: %w", obj.Path, err)
			}
		}

		// Fetch failures surface as item errors next to the
		// reconciliation outcomes; the affected objects stay on the
		// server and return on the next pass. Counted before the
		// reconciliation loop so the reporter's completion totals
		// include them.
		for _, fe := range fetchErrors {
			result.add(OutcomeErrored)
			result.Errors = append(result.Errors, fe)
			s.reporter.OnItem(ItemOutcome{
				DisplayName: fe.DisplayName,
				Outcome:     OutcomeErrored,
				Reason:      fe.Reason,
			}, result.Totals)
		}

		if err := s.reconcileLocked(ctx, scope, conn.UserID, nil, result); err != nil {
			return err
		}

		// Advancing the token past objects that failed to fetch would
		// drop them from all future listings, so keep the old token and
		// let the next pass retry the whole window.
		if len(fetchErrors) == 0 && nextToken != "" && nextToken != conn.SyncToken {
			if err := s.conns.UpdateSyncToken(ctx, connectionID, nextToken); err != nil {
				return fmt.Errorf("persist sync token: %w", err)
			}
		}
		return nil
	})

	return result, err
}

// fetchObjects pulls the changed objects' texts in multiget batches with
// bounded concurrency. A batch that fails after retries is reported per
// path; the other batches proceed.
func (s *Service) fetchObjects(ctx context.Context, conn *domain.Connection, changes []carddav.ChangedObject) ([]carddav.ObjectText, []ItemError) {
	if len(changes) == 0 {
		return nil, nil
	}

	batchSize := s.cfg.BatchSize
	batches := make([][]string, 0, (len(changes)+batchSize-1)/batchSize)
	for start := 0; start < len(changes); start += batchSize {
		end := start + batchSize
		if end > len(changes) {
			end = len(changes)
		}
		paths := make([]string, 0, end-start)
		for _, c := range changes[start:end] {
			paths = append(paths, c.Path)
		}
		batches = append(batches, paths)
	}

	var (
		mu          sync.Mutex
		fetched     = make([][]carddav.ObjectText, len(batches))
		fetchErrors []ItemError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for i, paths := range batches {
		g.Go(func() error {
			var objects []carddav.ObjectText
			err := s.caller.call(gctx, func(ctx context.Context) error {
				var callErr error
				objects, callErr = s.remote.FetchMany(ctx, conn, paths)
				return callErr
			})
			if err != nil {
				s.log.WarnContext(gctx, "multiget batch failed",
					slog.String("connection", conn.ID.String()),
					slog.Int("batch", i),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				for _, p := range paths {
					fetchErrors = append(fetchErrors, ItemError{
						DisplayName: p,
						Reason:      fmt.Sprintf("fetch failed: %v", err),
					})
				}
				mu.Unlock()
				return nil
			}
			fetched[i] = objects
			return nil
		})
	}
	// Workers never return errors; cancellation shows up in gctx.
	_ = g.Wait()

	var objects []carddav.ObjectText
	for _, batch := range fetched {
		objects = append(objects, batch...)
	}
	return objects, fetchErrors
}
