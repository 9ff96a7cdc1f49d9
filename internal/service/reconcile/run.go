package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
	"github.com/heartmarshall/mycontacts-backend/internal/vcard"
)

// Reconcile drains staged records for the scope and applies each against
// the local store under the scope's exclusive lock. ids selects specific
// pending entries in arrival order; nil means all pending for the scope.
// Item failures are isolated into the result; lock contention, a failed
// pending read, and store errors abort the run, returning the partial
// result alongside the error.
func (s *Service) Reconcile(ctx context.Context, scope domain.Scope, ids []uuid.UUID) (*RunResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	userID, err := s.scopeUser(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	err = s.withLock(ctx, scope, func(ctx context.Context) error {
		return s.reconcileLocked(ctx, scope, userID, ids, result)
	})
	return result, err
}

// scopeUser resolves the user owning the scope's contacts.
func (s *Service) scopeUser(ctx context.Context, scope domain.Scope) (uuid.UUID, error) {
	if userID, ok := scope.UserID(); ok {
		return userID, nil
	}
	connID, _ := scope.ConnectionID()
	conn, err := s.conns.GetByID(ctx, connID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve scope user: %w", err)
	}
	return conn.UserID, nil
}

// reconcileLocked is the engine loop. The caller must hold the scope's
// lock. Progress accumulates into result so an aborting error still
// leaves the partial counts visible.
func (s *Service) reconcileLocked(ctx context.Context, scope domain.Scope, userID uuid.UUID, ids []uuid.UUID, result *RunResult) error {
	items, err := s.loadItems(ctx, scope, ids)
	if err != nil {
		return fmt.Errorf("read pending set: %w", err)
	}
	if len(items) == 0 {
		s.reporter.OnComplete(result.Totals)
		return nil
	}

	run, err := s.buildRunState(ctx, scope, userID, items)
	if err != nil {
		return err
	}

	for i := range items {
		// Cancellation is honored between items, never mid-item.
		if err := ctx.Err(); err != nil {
			s.log.WarnContext(ctx, "run cancelled",
				slog.String("scope", scope.String()),
				slog.Int("processed", result.Processed()),
			)
			return err
		}

		outcome, err := s.applyItem(ctx, run, &items[i], run.superseded[i])
		if err != nil {
			// Store failure: abort remaining items, keep partial counts.
			return err
		}

		result.add(outcome.Outcome)
		if outcome.Outcome == OutcomeErrored {
			result.Errors = append(result.Errors, ItemError{
				UID:         outcome.UID,
				DisplayName: outcome.DisplayName,
				Reason:      outcome.Reason,
			})
		}
		s.reporter.OnItem(outcome, result.Totals)
	}

	s.log.InfoContext(ctx, "reconciliation complete",
		slog.String("scope", scope.String()),
		slog.Int("imported", result.Imported),
		slog.Int("updated", result.Updated),
		slog.Int("restored", result.Restored),
		slog.Int("skipped", result.Skipped),
		slog.Int("errored", result.Errored),
	)
	s.reporter.OnComplete(result.Totals)
	return nil
}

// loadItems reads the batch in arrival order. An explicit ids list is
// honored with its multiplicity: a repeated id means the same staged
// record was superseded within one upload, and the earlier occurrence
// must still be accounted for as skipped.
func (s *Service) loadItems(ctx context.Context, scope domain.Scope, ids []uuid.UUID) ([]domain.PendingImport, error) {
	if ids == nil {
		return s.pending.AllByScope(ctx, scope)
	}

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	rows, err := s.pending.GetByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.PendingImport, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	items := make([]domain.PendingImport, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			items = append(items, row)
		}
	}
	return items, nil
}

// runState carries the per-run indexes the fold threads through the
// batch: local uid snapshots that grow as items are applied, the
// superseded precount, and the mapping index for hash gating.
type runState struct {
	scope    domain.Scope
	userID   uuid.UUID
	active   map[string]uuid.UUID
	deleted  map[string]uuid.UUID
	mappings map[string]domain.ContactMapping
	// superseded is parallel to the batch: true marks occurrences
	// shadowed by a later duplicate uid.
	superseded []bool
}

func (s *Service) buildRunState(ctx context.Context, scope domain.Scope, userID uuid.UUID, items []domain.PendingImport) (*runState, error) {
	uids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.UID] {
			seen[item.UID] = true
			uids = append(uids, item.UID)
		}
	}

	active, err := s.contacts.FindActiveByUIDs(ctx, userID, uids)
	if err != nil {
		return nil, fmt.Errorf("index active contacts: %w", err)
	}
	deleted, err := s.contacts.FindDeletedByUIDs(ctx, userID, uids)
	if err != nil {
		return nil, fmt.Errorf("index deleted contacts: %w", err)
	}

	run := &runState{
		scope:      scope,
		userID:     userID,
		active:     active,
		deleted:    deleted,
		superseded: supersededSet(items),
	}

	if connID, ok := scope.ConnectionID(); ok {
		run.mappings, err = s.mappings.ListByConnection(ctx, connID)
		if err != nil {
			return nil, fmt.Errorf("index contact mappings: %w", err)
		}
	}
	return run, nil
}

// applyItem processes one staged record. The returned error is fatal to
// the run; per-item failures come back as an errored outcome instead.
func (s *Service) applyItem(ctx context.Context, run *runState, item *domain.PendingImport, superseded bool) (ItemOutcome, error) {
	rec, decodeErr := vcard.Decode(item.Raw)
	if decodeErr != nil {
		// Clear staging anyway so the broken record does not reappear
		// on every future pass.
		if _, err := s.pending.DeleteByIDs(ctx, []uuid.UUID{item.ID}); err != nil {
			return ItemOutcome{}, fmt.Errorf("clear staged record %s: %w", item.ID, err)
		}
		return ItemOutcome{
			UID:         item.UID,
			DisplayName: item.DisplayName,
			Outcome:     OutcomeErrored,
			Reason:      decodeErr.Error(),
		}, nil
	}

	cls := Classify(item.UID, superseded, run.active, run.deleted)

	var outcome Outcome
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		outcome, txErr = s.applyClassified(txCtx, run, item, rec, cls)
		if txErr != nil {
			return txErr
		}
		if _, txErr = s.pending.DeleteByIDs(txCtx, []uuid.UUID{item.ID}); txErr != nil {
			return fmt.Errorf("clear staged record %s: %w", item.ID, txErr)
		}
		return nil
	})
	if err != nil {
		return ItemOutcome{}, fmt.Errorf("apply record %q: %w", item.UID, err)
	}

	return ItemOutcome{UID: rec.UID, DisplayName: rec.DisplayName(), Outcome: outcome}, nil
}

// applyClassified mutates the local store per the classification and
// keeps the run's growing indexes current, so a later item in the same
// batch sees the records applied before it.
func (s *Service) applyClassified(ctx context.Context, run *runState, item *domain.PendingImport, rec *domain.ContactRecord, cls Classification) (Outcome, error) {
	switch cls.Kind {
	case ClassDuplicateInBatch:
		return OutcomeSkipped, nil

	case ClassNew:
		created, err := s.contacts.CreateFromRecord(ctx, run.userID, rec)
		if err != nil {
			return "", fmt.Errorf("create contact: %w", err)
		}
		run.active[rec.UID] = created.ID
		if err := s.writeMapping(ctx, run, item, rec, created.ID); err != nil {
			return "", err
		}
		return OutcomeImported, nil

	case ClassMatchesActive:
		hash := vcard.ContentHash(rec)
		if m, ok := run.mappings[item.UID]; ok && m.ContentHash == hash {
			// Content unchanged since the last sync: refresh the
			// mapping's location/version only.
			if err := s.writeMapping(ctx, run, item, rec, cls.LocalID); err != nil {
				return "", err
			}
			return OutcomeSkipped, nil
		}
		if _, err := s.contacts.UpdateFromRecord(ctx, cls.LocalID, rec); err != nil {
			return "", fmt.Errorf("update contact: %w", err)
		}
		if err := s.writeMapping(ctx, run, item, rec, cls.LocalID); err != nil {
			return "", err
		}
		return OutcomeUpdated, nil

	case ClassMatchesDeleted:
		if _, err := s.contacts.RestoreFromRecord(ctx, cls.LocalID, rec); err != nil {
			return "", fmt.Errorf("restore contact: %w", err)
		}
		run.active[rec.UID] = cls.LocalID
		delete(run.deleted, rec.UID)
		if err := s.writeMapping(ctx, run, item, rec, cls.LocalID); err != nil {
			return "", err
		}
		return OutcomeRestored, nil

	default:
		return "", fmt.Errorf("unknown classification %d for uid %q", cls.Kind, item.UID)
	}
}

// writeMapping records the durable (connection, uid) ↔ contact link.
// Upload scopes have no remote counterpart to reconcile against later,
// so no mapping is written for them.
func (s *Service) writeMapping(ctx context.Context, run *runState, item *domain.PendingImport, rec *domain.ContactRecord, contactID uuid.UUID) error {
	connID, ok := run.scope.ConnectionID()
	if !ok {
		return nil
	}

	m := domain.ContactMapping{
		ConnectionID: connID,
		UID:          rec.UID,
		ContactID:    contactID,
		Location:     item.Location,
		ETag:         item.ETag,
		ContentHash:  vcard.ContentHash(rec),
		SyncedAt:     time.Now().UTC(),
	}
	if err := s.mappings.Upsert(ctx, &m); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	run.mappings[rec.UID] = m
	return nil
}
