package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/carddav"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

func TestSyncConnection_FullPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	// A row abandoned by an earlier pass must not leak into this run.
	staleScope := domain.ConnectionScope(f.conn.ID)
	stageConnection(t, f, staleScope, "stale", "Stale Ghost", "/p/stale.vcf", `"e0"`)

	changes := []carddav.ChangedObject{
		{Path: "/addressbooks/u/default/u1.vcf", ETag: `"e1"`},
		{Path: "/addressbooks/u/default/u2.vcf", ETag: `"e2"`},
		{Path: "/addressbooks/u/default/u3.vcf", ETag: `"e3"`},
	}
	f.remote.ListChangesFunc = func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
		if sinceToken != "token-1" {
			t.Errorf("listed since %q, want the stored token", sinceToken)
		}
		return changes, "token-2", nil
	}
	f.remote.FetchManyFunc = func(ctx context.Context, conn *domain.Connection, paths []string) ([]carddav.ObjectText, error) {
		out := make([]carddav.ObjectText, 0, len(paths))
		for _, p := range paths {
			uid := strings.TrimSuffix(p[strings.LastIndex(p, "/")+1:], ".vcf")
			out = append(out, carddav.ObjectText{Path: p, ETag: `"etag-` + uid + `"`, Text: vcf(uid, "Name "+uid)})
		}
		return out, nil
	}

	result, err := f.svc.SyncConnection(ctx, f.conn.ID)
	if err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}

	want := Totals{Imported: 3}
	if result.Totals != want {
		t.Errorf("totals = %+v, want %+v", result.Totals, want)
	}

	// BatchSize 2 over 3 changes: two multiget calls.
	if calls := f.remote.FetchManyCalls(); len(calls) != 2 {
		t.Errorf("multiget calls = %d, want 2", len(calls))
	}

	if tokens := f.conns.UpdateSyncTokenCalls(); len(tokens) != 1 || tokens[0] != "token-2" {
		t.Errorf("token updates = %v, want [token-2]", tokens)
	}

	for _, c := range f.activeContacts() {
		if c.UID == "stale" {
			t.Error("stale pending row from the previous pass was applied")
		}
	}
	if f.pendingCount() != 0 {
		t.Errorf("staging should be drained, %d rows left", f.pendingCount())
	}

	// Mappings carry the fetched object's path and etag.
	mappings := f.mappings.UpsertCalls()
	if len(mappings) != 3 {
		t.Fatalf("mapping upserts = %d, want 3", len(mappings))
	}
	byUID := make(map[string]domain.ContactMapping, len(mappings))
	for _, m := range mappings {
		byUID[m.UID] = m
	}
	m1 := byUID["u1"]
	if m1.Location != "/addressbooks/u/default/u1.vcf" || m1.ETag != `"etag-u1"` {
		t.Errorf("u1 mapping location/etag = %q/%q", m1.Location, m1.ETag)
	}
}

func TestSyncConnection_NoChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.remote.ListChangesFunc = func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
		return nil, "token-1", nil
	}

	result, err := f.svc.SyncConnection(context.Background(), f.conn.ID)
	if err != nil {
		t.Fatalf("SyncConnection: %v", err)
	}
	if result.Totals != (Totals{}) {
		t.Errorf("totals = %+v, want zero", result.Totals)
	}
	if len(f.remote.FetchManyCalls()) != 0 {
		t.Error("nothing changed, nothing should be fetched")
	}
	if len(f.conns.UpdateSyncTokenCalls()) != 0 {
		t.Error("an unchanged token must not be rewritten")
	}
}

func TestSyncConnection_LockHeld(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	scope := domain.ConnectionScope(f.conn.ID)

	f.mu.Lock()
	f.locked[scope.String()] = true
	f.mu.Unlock()
	f.remote.ListChangesFunc = func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
		t.Error("the remote must not be contacted while the lock is held elsewhere")
		return nil, "", nil
	}

	_, err := f.svc.SyncConnection(context.Background(), f.conn.ID)
	if !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
}

func TestSyncConnection_ListFailureAbortsRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	remoteErr := errors.New("bad gateway")
	f.remote.ListChangesFunc = func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
		return nil, "", remoteErr
	}

	_, err := f.svc.SyncConnection(context.Background(), f.conn.ID)
	if !errors.Is(err, remoteErr) {
		t.Fatalf("expected the listing failure to surface, got %v", err)
	}
	if len(f.conns.UpdateSyncTokenCalls()) != 0 {
		t.Error("a failed run must not move the sync token")
	}
	if len(f.locks.ReleaseCalls()) != 1 {
		t.Error("a failed run must still release its lock")
	}
}

func TestSyncConnection_FetchFailureReportedPerObject(t *testing.T) {
	t.Parallel()
	reporter := &testReporter{}
	f := newFixture(t, reporter)

	f.remote.ListChangesFunc = func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
		return []carddav.ChangedObject{
			{Path: "/p/u1.vcf", ETag: `"e1"`},
			{Path: "/p/u2.vcf", ETag: `"e2"`},
		}, "token-2", nil
	}
	f.remote.FetchManyFunc = func(ctx context.Context, conn *domain.Connection, paths []string) ([]carddav.ObjectText, error) {
		return nil, errors.New("upstream timeout")
	}

	result, err := f.svc.SyncConnection(context.Background(), f.conn.ID)
	if err != nil {
		t.Fatalf("a fetch failure must not abort the run: %v", err)
	}

	want := Totals{Errored: 2}
	if result.Totals != want {
		t.Errorf("totals = %+v, want %+v", result.Totals, want)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %+v, want one per unfetched object", result.Errors)
	}
	if result.Errors[0].DisplayName != "/p/u1.vcf" || !strings.Contains(result.Errors[0].Reason, "fetch failed") {
		t.Errorf("error[0] = %+v", result.Errors[0])
	}

	// The token stays put so the unfetched objects are listed again.
	if len(f.conns.UpdateSyncTokenCalls()) != 0 {
		t.Error("token must not advance past objects that were never fetched")
	}

	// The reporter sees the fetch failures as items, and the final
	// totals it receives include them.
	if len(reporter.items) != 2 {
		t.Fatalf("OnItem calls = %d, want one per unfetched object", len(reporter.items))
	}
	if reporter.items[0].Outcome != OutcomeErrored {
		t.Errorf("reported outcome = %q, want errored", reporter.items[0].Outcome)
	}
	if len(reporter.complete) != 1 || reporter.complete[0].Errored != 2 {
		t.Errorf("OnComplete totals = %+v, want Errored:2", reporter.complete)
	}
}
