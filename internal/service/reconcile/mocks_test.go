package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/carddav"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// Hand-written func-field mocks for the service's private interfaces.
// A method with a nil func panics, so every test declares exactly the
// collaborator behavior it expects.

// ---------------------------------------------------------------------------
// pendingRepo
// ---------------------------------------------------------------------------

var _ pendingRepo = &pendingRepoMock{}

type pendingRepoMock struct {
	UpsertFunc        func(ctx context.Context, p *domain.PendingImport) (*domain.PendingImport, error)
	GetByIDsFunc      func(ctx context.Context, ids []uuid.UUID) ([]domain.PendingImport, error)
	AllByScopeFunc    func(ctx context.Context, scope domain.Scope) ([]domain.PendingImport, error)
	DeleteByIDsFunc   func(ctx context.Context, ids []uuid.UUID) (int, error)
	DeleteByScopeFunc func(ctx context.Context, scope domain.Scope) (int, error)

	mu               sync.Mutex
	upsertCalls      []*domain.PendingImport
	deleteByIDsCalls [][]uuid.UUID
	deleteScopeCalls []domain.Scope
}

func (m *pendingRepoMock) Upsert(ctx context.Context, p *domain.PendingImport) (*domain.PendingImport, error) {
	m.mu.Lock()
	m.upsertCalls = append(m.upsertCalls, p)
	m.mu.Unlock()
	return m.UpsertFunc(ctx, p)
}

func (m *pendingRepoMock) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.PendingImport, error) {
	return m.GetByIDsFunc(ctx, ids)
}

func (m *pendingRepoMock) AllByScope(ctx context.Context, scope domain.Scope) ([]domain.PendingImport, error) {
	return m.AllByScopeFunc(ctx, scope)
}

func (m *pendingRepoMock) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	m.deleteByIDsCalls = append(m.deleteByIDsCalls, ids)
	m.mu.Unlock()
	return m.DeleteByIDsFunc(ctx, ids)
}

func (m *pendingRepoMock) DeleteByScope(ctx context.Context, scope domain.Scope) (int, error) {
	m.mu.Lock()
	m.deleteScopeCalls = append(m.deleteScopeCalls, scope)
	m.mu.Unlock()
	return m.DeleteByScopeFunc(ctx, scope)
}

func (m *pendingRepoMock) UpsertCalls() []*domain.PendingImport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

func (m *pendingRepoMock) DeleteByIDsCalls() [][]uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteByIDsCalls
}

// ---------------------------------------------------------------------------
// contactRepo
// ---------------------------------------------------------------------------

var _ contactRepo = &contactRepoMock{}

type contactRepoMock struct {
	FindActiveByUIDsFunc  func(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error)
	FindDeletedByUIDsFunc func(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error)
	CreateFromRecordFunc  func(ctx context.Context, userID uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)
	UpdateFromRecordFunc  func(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)
	RestoreFromRecordFunc func(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)

	mu           sync.Mutex
	createCalls  []*domain.ContactRecord
	updateCalls  []uuid.UUID
	restoreCalls []uuid.UUID
}

func (m *contactRepoMock) FindActiveByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error) {
	return m.FindActiveByUIDsFunc(ctx, userID, uids)
}

func (m *contactRepoMock) FindDeletedByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error) {
	return m.FindDeletedByUIDsFunc(ctx, userID, uids)
}

func (m *contactRepoMock) CreateFromRecord(ctx context.Context, userID uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, rec)
	m.mu.Unlock()
	return m.CreateFromRecordFunc(ctx, userID, rec)
}

func (m *contactRepoMock) UpdateFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	m.mu.Lock()
	m.updateCalls = append(m.updateCalls, id)
	m.mu.Unlock()
	return m.UpdateFromRecordFunc(ctx, id, rec)
}

func (m *contactRepoMock) RestoreFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error) {
	m.mu.Lock()
	m.restoreCalls = append(m.restoreCalls, id)
	m.mu.Unlock()
	return m.RestoreFromRecordFunc(ctx, id, rec)
}

func (m *contactRepoMock) CreateCalls() []*domain.ContactRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

func (m *contactRepoMock) UpdateCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

func (m *contactRepoMock) RestoreCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoreCalls
}

// ---------------------------------------------------------------------------
// mappingRepo
// ---------------------------------------------------------------------------

var _ mappingRepo = &mappingRepoMock{}

type mappingRepoMock struct {
	UpsertFunc           func(ctx context.Context, m *domain.ContactMapping) error
	ListByConnectionFunc func(ctx context.Context, connectionID uuid.UUID) (map[string]domain.ContactMapping, error)

	mu          sync.Mutex
	upsertCalls []domain.ContactMapping
}

func (m *mappingRepoMock) Upsert(ctx context.Context, mp *domain.ContactMapping) error {
	m.mu.Lock()
	m.upsertCalls = append(m.upsertCalls, *mp)
	m.mu.Unlock()
	return m.UpsertFunc(ctx, mp)
}

func (m *mappingRepoMock) ListByConnection(ctx context.Context, connectionID uuid.UUID) (map[string]domain.ContactMapping, error) {
	return m.ListByConnectionFunc(ctx, connectionID)
}

func (m *mappingRepoMock) UpsertCalls() []domain.ContactMapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

// ---------------------------------------------------------------------------
// lockRepo
// ---------------------------------------------------------------------------

var _ lockRepo = &lockRepoMock{}

type lockRepoMock struct {
	AcquireFunc func(ctx context.Context, scope domain.Scope, ttl time.Duration) (*domain.SyncLock, error)
	ReleaseFunc func(ctx context.Context, scope domain.Scope) error

	mu           sync.Mutex
	acquireCalls []domain.Scope
	releaseCalls []domain.Scope
}

func (m *lockRepoMock) Acquire(ctx context.Context, scope domain.Scope, ttl time.Duration) (*domain.SyncLock, error) {
	m.mu.Lock()
	m.acquireCalls = append(m.acquireCalls, scope)
	m.mu.Unlock()
	return m.AcquireFunc(ctx, scope, ttl)
}

func (m *lockRepoMock) Release(ctx context.Context, scope domain.Scope) error {
	m.mu.Lock()
	m.releaseCalls = append(m.releaseCalls, scope)
	m.mu.Unlock()
	return m.ReleaseFunc(ctx, scope)
}

func (m *lockRepoMock) AcquireCalls() []domain.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireCalls
}

func (m *lockRepoMock) ReleaseCalls() []domain.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseCalls
}

// ---------------------------------------------------------------------------
// connectionRepo
// ---------------------------------------------------------------------------

var _ connectionRepo = &connectionRepoMock{}

type connectionRepoMock struct {
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*domain.Connection, error)
	ListFunc            func(ctx context.Context) ([]domain.Connection, error)
	UpdateSyncTokenFunc func(ctx context.Context, id uuid.UUID, token string) error

	mu         sync.Mutex
	tokenCalls []string
}

func (m *connectionRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *connectionRepoMock) List(ctx context.Context) ([]domain.Connection, error) {
	return m.ListFunc(ctx)
}

func (m *connectionRepoMock) UpdateSyncToken(ctx context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	m.tokenCalls = append(m.tokenCalls, token)
	m.mu.Unlock()
	return m.UpdateSyncTokenFunc(ctx, id, token)
}

func (m *connectionRepoMock) UpdateSyncTokenCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenCalls
}

// ---------------------------------------------------------------------------
// remoteClient
// ---------------------------------------------------------------------------

var _ remoteClient = &remoteClientMock{}

type remoteClientMock struct {
	ListChangesFunc func(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error)
	FetchManyFunc   func(ctx context.Context, conn *domain.Connection, paths []string) ([]carddav.ObjectText, error)

	mu         sync.Mutex
	fetchCalls [][]string
}

func (m *remoteClientMock) ListChanges(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error) {
	return m.ListChangesFunc(ctx, conn, sinceToken)
}

func (m *remoteClientMock) FetchMany(ctx context.Context, conn *domain.Connection, paths []string) ([]carddav.ObjectText, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, paths)
	m.mu.Unlock()
	return m.FetchManyFunc(ctx, conn, paths)
}

func (m *remoteClientMock) FetchManyCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// ---------------------------------------------------------------------------
// txManager
// ---------------------------------------------------------------------------

var _ txManager = &txManagerMock{}

// txManagerMock runs the function directly, without a transaction.
type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
