// Package reconcile implements the mirroring engine: staged external
// contact records are classified against the local store and applied as
// create/update/restore/skip, one connection-exclusive run at a time.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/carddav"
	"github.com/heartmarshall/mycontacts-backend/internal/config"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type pendingRepo interface {
	Upsert(ctx context.Context, p *domain.PendingImport) (*domain.PendingImport, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.PendingImport, error)
	AllByScope(ctx context.Context, scope domain.Scope) ([]domain.PendingImport, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
	DeleteByScope(ctx context.Context, scope domain.Scope) (int, error)
}

type contactRepo interface {
	FindActiveByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error)
	FindDeletedByUIDs(ctx context.Context, userID uuid.UUID, uids []string) (map[string]uuid.UUID, error)
	CreateFromRecord(ctx context.Context, userID uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)
	UpdateFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)
	RestoreFromRecord(ctx context.Context, id uuid.UUID, rec *domain.ContactRecord) (*domain.Contact, error)
}

type mappingRepo interface {
	Upsert(ctx context.Context, m *domain.ContactMapping) error
	ListByConnection(ctx context.Context, connectionID uuid.UUID) (map[string]domain.ContactMapping, error)
}

type lockRepo interface {
	Acquire(ctx context.Context, scope domain.Scope, ttl time.Duration) (*domain.SyncLock, error)
	Release(ctx context.Context, scope domain.Scope) error
}

type connectionRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error)
	List(ctx context.Context) ([]domain.Connection, error)
	UpdateSyncToken(ctx context.Context, id uuid.UUID, token string) error
}

type remoteClient interface {
	ListChanges(ctx context.Context, conn *domain.Connection, sinceToken string) ([]carddav.ChangedObject, string, error)
	FetchMany(ctx context.Context, conn *domain.Connection, paths []string) ([]carddav.ObjectText, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service reconciles staged external contact records against the local
// store and runs full sync passes over CardDAV connections.
type Service struct {
	log      *slog.Logger
	cfg      config.SyncConfig
	tx       txManager
	pending  pendingRepo
	contacts contactRepo
	mappings mappingRepo
	locks    lockRepo
	conns    connectionRepo
	remote   remoteClient
	reporter ProgressReporter
	caller   *remoteCaller
}

// NewService creates a new reconciliation service. A nil reporter is
// replaced with NopReporter.
func NewService(
	log *slog.Logger,
	cfg config.SyncConfig,
	tx txManager,
	pending pendingRepo,
	contacts contactRepo,
	mappings mappingRepo,
	locks lockRepo,
	conns connectionRepo,
	remote remoteClient,
	reporter ProgressReporter,
) *Service {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Service{
		log:      log.With("service", "reconcile"),
		cfg:      cfg,
		tx:       tx,
		pending:  pending,
		contacts: contacts,
		mappings: mappings,
		locks:    locks,
		conns:    conns,
		remote:   remote,
		reporter: reporter,
		caller: &remoteCaller{
			limiter:    rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
			timeout:    cfg.CallTimeout,
			maxRetries: cfg.MaxRetries,
		},
	}
}
