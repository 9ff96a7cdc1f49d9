// Command sync runs a reconciliation pass over CardDAV connections: one
// connection with -connection, or every configured connection without it.
// It is intended to be invoked by an external cron job.
//
// Flags:
//
//	-connection  uuid of a single connection to sync (optional)
//
// Exit codes: 0 = success, 1 = at least one connection failed.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/carddav"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/connection"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/contact"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/mapping"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/pending"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/synclock"
	"github.com/heartmarshall/mycontacts-backend/internal/app"
	"github.com/heartmarshall/mycontacts-backend/internal/config"
	"github.com/heartmarshall/mycontacts-backend/internal/service/reconcile"
)

func main() {
	connectionFlag := flag.String("connection", "", "uuid of a single connection to sync")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("sync starting", slog.String("version", app.BuildVersion()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	connRepo := connection.New(pool)
	svc := reconcile.NewService(
		logger, cfg.Sync, postgres.NewTxManager(pool),
		pending.New(pool), contact.New(pool), mapping.New(pool),
		synclock.New(pool), connRepo, carddav.New(logger),
		nil,
	)

	ids, err := targetConnections(ctx, connRepo, *connectionFlag)
	if err != nil {
		logger.Error("resolve connections", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(ids) == 0 {
		logger.Info("no connections configured, nothing to do")
		return
	}

	failed := 0
	for _, id := range ids {
		result, err := svc.SyncConnection(ctx, id)
		if err != nil {
			failed++
			logger.Error("sync failed",
				slog.String("connection", id.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Info("sync completed",
			slog.String("connection", id.String()),
			slog.Int("imported", result.Imported),
			slog.Int("updated", result.Updated),
			slog.Int("restored", result.Restored),
			slog.Int("skipped", result.Skipped),
			slog.Int("errored", result.Errored),
		)
	}

	if failed > 0 {
		logger.Error("some connections failed", slog.Int("failed", failed), slog.Int("total", len(ids)))
		os.Exit(1)
	}
}

// targetConnections resolves the ids to sync: the single flagged
// connection, or all configured ones.
func targetConnections(ctx context.Context, repo *connection.Repo, flagValue string) ([]uuid.UUID, error) {
	if flagValue != "" {
		id, err := uuid.Parse(flagValue)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{id}, nil
	}

	conns, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
