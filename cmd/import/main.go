// Command import ingests a .vcf file into a user's contact database in
// one shot: the file's records are staged, then reconciled against the
// existing contacts (new records imported, known ones updated, deleted
// ones restored). Progress and a final summary are printed to stdout.
//
// Flags:
//
//	-user  uuid of the owning user (required)
//	-file  path to the .vcf file (required)
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/connection"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/contact"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/mapping"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/pending"
	"github.com/heartmarshall/mycontacts-backend/internal/adapter/postgres/synclock"
	"github.com/heartmarshall/mycontacts-backend/internal/app"
	"github.com/heartmarshall/mycontacts-backend/internal/config"
	"github.com/heartmarshall/mycontacts-backend/internal/domain"
	"github.com/heartmarshall/mycontacts-backend/internal/service/reconcile"
)

func main() {
	userFlag := flag.String("user", "", "uuid of the owning user")
	fileFlag := flag.String("file", "", "path to the .vcf file")
	flag.Parse()

	if *userFlag == "" || *fileFlag == "" {
		flag.Usage()
		os.Exit(1)
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("parse -user: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	text, err := os.ReadFile(*fileFlag)
	if err != nil {
		logger.Error("read vcf file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	svc := reconcile.NewService(
		logger, cfg.Sync, postgres.NewTxManager(pool),
		pending.New(pool), contact.New(pool), mapping.New(pool),
		synclock.New(pool), connection.New(pool), nil,
		consoleReporter{},
	)

	scope := domain.UploadScope(userID)

	ids, err := svc.Stage(ctx, scope, string(text))
	if err != nil {
		logger.Error("stage upload", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("staged %d records from %s\n", len(ids), *fileFlag)

	result, err := svc.Reconcile(ctx, scope, ids)
	if err != nil {
		logger.Error("reconcile failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, e := range result.Errors {
		fmt.Printf("  ! %s (%s): %s\n", e.DisplayName, e.UID, e.Reason)
	}
	if result.Errored > 0 {
		os.Exit(1)
	}
}

// consoleReporter prints one line per processed record and the final
// totals to stdout.
type consoleReporter struct{}

func (consoleReporter) OnItem(item reconcile.ItemOutcome, totals reconcile.Totals) {
	name := item.DisplayName
	if name == "" {
		name = item.UID
	}
	fmt.Printf("  [%d] %-8s %s\n", totals.Processed(), item.Outcome, name)
}

func (consoleReporter) OnComplete(totals reconcile.Totals) {
	fmt.Printf("done: %d imported, %d updated, %d restored, %d skipped, %d errored\n",
		totals.Imported, totals.Updated, totals.Restored, totals.Skipped, totals.Errored)
}
