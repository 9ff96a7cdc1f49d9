package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
	"github.com/heartmarshall/mycontacts-backend/internal/vcard"
)

// Stage splits an uploaded batch of concatenated vCards and stages every
// record for later reconciliation. Records that fail to decode are
// staged anyway: reconciliation reports them as item errors instead of
// silently dropping them. Returns the pending ids in arrival order; a
// repeated uid within the batch yields the same id twice (last write
// wins on content).
func (s *Service) Stage(ctx context.Context, scope domain.Scope, rawText string) ([]uuid.UUID, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	chunks := vcard.SplitBatch(rawText)
	if len(chunks) == 0 {
		return nil, domain.NewValidationError("text", "no contact records found")
	}

	now := time.Now().UTC()
	ids := make([]uuid.UUID, 0, len(chunks))
	for i, chunk := range chunks {
		p := s.buildPending(ctx, scope, chunk, "", "", now.Add(time.Duration(i)*time.Microsecond))
		p.Location = "upload:" + p.ID.String()

		stored, err := s.pending.Upsert(ctx, p)
		if err != nil {
			return ids, fmt.Errorf("stage record %d: %w", i+1, err)
		}
		ids = append(ids, stored.ID)
	}

	s.log.InfoContext(ctx, "staged upload",
		slog.String("scope", scope.String()),
		slog.Int("records", len(ids)),
	)
	return ids, nil
}

// buildPending constructs a staging row from one raw record. Decode
// failures keep the raw text and a best-effort uid so the record
// surfaces as an item error later instead of disappearing.
func (s *Service) buildPending(ctx context.Context, scope domain.Scope, raw, location, etag string, discoveredAt time.Time) *domain.PendingImport {
	p := &domain.PendingImport{
		ID:           uuid.New(),
		Scope:        scope,
		Location:     location,
		ETag:         etag,
		Raw:          raw,
		DiscoveredAt: discoveredAt,
	}

	rec, err := vcard.Decode(raw)
	if err != nil {
		p.UID = scrapeUID(raw)
		s.log.WarnContext(ctx, "staged undecodable record",
			slog.String("scope", scope.String()),
			slog.String("uid", p.UID),
			slog.String("error", err.Error()),
		)
		return p
	}

	p.UID = rec.UID
	p.DisplayName = rec.DisplayName()
	return p
}

// scrapeUID pulls the UID property out of a record that failed full
// decoding, so the staging key stays stable across re-uploads. A record
// without any UID line gets a synthetic one.
func scrapeUID(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if rest, ok := strings.CutPrefix(line, "UID:"); ok {
			if uid := strings.TrimSpace(rest); uid != "" {
				return uid
			}
		}
	}
	return "invalid:" + uuid.NewString()
}
