// Package ingest implements the ingestion adapter: the boundary where
// pre-parsed catalog items from external parsers are stamped with their
// source identity, normalized and written to the cache store.
package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/source"
	"github.com/streamweld/streamweld/internal/store"
)

// Publisher broadcasts engine events to connected clients. Satisfied by
// the events hub; a nil publisher disables broadcasting.
type Publisher interface {
	Publish(event string, payload any)
}

// Service ingests parsed item batches for one source at a time.
type Service struct {
	store   *store.Service
	sources *source.Service
	events  Publisher
	logger  zerolog.Logger
}

// NewService creates a new ingestion service.
func NewService(st *store.Service, sources *source.Service, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		sources: sources,
		events:  events,
		logger:  logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes one finite batch of pre-parsed items for a source:
// stamps the source identity, derives the normalized title, sequence
// hint and franchise key, upserts the batch atomically, and soft-removes
// rows from earlier ingests that are absent from this batch. A malformed
// item is reported in the result and skipped, never fatal to the batch.
// Re-ingesting an identical batch reports Added=0.
func (s *Service) Ingest(ctx context.Context, sourceID string, items []catalog.ParsedItem) (catalog.IngestReport, error) {
	report := catalog.IngestReport{SourceID: sourceID}

	if _, err := s.sources.Get(ctx, sourceID); err != nil {
		return report, err
	}

	// Lazy purge: rows soft-removed by a previous ingest of this source
	// are hard-deleted now, on the next write cycle, not at removal time.
	if _, err := s.store.CompactRemoved(ctx, sourceID); err != nil {
		return report, err
	}

	rows := make([]catalog.Item, 0, len(items))
	keys := make([]catalog.ItemKey, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, p := range items {
		if err := p.Validate(); err != nil {
			report.Failed = append(report.Failed, catalog.ItemFailure{
				Index:      i,
				ExternalID: p.ExternalID,
				Reason:     err.Error(),
			})
			continue
		}
		if _, dup := seen[p.ExternalID]; dup {
			report.Failed = append(report.Failed, catalog.ItemFailure{
				Index:      i,
				ExternalID: p.ExternalID,
				Reason:     "duplicate externalId in batch",
			})
			continue
		}
		seen[p.ExternalID] = struct{}{}

		normalized := catalog.Normalize(p.Title)
		row := catalog.Item{
			SourceID:        sourceID,
			ExternalID:      p.ExternalID,
			ContentType:     p.ContentType,
			Title:           p.Title,
			NormalizedTitle: normalized.Base,
			SequenceHint:    normalized.SequenceHint,
			FranchiseKey:    normalized.Base,
			Year:            p.Year,
			StreamRef:       p.StreamRef,
			QualityHint:     p.QualityHint,
			Description:     p.Description,
		}
		rows = append(rows, row)
		keys = append(keys, row.Key())
	}

	added, updated, err := s.store.BulkUpsert(ctx, rows)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", sourceID, err)
	}
	report.Added = added
	report.Updated = updated

	removed, err := s.store.SoftRemoveAbsent(ctx, sourceID, keys)
	if err != nil {
		return report, fmt.Errorf("ingest %s: %w", sourceID, err)
	}
	report.Removed = removed

	s.logger.Info().
		Str("sourceId", sourceID).
		Int("added", report.Added).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Int("failed", report.FailedCount()).
		Msg("ingest batch complete")

	if s.events != nil {
		s.events.Publish("ingest.completed", report)
	}
	return report, nil
}
