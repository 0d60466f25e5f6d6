// Package store implements the denormalized catalog cache: item rows,
// convenience columns for hot read paths, and the full-text index kept
// in lockstep with the rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/database"
)

// Service provides catalog item storage. All mutations are serialized
// through the database writer; reads go straight to the connection.
type Service struct {
	writer *database.Writer
	logger zerolog.Logger
}

// NewService creates a new cache store service.
func NewService(writer *database.Writer, logger zerolog.Logger) *Service {
	return &Service{
		writer: writer,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// storageErr tags low-level storage failures so callers can match them
// with errors.Is(err, catalog.ErrStorageUnavailable). The store never
// retries; retry policy belongs to the caller.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", catalog.ErrStorageUnavailable, op, err)
}

const itemColumns = `source_id, external_id, content_type, title, normalized_title,
	sequence_hint, franchise_key, year, stream_ref, quality_hint, description,
	favorite, last_position_secs, removed, updated_at`

func scanItem(row interface{ Scan(...any) error }) (catalog.Item, error) {
	var it catalog.Item
	var contentType, qualityHint string
	err := row.Scan(
		&it.SourceID, &it.ExternalID, &contentType, &it.Title, &it.NormalizedTitle,
		&it.SequenceHint, &it.FranchiseKey, &it.Year, &it.StreamRef, &qualityHint,
		&it.Description, &it.Favorite, &it.LastPositionSecs, &it.Removed, &it.UpdatedAt,
	)
	if err != nil {
		return catalog.Item{}, err
	}
	it.ContentType = catalog.ContentType(contentType)
	it.QualityHint = catalog.QualityHint(qualityHint)
	return it, nil
}

// Get returns one item by its storage key, including soft-removed rows.
func (s *Service) Get(ctx context.Context, key catalog.ItemKey) (catalog.Item, error) {
	row := s.writer.Conn().QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE source_id = ? AND external_id = ?`,
		key.SourceID, key.ExternalID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Item{}, storageErr("get item", err)
	}
	return it, nil
}

// ListByType returns all non-removed items of the given content type.
func (s *Service) ListByType(ctx context.Context, contentType catalog.ContentType) ([]catalog.Item, error) {
	rows, err := s.writer.Conn().QueryContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE content_type = ? AND removed = 0 ORDER BY source_id, external_id`,
		string(contentType))
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list items", err)
	}
	return items, nil
}

// ListBySource returns all rows of one source, including soft-removed
// ones when includeRemoved is set.
func (s *Service) ListBySource(ctx context.Context, sourceID string, includeRemoved bool) ([]catalog.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE source_id = ?`
	if !includeRemoved {
		query += ` AND removed = 0`
	}
	rows, err := s.writer.Conn().QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, storageErr("list source items", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list source items", err)
	}
	return items, nil
}

// BulkUpsert writes one ingest batch in a single transaction, keeping
// the full-text index in sync with the rows: either every row and its
// index entry commits, or none do. Returns how many rows were newly
// added versus updated in place. User-owned convenience columns
// (favorite, playback position) survive updates.
func (s *Service) BulkUpsert(ctx context.Context, items []catalog.Item) (added, updated int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	err = s.writer.Do(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for i := range items {
			it := items[i]

			var exists bool
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM catalog_items WHERE source_id = ? AND external_id = ?`,
				it.SourceID, it.ExternalID).Scan(new(int))
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, sql.ErrNoRows):
				exists = false
			default:
				return fmt.Errorf("probe row: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO catalog_items (
					source_id, external_id, content_type, title, normalized_title,
					sequence_hint, franchise_key, year, stream_ref, quality_hint,
					description, removed, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
				ON CONFLICT (source_id, external_id) DO UPDATE SET
					content_type = excluded.content_type,
					title = excluded.title,
					normalized_title = excluded.normalized_title,
					sequence_hint = excluded.sequence_hint,
					franchise_key = excluded.franchise_key,
					year = excluded.year,
					stream_ref = excluded.stream_ref,
					quality_hint = excluded.quality_hint,
					description = excluded.description,
					removed = 0,
					updated_at = excluded.updated_at`,
				it.SourceID, it.ExternalID, string(it.ContentType), it.Title, it.NormalizedTitle,
				it.SequenceHint, it.FranchiseKey, it.Year, it.StreamRef, string(it.QualityHint),
				it.Description, now)
			if err != nil {
				return fmt.Errorf("upsert row: %w", err)
			}

			if err := replaceIndexEntry(ctx, tx, it); err != nil {
				return err
			}

			if exists {
				updated++
			} else {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, storageErr("bulk upsert", err)
	}
	return added, updated, nil
}

// Upsert writes a single item. Thin wrapper over BulkUpsert so the
// write discipline and index maintenance stay in one place.
func (s *Service) Upsert(ctx context.Context, item catalog.Item) error {
	_, _, err := s.BulkUpsert(ctx, []catalog.Item{item})
	return err
}

// SoftRemoveAbsent marks every non-removed row of the source whose key
// is missing from keep as removed. The rows stay queryable by key until
// the next compaction so fallback resolution in the same session is not
// disrupted. Index entries are dropped immediately: removed rows should
// not surface in search.
func (s *Service) SoftRemoveAbsent(ctx context.Context, sourceID string, keep []catalog.ItemKey) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k.ExternalID] = struct{}{}
	}

	existing, err := s.ListBySource(ctx, sourceID, false)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, it := range existing {
		if _, ok := keepSet[it.ExternalID]; !ok {
			stale = append(stale, it.ExternalID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = s.writer.Do(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, externalID := range stale {
			if _, err := tx.ExecContext(ctx,
				`UPDATE catalog_items SET removed = 1, updated_at = ? WHERE source_id = ? AND external_id = ?`,
				now, sourceID, externalID); err != nil {
				return fmt.Errorf("mark removed: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM catalog_fts WHERE source_id = ? AND external_id = ?`,
				sourceID, externalID); err != nil {
				return fmt.Errorf("drop index entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("soft remove", err)
	}
	return len(stale), nil
}

// CompactRemoved hard-deletes previously soft-removed rows of a source.
// Called on the next write cycle for that source, never synchronously
// with the removal itself.
func (s *Service) CompactRemoved(ctx context.Context, sourceID string) (int, error) {
	var purged int64
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM catalog_items WHERE source_id = ? AND removed = 1`, sourceID)
		if err != nil {
			return err
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, storageErr("compact removed", err)
	}
	return int(purged), nil
}

// PurgeOrphans hard-deletes all rows whose source no longer exists.
// Invoked from the reconciliation pass after a source removal, never by
// the removal call itself.
func (s *Service) PurgeOrphans(ctx context.Context, validSourceIDs []string) (int, error) {
	var purged int64
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		placeholders := make([]string, len(validSourceIDs))
		args := make([]any, len(validSourceIDs))
		for i, id := range validSourceIDs {
			placeholders[i] = "?"
			args[i] = id
		}

		where := "1 = 1"
		if len(validSourceIDs) > 0 {
			where = fmt.Sprintf("source_id NOT IN (%s)", strings.Join(placeholders, ", "))
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM catalog_items WHERE `+where, args...)
		if err != nil {
			return fmt.Errorf("purge rows: %w", err)
		}
		purged, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_fts WHERE `+where, args...); err != nil {
			return fmt.Errorf("purge index entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("purge orphans", err)
	}
	if purged > 0 {
		s.logger.Info().Int64("rows", purged).Msg("purged orphaned catalog rows")
	}
	return int(purged), nil
}

// SetFavorite flips the denormalized favorite flag on one row.
func (s *Service) SetFavorite(ctx context.Context, key catalog.ItemKey, favorite bool) error {
	return s.setConvenience(ctx, key, `favorite = ?`, favorite)
}

// SetLastPosition records the last watched playback position on one row.
func (s *Service) SetLastPosition(ctx context.Context, key catalog.ItemKey, seconds int) error {
	if seconds < 0 {
		return &catalog.ValidationError{Field: "lastPositionSecs", Reason: "negative"}
	}
	return s.setConvenience(ctx, key, `last_position_secs = ?`, seconds)
}

func (s *Service) setConvenience(ctx context.Context, key catalog.ItemKey, assignment string, value any) error {
	var affected int64
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE catalog_items SET `+assignment+` WHERE source_id = ? AND external_id = ?`,
			value, key.SourceID, key.ExternalID)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return storageErr("update convenience column", err)
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
