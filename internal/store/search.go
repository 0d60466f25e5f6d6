package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/streamweld/streamweld/internal/catalog"
)

// replaceIndexEntry swaps the full-text row for one item inside the
// caller's transaction, so index maintenance commits atomically with
// the row write.
func replaceIndexEntry(ctx context.Context, tx *sql.Tx, it catalog.Item) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_fts WHERE source_id = ? AND external_id = ?`,
		it.SourceID, it.ExternalID); err != nil {
		return fmt.Errorf("clear index entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_fts (title, description, source_id, external_id) VALUES (?, ?, ?, ?)`,
		it.Title, it.Description, it.SourceID, it.ExternalID); err != nil {
		return fmt.Errorf("insert index entry: %w", err)
	}
	return nil
}

// ftsQuery turns free text into an FTS5 match expression: each token is
// quoted and matched as a prefix, so "matr rel" finds "The Matrix
// Reloaded". Documented matching rule; no further free-text heuristics.
func ftsQuery(query string) string {
	tokens := strings.Fields(catalog.Fold(query))
	if len(tokens) == 0 {
		return ""
	}
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = `"` + tok + `"*`
	}
	return strings.Join(parts, " ")
}

// Search runs a token-prefix full-text query over titles and
// descriptions and returns the matching non-removed items, best match
// first. An empty or unmatchable query returns no results.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]catalog.Item, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.writer.Conn().QueryContext(ctx, `
		SELECT c.source_id, c.external_id, c.content_type, c.title, c.normalized_title,
			c.sequence_hint, c.franchise_key, c.year, c.stream_ref, c.quality_hint,
			c.description, c.favorite, c.last_position_secs, c.removed, c.updated_at
		FROM catalog_fts
		JOIN catalog_items c
			ON c.source_id = catalog_fts.source_id AND c.external_id = catalog_fts.external_id
		WHERE catalog_fts MATCH ? AND c.removed = 0
		ORDER BY catalog_fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, storageErr("search", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan search row", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search", err)
	}
	return items, nil
}

// CheckIndex probes the full-text index against the catalog rows.
// Returns an error matching catalog.ErrIndexCorrupt when the index is
// unreadable or out of step with the rows.
func (s *Service) CheckIndex(ctx context.Context) error {
	conn := s.writer.Conn()

	var indexed int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_fts`).Scan(&indexed); err != nil {
		return fmt.Errorf("%w: probe failed: %v", catalog.ErrIndexCorrupt, err)
	}

	var live int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_items WHERE removed = 0`).Scan(&live); err != nil {
		return storageErr("count items", err)
	}

	if indexed != live {
		return fmt.Errorf("%w: %d indexed, %d live rows", catalog.ErrIndexCorrupt, indexed, live)
	}
	return nil
}

// RebuildIndex drops and repopulates the full-text index from the
// catalog rows in one transaction. Invoked at startup when CheckIndex
// reports corruption; logged, not surfaced as a user-facing failure.
func (s *Service) RebuildIndex(ctx context.Context) error {
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_fts`); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_fts (title, description, source_id, external_id)
			SELECT title, description, source_id, external_id
			FROM catalog_items WHERE removed = 0`); err != nil {
			return fmt.Errorf("repopulate index: %w", err)
		}
		return nil
	})
	if err != nil {
		return storageErr("rebuild index", err)
	}
	s.logger.Warn().Msg("full-text index rebuilt from catalog rows")
	return nil
}

// EnsureIndex verifies the full-text index at startup and rebuilds it
// when corrupt. Any other storage failure is surfaced unchanged.
func (s *Service) EnsureIndex(ctx context.Context) error {
	err := s.CheckIndex(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, catalog.ErrIndexCorrupt) {
		return err
	}
	s.logger.Warn().Err(err).Msg("full-text index corrupt, rebuilding")
	return s.RebuildIndex(ctx)
}
