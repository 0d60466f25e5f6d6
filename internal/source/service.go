package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/database"
)

// Service provides source registry management. Mutations go through the
// shared database writer; list and get are plain reads.
type Service struct {
	writer *database.Writer
	logger zerolog.Logger
}

// NewService creates a new source registry service.
func NewService(writer *database.Writer, logger zerolog.Logger) *Service {
	return &Service{
		writer: writer,
		logger: logger.With().Str("component", "sources").Logger(),
	}
}

const sourceColumns = `id, name, kind, endpoint, credentials_ref, priority, active, position, last_error, last_synced_at, created_at`

func scanSource(row interface{ Scan(...any) error }) (Source, error) {
	var s Source
	var kind string
	var lastError sql.NullString
	var lastSynced sql.NullTime
	err := row.Scan(&s.ID, &s.Name, &kind, &s.Endpoint, &s.CredentialsRef,
		&s.Priority, &s.Active, &s.Position, &lastError, &lastSynced, &s.CreatedAt)
	if err != nil {
		return Source{}, err
	}
	s.Kind = Kind(kind)
	if lastError.Valid {
		s.LastError = lastError.String
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		s.LastSyncedAt = &t
	}
	return s, nil
}

// Add registers a new source and returns it with its generated ID.
// Creation order is recorded as Position and used for stable priority
// tie-breaking.
func (s *Service) Add(ctx context.Context, input AddInput) (Source, error) {
	if input.Name == "" {
		return Source{}, &catalog.ValidationError{Field: "name", Reason: "empty"}
	}
	if !input.Kind.Valid() {
		return Source{}, &catalog.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", string(input.Kind))}
	}
	if input.Endpoint == "" {
		return Source{}, &catalog.ValidationError{Field: "endpoint", Reason: "empty"}
	}

	src := Source{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Kind:           input.Kind,
		Endpoint:       input.Endpoint,
		CredentialsRef: input.CredentialsRef,
		Priority:       input.Priority,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM sources`).Scan(&src.Position); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sources (id, name, kind, endpoint, credentials_ref, priority, active, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			src.ID, src.Name, string(src.Kind), src.Endpoint, src.CredentialsRef,
			src.Priority, src.Position, src.CreatedAt)
		return err
	})
	if err != nil {
		return Source{}, fmt.Errorf("add source: %w", err)
	}

	s.logger.Info().Str("id", src.ID).Str("name", src.Name).Str("kind", string(src.Kind)).Msg("source added")
	return src, nil
}

// Get returns one source by ID.
func (s *Service) Get(ctx context.Context, id string) (Source, error) {
	row := s.writer.Conn().QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, catalog.ErrSourceNotFound
	}
	if err != nil {
		return Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// List returns all sources ordered by priority, ties broken by creation
// order. Deactivated sources are included; callers filter as needed.
func (s *Service) List(ctx context.Context) ([]Source, error) {
	rows, err := s.writer.Conn().QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY priority ASC, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Update applies the provided field changes and returns the result.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Source, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return Source{}, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return Source{}, &catalog.ValidationError{Field: "name", Reason: "empty"}
		}
		src.Name = *input.Name
	}
	if input.Endpoint != nil {
		if *input.Endpoint == "" {
			return Source{}, &catalog.ValidationError{Field: "endpoint", Reason: "empty"}
		}
		src.Endpoint = *input.Endpoint
	}
	if input.CredentialsRef != nil {
		src.CredentialsRef = *input.CredentialsRef
	}
	if input.Priority != nil {
		src.Priority = *input.Priority
	}

	err = s.writer.Do(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE sources SET name = ?, endpoint = ?, credentials_ref = ?, priority = ?
			WHERE id = ?`,
			src.Name, src.Endpoint, src.CredentialsRef, src.Priority, id)
		return err
	})
	if err != nil {
		return Source{}, fmt.Errorf("update source: %w", err)
	}
	return src, nil
}

// Remove deletes a source from the registry. Its catalog rows become
// orphans and are purged on the next reconciliation pass, never here:
// removal must not block on catalog storage I/O, and in-flight fallback
// resolution keeps seeing the rows until then.
func (s *Service) Remove(ctx context.Context, id string) error {
	var affected int64
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	if affected == 0 {
		return catalog.ErrSourceNotFound
	}
	s.logger.Info().Str("id", id).Msg("source removed, rows orphaned until next reconciliation pass")
	return nil
}

// SetActive flips a source's active state. Deactivation soft-excludes
// the source's items from grouping without deleting any cached rows.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	var affected int64
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sources SET active = ? WHERE id = ?`, active, id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if affected == 0 {
		return catalog.ErrSourceNotFound
	}
	return nil
}

// Reorder rewrites priorities to match the given order. orderedIDs must
// be an exact permutation of the registered source IDs; anything else
// fails with catalog.ErrInvalidOrder and changes nothing.
func (s *Service) Reorder(ctx context.Context, orderedIDs []string) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(existing))
	for _, src := range existing {
		known[src.ID] = struct{}{}
	}
	if len(orderedIDs) != len(existing) {
		return fmt.Errorf("%w: got %d ids, registry has %d", catalog.ErrInvalidOrder, len(orderedIDs), len(existing))
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: unknown id %s", catalog.ErrInvalidOrder, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", catalog.ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
	}

	err = s.writer.Do(ctx, func(tx *sql.Tx) error {
		for i, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx, `UPDATE sources SET priority = ? WHERE id = ?`, i, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reorder sources: %w", err)
	}
	return nil
}

// RecordSync stores the outcome of a sync attempt for a source.
func (s *Service) RecordSync(ctx context.Context, id string, syncErr error) error {
	now := time.Now().UTC()
	err := s.writer.Do(ctx, func(tx *sql.Tx) error {
		if syncErr != nil {
			_, err := tx.ExecContext(ctx, `UPDATE sources SET last_error = ? WHERE id = ?`, syncErr.Error(), id)
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE sources SET last_error = NULL, last_synced_at = ? WHERE id = ?`, now, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	return nil
}
