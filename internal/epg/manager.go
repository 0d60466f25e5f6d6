package epg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/database"
)

// Config holds the guide cache tuning knobs.
type Config struct {
	// TTL is how long fetched guide data stays fresh.
	TTL time.Duration
	// Retention is how long entries are kept after they end. Entries
	// past retention are evicted lazily on the next write to their
	// channel, not by a background sweep.
	Retention time.Duration
}

// DefaultConfig returns the default guide cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:       30 * time.Minute,
		Retention: 24 * time.Hour,
	}
}

// Manager caches per-channel guide data with TTL-based refresh.
// Channel state moves Stale -> Fetching -> Fresh and back to Stale when
// the TTL elapses or a refresh fails.
type Manager struct {
	writer  *database.Writer
	fetcher Fetcher
	cfg     Config
	logger  zerolog.Logger

	mu       sync.Mutex
	fetching map[string]struct{}
}

// NewManager creates a guide cache manager.
func NewManager(writer *database.Writer, fetcher Fetcher, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	return &Manager{
		writer:   writer,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger.With().Str("component", "epg").Logger(),
		fetching: make(map[string]struct{}),
	}
}

// beginFetch marks the channel as fetching. Returns false when a fetch
// is already in flight, in which case the caller must back off: a
// second EnsureFresh on a Fetching channel is a no-op.
func (m *Manager) beginFetch(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.fetching[channelID]; busy {
		return false
	}
	m.fetching[channelID] = struct{}{}
	return true
}

func (m *Manager) endFetch(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fetching, channelID)
}

// StateOf returns the channel's refresh state.
func (m *Manager) StateOf(ctx context.Context, channelID string) (CacheState, error) {
	m.mu.Lock()
	_, busy := m.fetching[channelID]
	m.mu.Unlock()

	state := CacheState{ChannelID: channelID, State: StateStale}
	if busy {
		state.State = StateFetching
	}

	var lastFetched, validUntil sql.NullTime
	err := m.writer.Conn().QueryRowContext(ctx,
		`SELECT last_fetched_at, valid_until FROM epg_cache_state WHERE channel_id = ?`,
		channelID).Scan(&lastFetched, &validUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("%w: read cache state: %v", catalog.ErrStorageUnavailable, err)
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		state.LastFetchedAt = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		state.ValidUntil = &t
		if !busy && time.Now().Before(t) {
			state.State = StateFresh
		}
	}
	return state, nil
}

// EnsureFresh refreshes the channel's guide data when it is stale or
// past its TTL. On success the channel's entries are replaced atomically
// and the channel becomes Fresh for another TTL window. On fetch failure
// the previous entries are retained and the channel stays Stale for
// retry: a transient failure never blanks the guide, and the error does
// not propagate past this manager.
func (m *Manager) EnsureFresh(ctx context.Context, channelID string) error {
	state, err := m.StateOf(ctx, channelID)
	if err != nil {
		return err
	}
	if state.State == StateFetching || state.State == StateFresh {
		return nil
	}

	if !m.beginFetch(channelID) {
		return nil
	}
	defer m.endFetch(channelID)

	entries, err := m.fetcher.FetchGuide(ctx, channelID)
	if err != nil {
		m.logger.Warn().Err(err).Str("channelId", channelID).Msg("guide fetch failed, serving stale entries")
		return nil
	}

	if err := m.replaceEntries(ctx, channelID, entries); err != nil {
		m.logger.Error().Err(err).Str("channelId", channelID).Msg("guide write failed")
		return err
	}
	return nil
}

// replaceEntries swaps the channel's guide rows in one transaction:
// remove-then-bulk-insert, with lazy retention eviction folded into the
// same write. Entries that overlap a previously accepted entry are
// dropped to keep the per-channel non-overlap invariant.
func (m *Manager) replaceEntries(ctx context.Context, channelID string, entries []Entry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTime.Before(entries[j].StartTime) })

	now := time.Now().UTC()
	horizon := now.Add(-m.cfg.Retention)

	accepted := entries[:0]
	var lastEnd time.Time
	for _, e := range entries {
		if !e.EndTime.After(e.StartTime) {
			m.logger.Warn().Str("channelId", channelID).Str("title", e.Title).Msg("dropping guide entry with empty interval")
			continue
		}
		if e.EndTime.Before(horizon) {
			// Past retention, evicted on write.
			continue
		}
		if e.StartTime.Before(lastEnd) {
			m.logger.Warn().Str("channelId", channelID).Str("title", e.Title).Msg("dropping overlapping guide entry")
			continue
		}
		lastEnd = e.EndTime
		accepted = append(accepted, e)
	}

	validUntil := now.Add(m.cfg.TTL)

	err := m.writer.Do(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM epg_entries WHERE channel_id = ?`, channelID); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		for _, e := range accepted {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO epg_entries (channel_id, start_time, end_time, title, description)
				VALUES (?, ?, ?, ?, ?)`,
				channelID, e.StartTime.UTC(), e.EndTime.UTC(), e.Title, e.Description); err != nil {
				return fmt.Errorf("insert entry: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO epg_cache_state (channel_id, last_fetched_at, valid_until)
			VALUES (?, ?, ?)
			ON CONFLICT (channel_id) DO UPDATE SET
				last_fetched_at = excluded.last_fetched_at,
				valid_until = excluded.valid_until`,
			channelID, now, validUntil); err != nil {
			return fmt.Errorf("update cache state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: replace guide entries: %v", catalog.ErrStorageUnavailable, err)
	}

	m.logger.Debug().Str("channelId", channelID).Int("entries", len(accepted)).Time("validUntil", validUntil).Msg("guide refreshed")
	return nil
}

// entriesFor returns the channel's guide rows ordered by start time.
func (m *Manager) entriesFor(ctx context.Context, channelID string) ([]Entry, error) {
	rows, err := m.writer.Conn().QueryContext(ctx, `
		SELECT channel_id, start_time, end_time, title, description
		FROM epg_entries WHERE channel_id = ? ORDER BY start_time ASC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: list guide entries: %v", catalog.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ChannelID, &e.StartTime, &e.EndTime, &e.Title, &e.Description); err != nil {
			return nil, fmt.Errorf("%w: scan guide entry: %v", catalog.ErrStorageUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list guide entries: %v", catalog.ErrStorageUnavailable, err)
	}
	return entries, nil
}

// GetNowAndNext answers the now/next query for a channel at the given
// instant. Current is the entry whose half-open interval contains at;
// Next is the earliest entry starting strictly after at. An instant
// equal to an entry's end time belongs to neither.
func (m *Manager) GetNowAndNext(ctx context.Context, channelID string, at time.Time) (NowAndNext, error) {
	entries, err := m.entriesFor(ctx, channelID)
	if err != nil {
		return NowAndNext{}, err
	}

	// First entry starting after at; the candidate for Current sits
	// just before it.
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].StartTime.After(at)
	})

	var result NowAndNext
	if idx > 0 && entries[idx-1].Contains(at) {
		current := entries[idx-1]
		result.Current = &current
	}
	if idx < len(entries) {
		next := entries[idx]
		result.Next = &next
	}
	return result, nil
}

// Channels lists every channel known to the cache state table.
func (m *Manager) Channels(ctx context.Context) ([]string, error) {
	rows, err := m.writer.Conn().QueryContext(ctx, `SELECT channel_id FROM epg_cache_state ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list channels: %v", catalog.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan channel: %v", catalog.ErrStorageUnavailable, err)
		}
		channels = append(channels, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list channels: %v", catalog.ErrStorageUnavailable, err)
	}
	return channels, nil
}

// RefreshSweep refreshes every known channel whose data went stale.
// Refreshes for different channels run concurrently; the per-channel
// in-flight guard keeps a channel from being re-entered.
func (m *Manager) RefreshSweep(ctx context.Context) {
	channels, err := m.Channels(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("cannot list channels for refresh sweep")
		return
	}

	var wg sync.WaitGroup
	for _, channelID := range channels {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.EnsureFresh(ctx, id); err != nil {
				m.logger.Warn().Err(err).Str("channelId", id).Msg("refresh sweep failed for channel")
			}
		}(channelID)
	}
	wg.Wait()
}
