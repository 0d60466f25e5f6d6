// Package epg implements the time-windowed program guide cache: per
// channel entries with TTL-driven refresh, now/next queries and a
// serve-stale policy on fetch failure.
package epg

import (
	"context"
	"time"
)

// Entry is one program guide row. Within a channel, intervals are
// non-overlapping and half-open: [StartTime, EndTime).
type Entry struct {
	ChannelID   string    `json:"channelId"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Description string    `json:"description,omitempty"`
}

// Contains reports whether at falls inside the entry's interval.
func (e Entry) Contains(at time.Time) bool {
	return !at.Before(e.StartTime) && at.Before(e.EndTime)
}

// State is the refresh state of one channel's guide data.
type State string

const (
	// StateStale means the data is missing or past its TTL; a refresh
	// is due.
	StateStale State = "stale"
	// StateFetching means a refresh for this channel is in flight.
	StateFetching State = "fetching"
	// StateFresh means the data is inside its TTL window.
	StateFresh State = "fresh"
)

// CacheState drives refresh decisions for one channel. Not user-visible.
type CacheState struct {
	ChannelID     string     `json:"channelId"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
	State         State      `json:"state"`
}

// Fetcher retrieves and parses fresh guide data for a channel. The
// manager never parses guide wire formats itself; implementations wrap
// the external program-guide parser.
type Fetcher interface {
	FetchGuide(ctx context.Context, channelID string) ([]Entry, error)
}

// NowAndNext is the answer to a now/next query. Either field may be
// empty when no entry covers or follows the queried instant.
type NowAndNext struct {
	Current *Entry `json:"current,omitempty"`
	Next    *Entry `json:"next,omitempty"`
}
