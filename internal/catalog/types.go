// Package catalog defines the shared data model for the multi-source
// catalog engine: content types, catalog items, ingest reports and the
// title normalization policy used for cross-source grouping.
package catalog

import "time"

// ContentType identifies the kind of catalog entry.
type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeSeries  ContentType = "series"
	ContentTypeEpisode ContentType = "episode"
	ContentTypeChannel ContentType = "channel"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeMovie, ContentTypeSeries, ContentTypeEpisode, ContentTypeChannel:
		return true
	}
	return false
}

// QualityHint ranks a stream's resolution tier. Used as the final
// tie-breaker when selecting a group's primary item.
type QualityHint string

const (
	QualityUnknown QualityHint = ""
	QualitySD      QualityHint = "sd"
	QualityHD      QualityHint = "hd"
	QualityFHD     QualityHint = "fhd"
	QualityUHD     QualityHint = "uhd"
)

// Rank returns a comparable tier for the hint. Higher is better.
func (q QualityHint) Rank() int {
	switch q {
	case QualityUHD:
		return 4
	case QualityFHD:
		return 3
	case QualityHD:
		return 2
	case QualitySD:
		return 1
	}
	return 0
}

// ParsedItem is one record handed to the ingestion adapter by an external
// parser. The adapter stamps it with a source identity and derives the
// normalized fields before it is persisted.
type ParsedItem struct {
	ExternalID  string      `json:"externalId"`
	ContentType ContentType `json:"contentType"`
	Title       string      `json:"title"`
	Year        int         `json:"year,omitempty"`
	StreamRef   string      `json:"streamRef"`
	QualityHint QualityHint `json:"qualityHint,omitempty"`
	Description string      `json:"description,omitempty"`
}

// Item is one persisted catalog row, owned by the cache store.
// There is exactly one row per (SourceID, ExternalID).
type Item struct {
	SourceID        string      `json:"sourceId"`
	ExternalID      string      `json:"externalId"`
	ContentType     ContentType `json:"contentType"`
	Title           string      `json:"title"`
	NormalizedTitle string      `json:"normalizedTitle"`
	SequenceHint    string      `json:"sequenceHint,omitempty"`
	FranchiseKey    string      `json:"franchiseKey,omitempty"`
	Year            int         `json:"year,omitempty"`
	StreamRef       string      `json:"streamRef"`
	QualityHint     QualityHint `json:"qualityHint,omitempty"`
	Description     string      `json:"description,omitempty"`

	// Denormalized convenience fields kept on the row so hot read paths
	// avoid join-time work.
	Favorite         bool `json:"favorite"`
	LastPositionSecs int  `json:"lastPositionSecs,omitempty"`

	// Removed marks a soft-deleted row: excluded from grouping but kept
	// until the next compaction so in-flight fallback resolution in the
	// same session still sees it.
	Removed   bool      `json:"removed,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the storage identity of the item.
func (i Item) Key() ItemKey {
	return ItemKey{SourceID: i.SourceID, ExternalID: i.ExternalID}
}

// ItemKey identifies a catalog row.
type ItemKey struct {
	SourceID   string `json:"sourceId"`
	ExternalID string `json:"externalId"`
}

// ItemFailure describes one item of an ingest batch that failed
// validation or normalization. Failures are reported, never fatal.
type ItemFailure struct {
	Index      int    `json:"index"`
	ExternalID string `json:"externalId,omitempty"`
	Reason     string `json:"reason"`
}

// IngestReport summarizes one ingest batch for a single source.
type IngestReport struct {
	SourceID string        `json:"sourceId"`
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Removed  int           `json:"removed"`
	Failed   []ItemFailure `json:"failed,omitempty"`
}

// FailedCount returns the number of items rejected from the batch.
func (r IngestReport) FailedCount() int {
	return len(r.Failed)
}
