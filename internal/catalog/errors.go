package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for the catalog engine. Callers match with errors.Is.
var (
	// ErrSourceNotFound is returned when an operation references an
	// unknown source ID.
	ErrSourceNotFound = errors.New("source not found")

	// ErrInvalidOrder is returned by Reorder when the supplied IDs are
	// not an exact permutation of the existing source IDs.
	ErrInvalidOrder = errors.New("invalid source order")

	// ErrItemNotInGroup is returned by fallback resolution when the
	// failed item is not a member of the group.
	ErrItemNotInGroup = errors.New("item not in group")

	// ErrNotFound is returned when a lookup matches nothing, including
	// fallback resolution past the last alternative.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable wraps disk or file level failures from the
	// cache store. The engine does not retry; retry policy belongs to
	// the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIndexCorrupt indicates the full-text index disagrees with the
	// catalog rows. Recovered by a full rebuild at next startup.
	ErrIndexCorrupt = errors.New("full-text index corrupt")
)

// ValidationError describes a malformed input that was recovered locally
// and reported in the call result rather than surfaced as a failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validate checks a parsed item before ingestion. A nil return means the
// item is safe to normalize and persist.
func (p ParsedItem) Validate() error {
	if p.ExternalID == "" {
		return &ValidationError{Field: "externalId", Reason: "empty"}
	}
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "empty"}
	}
	if !p.ContentType.Valid() {
		return &ValidationError{Field: "contentType", Reason: fmt.Sprintf("unknown type %q", string(p.ContentType))}
	}
	if p.StreamRef == "" {
		return &ValidationError{Field: "streamRef", Reason: "empty"}
	}
	return nil
}
