// Package source implements the registry of configured catalog feeds:
// priority order, active state and sync status.
package source

import "time"

// Kind identifies how a source's catalog is obtained.
type Kind string

const (
	// KindPlaylist is a playlist-file feed (e.g. an M3U export).
	KindPlaylist Kind = "playlist"
	// KindProviderAPI is a provider-API feed (e.g. an Xtream panel).
	KindProviderAPI Kind = "provider_api"
)

// Valid reports whether k is a known source kind.
func (k Kind) Valid() bool {
	return k == KindPlaylist || k == KindProviderAPI
}

// Source is one configured external catalog feed. Priority values need
// not be unique; ties break by creation order (Position). The registry
// never reads credential contents, only the opaque reference.
type Source struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Kind           Kind       `json:"kind"`
	Endpoint       string     `json:"endpoint"`
	CredentialsRef string     `json:"credentialsRef,omitempty"`
	Priority       int        `json:"priority"`
	Active         bool       `json:"active"`
	Position       int        `json:"position"`
	LastError      string     `json:"lastError,omitempty"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AddInput holds the user-supplied fields for a new source.
type AddInput struct {
	Name           string `json:"name"`
	Kind           Kind   `json:"kind"`
	Endpoint       string `json:"endpoint"`
	CredentialsRef string `json:"credentialsRef,omitempty"`
	Priority       int    `json:"priority"`
}

// UpdateInput holds optional field updates; nil means unchanged.
type UpdateInput struct {
	Name           *string `json:"name,omitempty"`
	Endpoint       *string `json:"endpoint,omitempty"`
	CredentialsRef *string `json:"credentialsRef,omitempty"`
	Priority       *int    `json:"priority,omitempty"`
}
