package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/source"
)

// Provider supplies pre-parsed items for one kind of source. The engine
// never parses wire formats itself; implementations wrap the external
// playlist and provider-API parsers.
type Provider interface {
	// Kind returns the source kind this provider serves.
	Kind() source.Kind
	// Fetch retrieves and parses the source's current catalog.
	Fetch(ctx context.Context, src source.Source) ([]catalog.ParsedItem, error)
}

// Coordinator drives scheduled and on-demand source syncs: fetch via
// the registered provider, hand the batch to the ingestion service, and
// record the outcome on the source.
type Coordinator struct {
	ingest    *Service
	sources   *source.Service
	logger    zerolog.Logger
	mu        sync.Mutex
	providers map[source.Kind]Provider
	inflight  map[string]struct{}
}

// NewCoordinator creates a sync coordinator with no providers
// registered.
func NewCoordinator(ingest *Service, sources *source.Service, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		ingest:    ingest,
		sources:   sources,
		logger:    logger.With().Str("component", "sync").Logger(),
		providers: make(map[source.Kind]Provider),
		inflight:  make(map[string]struct{}),
	}
}

// RegisterProvider installs the provider for its source kind, replacing
// any previous registration.
func (c *Coordinator) RegisterProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.Kind()] = p
}

func (c *Coordinator) provider(kind source.Kind) (Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.providers[kind]
	return p, ok
}

// beginSync marks a source as syncing. Returns false when a sync for it
// is already in flight.
func (c *Coordinator) beginSync(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Coordinator) endSync(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// SyncSource fetches and ingests one source's catalog. Inactive sources
// are skipped. A second call while the source is already syncing is a
// no-op. The fetch or ingest outcome is recorded on the source either
// way.
func (c *Coordinator) SyncSource(ctx context.Context, id string) (catalog.IngestReport, error) {
	src, err := c.sources.Get(ctx, id)
	if err != nil {
		return catalog.IngestReport{}, err
	}
	if !src.Active {
		return catalog.IngestReport{}, fmt.Errorf("source %s is inactive", id)
	}

	provider, ok := c.provider(src.Kind)
	if !ok {
		return catalog.IngestReport{}, fmt.Errorf("no provider registered for kind %q", string(src.Kind))
	}

	if !c.beginSync(id) {
		c.logger.Debug().Str("sourceId", id).Msg("sync already in flight, skipping")
		return catalog.IngestReport{SourceID: id}, nil
	}
	defer c.endSync(id)

	items, err := provider.Fetch(ctx, src)
	if err != nil {
		if recErr := c.sources.RecordSync(ctx, id, err); recErr != nil {
			c.logger.Warn().Err(recErr).Str("sourceId", id).Msg("failed to record sync error")
		}
		return catalog.IngestReport{}, fmt.Errorf("fetch %s: %w", id, err)
	}

	report, err := c.ingest.Ingest(ctx, id, items)
	if recErr := c.sources.RecordSync(ctx, id, err); recErr != nil {
		c.logger.Warn().Err(recErr).Str("sourceId", id).Msg("failed to record sync result")
	}
	return report, err
}

// SyncAll syncs every active source. Fetch and parse work runs
// concurrently across sources; the resulting writes still serialize
// through the store's single writer.
func (c *Coordinator) SyncAll(ctx context.Context) {
	sources, err := c.sources.List(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("cannot list sources for sync")
		return
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		if !src.Active {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := c.SyncSource(ctx, id); err != nil {
				c.logger.Warn().Err(err).Str("sourceId", id).Msg("source sync failed")
			}
		}(src.ID)
	}
	wg.Wait()
}
