// Package reconcile materializes content groups: the cross-source view
// that unifies duplicate titles into one logical item with ranked
// fallbacks. Groups are recomputed from the cache store on every call
// and never persisted, so they cannot go stale.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/source"
	"github.com/streamweld/streamweld/internal/store"
)

// Group is the resolved set of catalog items considered the same
// logical title across sources. Primary is the preferred member;
// Alternatives are the ranked fallbacks.
type Group struct {
	Key          string              `json:"key"`
	ContentType  catalog.ContentType `json:"contentType"`
	Primary      catalog.Item        `json:"primary"`
	Alternatives []catalog.Item      `json:"alternatives,omitempty"`
	AllItems     []catalog.Item      `json:"allItems"`
}

// Service computes groups and fallback chains. It is read-only over the
// cache store; the only mutation it owns is the maintenance pass that
// purges rows orphaned by source removal.
type Service struct {
	store   *store.Service
	sources *source.Service
	logger  zerolog.Logger
}

// NewService creates a new reconciliation service.
func NewService(st *store.Service, sources *source.Service, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		sources: sources,
		logger:  logger.With().Str("component", "reconcile").Logger(),
	}
}

// sourceRank holds the per-source fields the ranking rules depend on.
type sourceRank struct {
	priority int
	position int
	active   bool
}

func (s *Service) sourceRanks(ctx context.Context) (map[string]sourceRank, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, err
	}
	ranks := make(map[string]sourceRank, len(sources))
	for _, src := range sources {
		ranks[src.ID] = sourceRank{priority: src.Priority, position: src.Position, active: src.Active}
	}
	return ranks, nil
}

// ResolveGroups partitions the current catalog items of one content
// type into groups. Every active, non-removed item lands in exactly one
// group. Inactive sources are excluded unless includeInactive is set;
// items whose source no longer exists are always excluded (they are
// orphans awaiting the next maintenance pass).
//
// The primary is the member whose source has the lowest priority value,
// ties broken by source creation order, then by higher quality hint.
// Alternatives are ordered by source priority, source creation order,
// then title, for deterministic output.
func (s *Service) ResolveGroups(ctx context.Context, contentType catalog.ContentType, includeInactive bool) ([]Group, error) {
	if !contentType.Valid() {
		return nil, &catalog.ValidationError{Field: "contentType", Reason: fmt.Sprintf("unknown type %q", string(contentType))}
	}

	ranks, err := s.sourceRanks(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListByType(ctx, contentType)
	if err != nil {
		return nil, err
	}

	partitions := make(map[string][]catalog.Item)
	for _, it := range items {
		rank, known := ranks[it.SourceID]
		if !known {
			continue
		}
		if !rank.active && !includeInactive {
			continue
		}
		key := catalog.GroupKey(it)
		partitions[key] = append(partitions[key], it)
	}

	groups := make([]Group, 0, len(partitions))
	for key, members := range partitions {
		groups = append(groups, buildGroup(key, contentType, members, ranks))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

func buildGroup(key string, contentType catalog.ContentType, members []catalog.Item, ranks map[string]sourceRank) Group {
	// Primary selection order: source priority, source creation order,
	// then quality tier (higher wins).
	primaryOrder := make([]catalog.Item, len(members))
	copy(primaryOrder, members)
	sort.SliceStable(primaryOrder, func(i, j int) bool {
		ri, rj := ranks[primaryOrder[i].SourceID], ranks[primaryOrder[j].SourceID]
		if ri.priority != rj.priority {
			return ri.priority < rj.priority
		}
		if ri.position != rj.position {
			return ri.position < rj.position
		}
		return primaryOrder[i].QualityHint.Rank() > primaryOrder[j].QualityHint.Rank()
	})
	primary := primaryOrder[0]

	alternatives := make([]catalog.Item, 0, len(members)-1)
	for _, it := range members {
		if it.Key() != primary.Key() {
			alternatives = append(alternatives, it)
		}
	}
	sort.SliceStable(alternatives, func(i, j int) bool {
		ri, rj := ranks[alternatives[i].SourceID], ranks[alternatives[j].SourceID]
		if ri.priority != rj.priority {
			return ri.priority < rj.priority
		}
		if ri.position != rj.position {
			return ri.position < rj.position
		}
		return alternatives[i].Title < alternatives[j].Title
	})

	all := make([]catalog.Item, 0, len(members))
	all = append(all, primary)
	all = append(all, alternatives...)

	return Group{
		Key:          key,
		ContentType:  contentType,
		Primary:      primary,
		Alternatives: alternatives,
		AllItems:     all,
	}
}

// ResolveFallback returns the next candidate strictly after failed in
// the group's ranked order (primary first, then alternatives). Fails
// with catalog.ErrItemNotInGroup when failed is not a member, and
// catalog.ErrNotFound when failed was the last candidate.
func (s *Service) ResolveFallback(group Group, failed catalog.ItemKey) (catalog.Item, error) {
	idx := -1
	for i, it := range group.AllItems {
		if it.Key() == failed {
			idx = i
			break
		}
	}
	if idx < 0 {
		return catalog.Item{}, fmt.Errorf("%w: %s/%s", catalog.ErrItemNotInGroup, failed.SourceID, failed.ExternalID)
	}
	if idx+1 >= len(group.AllItems) {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return group.AllItems[idx+1], nil
}

// Pass runs one maintenance pass: rows orphaned by source removal are
// hard-deleted together with their index entries. Scheduled; removal
// itself never does this synchronously.
func (s *Service) Pass(ctx context.Context) error {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ID
	}
	purged, err := s.store.PurgeOrphans(ctx, ids)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("reconciliation pass removed orphaned rows")
	}
	return nil
}
