package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/ingest"
	"github.com/streamweld/streamweld/internal/source"
	"github.com/streamweld/streamweld/internal/store"
	"github.com/streamweld/streamweld/internal/testutil"
)

type fixture struct {
	svc     *Service
	ingest  *ingest.Service
	sources *source.Service
	store   *store.Service
}

func setup(t *testing.T) (*fixture, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	st := store.NewService(tdb.Writer, tdb.Logger)
	sources := source.NewService(tdb.Writer, tdb.Logger)
	return &fixture{
		svc:     NewService(st, sources, tdb.Logger),
		ingest:  ingest.NewService(st, sources, nil, tdb.Logger),
		sources: sources,
		store:   st,
	}, tdb.Close
}

func (f *fixture) addSource(t *testing.T, name string, priority int) source.Source {
	t.Helper()
	src, err := f.sources.Add(context.Background(), source.AddInput{
		Name:     name,
		Kind:     source.KindPlaylist,
		Endpoint: "http://example.test/" + name,
		Priority: priority,
	})
	if err != nil {
		t.Fatalf("Add(%s) error: %v", name, err)
	}
	return src
}

func (f *fixture) ingestTitles(t *testing.T, sourceID string, titles ...string) {
	t.Helper()
	items := make([]catalog.ParsedItem, len(titles))
	for i, title := range titles {
		items[i] = catalog.ParsedItem{
			ExternalID:  title,
			ContentType: catalog.ContentTypeMovie,
			Title:       title,
			StreamRef:   "http://example.test/stream/" + title,
		}
	}
	if _, err := f.ingest.Ingest(context.Background(), sourceID, items); err != nil {
		t.Fatalf("Ingest(%s) error: %v", sourceID, err)
	}
}

func groupByPrimaryTitle(groups []Group, title string) *Group {
	for i := range groups {
		if groups[i].Primary.Title == title {
			return &groups[i]
		}
	}
	return nil
}

func TestResolveGroupsPartition(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)
	b := f.addSource(t, "b", 1)

	f.ingestTitles(t, a.ID, "The Matrix", "Heat")
	f.ingestTitles(t, b.ID, "The Matrix", "Alien")

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("ResolveGroups() = %d groups, want 3", len(groups))
	}

	// Every item lands in exactly one group.
	total := 0
	for _, g := range groups {
		total += len(g.AllItems)
	}
	if total != 4 {
		t.Errorf("groups cover %d items, want 4", total)
	}

	matrix := groupByPrimaryTitle(groups, "The Matrix")
	if matrix == nil {
		t.Fatal("no group with The Matrix as primary")
	}
	if matrix.Primary.SourceID != a.ID {
		t.Errorf("primary from source %s, want lowest-priority source %s", matrix.Primary.SourceID, a.ID)
	}
	if len(matrix.Alternatives) != 1 || matrix.Alternatives[0].SourceID != b.ID {
		t.Errorf("alternatives = %v, want the higher-priority source's copy", matrix.Alternatives)
	}
}

func TestResolveGroupsSequelsStaySeparate(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)
	f.ingestTitles(t, a.ID, "Terminator 2", "Terminator 3")

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("sequels collapsed into %d groups, want 2", len(groups))
	}
}

func TestResolveGroupsPriorityTieBreaks(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	// Same priority; a was created first.
	a := f.addSource(t, "a", 0)
	b := f.addSource(t, "b", 0)

	f.ingestTitles(t, a.ID, "The Matrix")
	f.ingestTitles(t, b.ID, "The Matrix")

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("ResolveGroups() = %d groups, want 1", len(groups))
	}
	if groups[0].Primary.SourceID != a.ID {
		t.Errorf("primary from %s, want earlier-created source %s", groups[0].Primary.SourceID, a.ID)
	}
}

func TestResolveGroupsInactiveSourceExcluded(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)
	b := f.addSource(t, "b", 1)

	f.ingestTitles(t, a.ID, "The Matrix")
	f.ingestTitles(t, b.ID, "The Matrix")

	if err := f.sources.SetActive(ctx, a.ID, false); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("ResolveGroups() = %d groups, want 1", len(groups))
	}
	// Deactivation promotes the remaining source's copy; nothing was deleted.
	if groups[0].Primary.SourceID != b.ID {
		t.Errorf("primary from %s, want remaining active source %s", groups[0].Primary.SourceID, b.ID)
	}

	withInactive, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, true)
	if err != nil {
		t.Fatalf("ResolveGroups(includeInactive) error: %v", err)
	}
	if len(withInactive[0].AllItems) != 2 {
		t.Errorf("includeInactive group has %d items, want 2", len(withInactive[0].AllItems))
	}
}

func TestResolveGroupsQualityTieBreak(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)

	batch := []catalog.ParsedItem{
		{ExternalID: "sd", ContentType: catalog.ContentTypeMovie, Title: "The Matrix", StreamRef: "http://x/sd", QualityHint: catalog.QualitySD},
		{ExternalID: "uhd", ContentType: catalog.ContentTypeMovie, Title: "The Matrix", StreamRef: "http://x/uhd", QualityHint: catalog.QualityUHD},
	}
	if _, err := f.ingest.Ingest(ctx, a.ID, batch); err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("ResolveGroups() = %d groups, want 1", len(groups))
	}
	if groups[0].Primary.ExternalID != "uhd" {
		t.Errorf("primary = %s, want the higher-quality copy", groups[0].Primary.ExternalID)
	}
}

func TestResolveGroupsInvalidType(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	_, err := f.svc.ResolveGroups(context.Background(), "podcast", false)
	var verr *catalog.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("ResolveGroups() error = %v, want ValidationError", err)
	}
}

func TestResolveFallback(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)
	b := f.addSource(t, "b", 1)
	c := f.addSource(t, "c", 2)

	f.ingestTitles(t, a.ID, "The Matrix")
	f.ingestTitles(t, b.ID, "The Matrix")
	f.ingestTitles(t, c.ID, "The Matrix")

	groups, err := f.svc.ResolveGroups(ctx, catalog.ContentTypeMovie, false)
	if err != nil {
		t.Fatalf("ResolveGroups() error: %v", err)
	}
	group := groups[0]

	next, err := f.svc.ResolveFallback(group, group.Primary.Key())
	if err != nil {
		t.Fatalf("ResolveFallback(primary) error: %v", err)
	}
	if next.SourceID != b.ID {
		t.Errorf("first fallback from %s, want %s", next.SourceID, b.ID)
	}

	last, err := f.svc.ResolveFallback(group, next.Key())
	if err != nil {
		t.Fatalf("ResolveFallback(second) error: %v", err)
	}
	if last.SourceID != c.ID {
		t.Errorf("second fallback from %s, want %s", last.SourceID, c.ID)
	}

	if _, err := f.svc.ResolveFallback(group, last.Key()); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("exhausted fallback error = %v, want ErrNotFound", err)
	}

	stranger := catalog.ItemKey{SourceID: "nope", ExternalID: "nope"}
	if _, err := f.svc.ResolveFallback(group, stranger); !errors.Is(err, catalog.ErrItemNotInGroup) {
		t.Errorf("unknown member error = %v, want ErrItemNotInGroup", err)
	}
}

func TestPassPurgesOrphans(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	a := f.addSource(t, "a", 0)
	b := f.addSource(t, "b", 1)
	f.ingestTitles(t, a.ID, "The Matrix")
	f.ingestTitles(t, b.ID, "Heat")

	if err := f.sources.Remove(ctx, b.ID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	// Rows linger until the pass runs.
	if _, err := f.store.Get(ctx, catalog.ItemKey{SourceID: b.ID, ExternalID: "Heat"}); err != nil {
		t.Fatalf("orphan gone before pass: %v", err)
	}

	if err := f.svc.Pass(ctx); err != nil {
		t.Fatalf("Pass() error: %v", err)
	}

	if _, err := f.store.Get(ctx, catalog.ItemKey{SourceID: b.ID, ExternalID: "Heat"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("orphan after pass error = %v, want ErrNotFound", err)
	}
	if _, err := f.store.Get(ctx, catalog.ItemKey{SourceID: a.ID, ExternalID: "The Matrix"}); err != nil {
		t.Errorf("surviving source's row purged: %v", err)
	}
}
