package source

import (
	"context"
	"errors"
	"testing"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/testutil"
)

func setupService(t *testing.T) (*Service, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Writer, tdb.Logger), tdb.Close
}

func addSource(t *testing.T, svc *Service, name string, priority int) Source {
	t.Helper()
	src, err := svc.Add(context.Background(), AddInput{
		Name:     name,
		Kind:     KindPlaylist,
		Endpoint: "http://example.test/" + name + ".m3u",
		Priority: priority,
	})
	if err != nil {
		t.Fatalf("Add(%s) error: %v", name, err)
	}
	return src
}

func TestAddValidation(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	cases := []struct {
		name  string
		input AddInput
	}{
		{"empty name", AddInput{Kind: KindPlaylist, Endpoint: "http://x"}},
		{"empty endpoint", AddInput{Name: "a", Kind: KindPlaylist}},
		{"bad kind", AddInput{Name: "a", Kind: "rss", Endpoint: "http://x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tc.input)
			var verr *catalog.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Add() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestAddAssignsCreationOrder(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	first := addSource(t, svc, "alpha", 0)
	second := addSource(t, svc, "beta", 0)

	if first.Position != 0 || second.Position != 1 {
		t.Errorf("positions = %d, %d, want 0, 1", first.Position, second.Position)
	}
	if !first.Active || !second.Active {
		t.Error("new sources should start active")
	}
}

func TestListOrdersByPriorityThenCreation(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	a := addSource(t, svc, "a", 2)
	b := addSource(t, svc, "b", 1)
	c := addSource(t, svc, "c", 1)

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{b.ID, c.ID, a.ID}
	if len(list) != len(want) {
		t.Fatalf("List() = %d sources, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List()[%d] = %s, want %s", i, list[i].Name, id)
		}
	}
}

func TestReorderRequiresExactPermutation(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	a := addSource(t, svc, "a", 0)
	b := addSource(t, svc, "b", 1)

	cases := []struct {
		name string
		ids  []string
	}{
		{"missing id", []string{a.ID}},
		{"unknown id", []string{a.ID, "bogus"}},
		{"duplicate id", []string{a.ID, a.ID}},
		{"extra id", []string{a.ID, b.ID, a.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Reorder(ctx, tc.ids); !errors.Is(err, catalog.ErrInvalidOrder) {
				t.Errorf("Reorder() error = %v, want ErrInvalidOrder", err)
			}
		})
	}

	// A failed reorder changes nothing.
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if list[0].ID != a.ID {
		t.Error("failed reorder altered priorities")
	}
}

func TestReorderRewritesPriorities(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	a := addSource(t, svc, "a", 0)
	b := addSource(t, svc, "b", 1)

	if err := svc.Reorder(ctx, []string{b.ID, a.ID}); err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if list[0].ID != b.ID || list[1].ID != a.ID {
		t.Errorf("order after reorder = %s, %s, want b then a", list[0].Name, list[1].Name)
	}
	if list[0].Priority != 0 || list[1].Priority != 1 {
		t.Errorf("priorities after reorder = %d, %d, want 0, 1", list[0].Priority, list[1].Priority)
	}
}

func TestSetActiveAndRemove(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	src := addSource(t, svc, "a", 0)

	if err := svc.SetActive(ctx, src.ID, false); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	got, err := svc.Get(ctx, src.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Active {
		t.Error("source still active after deactivation")
	}

	if err := svc.Remove(ctx, src.ID); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := svc.Get(ctx, src.ID); !errors.Is(err, catalog.ErrSourceNotFound) {
		t.Errorf("Get() after remove error = %v, want ErrSourceNotFound", err)
	}
	if err := svc.Remove(ctx, src.ID); !errors.Is(err, catalog.ErrSourceNotFound) {
		t.Errorf("second Remove() error = %v, want ErrSourceNotFound", err)
	}
}

func TestRecordSync(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	src := addSource(t, svc, "a", 0)

	if err := svc.RecordSync(ctx, src.ID, errors.New("connection refused")); err != nil {
		t.Fatalf("RecordSync(err) error: %v", err)
	}
	got, _ := svc.Get(ctx, src.ID)
	if got.LastError != "connection refused" {
		t.Errorf("LastError = %q, want recorded error", got.LastError)
	}

	if err := svc.RecordSync(ctx, src.ID, nil); err != nil {
		t.Fatalf("RecordSync(nil) error: %v", err)
	}
	got, _ = svc.Get(ctx, src.ID)
	if got.LastError != "" {
		t.Errorf("LastError = %q after successful sync, want empty", got.LastError)
	}
	if got.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set after successful sync")
	}
}
