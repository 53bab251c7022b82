package content

import (
	"context"
	"testing"
	"time"
)

func fixedLoader(snap *Snapshot) Loader {
	return LoaderFunc(func(ctx context.Context) (*Snapshot, error) { return snap, nil })
}

func mustTime(t *testing.T, s string) *time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return &tm
}

func TestIndexReloadAndETagStability(t *testing.T) {
	snap := &Snapshot{
		Posts: map[string]*Post{
			"hello": {Slug: "hello", Title: "Hello", PreviewText: "p", Content: "body v1"},
		},
		Series: map[string]*Series{},
	}
	idx := NewIndex(fixedLoader(snap))
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	first := idx.ETag()
	if len(first) != 66 {
		t.Fatalf("etag length = %d, want 66: %s", len(first), first)
	}

	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload 2: %v", err)
	}
	if idx.ETag() != first {
		t.Error("etag changed across reload of unchanged content")
	}

	snap.Posts["hello"].Content = "body v2"
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload 3: %v", err)
	}
	if idx.ETag() == first {
		t.Error("etag did not change after content byte change")
	}
}

func TestListPostsVisibilityAndOrdering(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		Posts: map[string]*Post{
			"draft":     {Slug: "draft", Title: "d", PreviewText: "p", Content: "c"},
			"scheduled": {Slug: "scheduled", Title: "s", PreviewText: "p", Content: "c", GoesLiveAt: mustTime(t, "2099-01-01T00:00:00Z")},
			"live-old":  {Slug: "live-old", Title: "l", PreviewText: "p", Content: "c", GoesLiveAt: mustTime(t, "2020-01-01T00:00:00Z")},
			"live-new":  {Slug: "live-new", Title: "l", PreviewText: "p", Content: "c", GoesLiveAt: mustTime(t, "2021-01-01T00:00:00Z")},
		},
		Series: map[string]*Series{},
	}
	idx := NewIndex(fixedLoader(snap))
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	page := idx.ListPosts(ListOptions{Limit: -1}, now)
	if page.Total != 2 {
		t.Fatalf("public total = %d, want 2 (only live posts)", page.Total)
	}
	if page.Items[0].Slug != "live-new" || page.Items[1].Slug != "live-old" {
		t.Fatalf("unexpected order: %v", []string{page.Items[0].Slug, page.Items[1].Slug})
	}

	pageAll := idx.ListPosts(ListOptions{IncludeDrafts: true, IncludeScheduled: true, Limit: -1}, now)
	if pageAll.Total != 4 {
		t.Fatalf("admin total = %d, want 4", pageAll.Total)
	}
}

func TestListPostsPaginationBoundaries(t *testing.T) {
	now := time.Now().UTC()
	posts := map[string]*Post{}
	for i := 0; i < 5; i++ {
		slug := string(rune('a' + i))
		posts[slug] = &Post{Slug: slug, Title: "t", PreviewText: "p", Content: "c", GoesLiveAt: &now}
	}
	idx := NewIndex(fixedLoader(&Snapshot{Posts: posts, Series: map[string]*Series{}}))
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	zero := idx.ListPosts(ListOptions{Limit: 0}, now)
	if len(zero.Items) != 0 || zero.Total != 5 {
		t.Fatalf("limit=0 page = %+v", zero)
	}

	beyond := idx.ListPosts(ListOptions{Limit: -1, Offset: 100}, now)
	if len(beyond.Items) != 0 || beyond.Total != 5 {
		t.Fatalf("offset beyond total page = %+v", beyond)
	}

	clamped := idx.ListPosts(ListOptions{Limit: 10000}, now)
	if clamped.Limit != maxLimit {
		t.Fatalf("limit not clamped: %d", clamped.Limit)
	}
}

func TestSeriesMemberOrdering(t *testing.T) {
	o1, o2 := 2, 1
	snap := &Snapshot{
		Posts: map[string]*Post{
			"b": {Slug: "b", Title: "b", PreviewText: "p", Content: "c", SeriesSlug: "s", Order: &o1},
			"a": {Slug: "a", Title: "a", PreviewText: "p", Content: "c", SeriesSlug: "s", Order: &o2},
			"z": {Slug: "z", Title: "z", PreviewText: "p", Content: "c", SeriesSlug: "s"},
		},
		Series: map[string]*Series{
			"s": {Slug: "s", Title: "s", Members: []string{"b", "a", "z"}},
		},
	}
	idx := NewIndex(fixedLoader(snap))
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	_, members, ok := idx.GetSeries("s")
	if !ok {
		t.Fatal("expected series to be found")
	}
	got := []string{members[0].Slug, members[1].Slug, members[2].Slug}
	want := []string{"a", "b", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("member order = %v, want %v", got, want)
		}
	}
}

func TestValidateCatchesBadSeriesMembership(t *testing.T) {
	snap := &Snapshot{
		Posts: map[string]*Post{
			"p1": {Slug: "p1", Title: "t", PreviewText: "p", Content: "c", SeriesSlug: "other"},
		},
		Series: map[string]*Series{
			"s1": {Slug: "s1", Title: "t", Members: []string{"p1", "missing"}},
		},
	}
	idx := NewIndex(fixedLoader(snap))
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	errs := idx.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}
