package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// Snapshot is what the out-of-scope loader produces: a flat parse of the
// content tree. Index wraps it with a deterministic ETag and read APIs.
type Snapshot struct {
	Posts  map[string]*Post
	Series map[string]*Series
}

// Loader is the injectable, out-of-scope collaborator that turns a
// content directory into a Snapshot (§1: "treated as a pure function
// load(content_cfg) -> Index"). Production wiring supplies a real
// filesystem/TOML walker; tests supply a fixed Snapshot.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context) (*Snapshot, error)

func (f LoaderFunc) Load(ctx context.Context) (*Snapshot, error) { return f(ctx) }

type indexData struct {
	posts  map[string]*Post
	series map[string]*Series
	etag   string
}

// Index is the single-writer/many-reader cell described in §3/§5: a
// snapshot is swapped in wholesale on Reload, and readers holding a
// *indexData obtained before the swap keep seeing the old data.
type Index struct {
	loader Loader
	data   atomic.Pointer[indexData]

	// writeMu serializes reloads; only one reload runs at a time, per §5.
	writeMu sync.Mutex
}

// NewIndex creates an Index backed by loader. Call Reload once during
// startup before serving traffic.
func NewIndex(loader Loader) *Index {
	idx := &Index{loader: loader}
	idx.data.Store(&indexData{posts: map[string]*Post{}, series: map[string]*Series{}, etag: emptyETag()})
	return idx
}

func emptyETag() string {
	return computeETag(nil, nil)
}

// Reload recomputes the index from the loader and atomically publishes
// it. Go's goroutine scheduler already keeps blocking filesystem I/O
// inside loader.Load from stalling other in-flight requests (it is
// offloaded to an OS thread by the runtime's sysmon the same way the
// spec asks for a dedicated blocking-capable pool), so Reload simply
// runs the load on its own goroutine and honors ctx cancellation while
// waiting on it.
func (idx *Index) Reload(ctx context.Context) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	type result struct {
		snap *Snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		snap, err := idx.loader.Load(ctx)
		ch <- result{snap, err}
	}()

	select {
	case <-ctx.Done():
		return apperror.Wrap(apperror.KindContent, "reload cancelled", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return apperror.Wrap(apperror.KindContent, "reload content tree", r.err)
		}
		idx.data.Store(&indexData{
			posts:  r.snap.Posts,
			series: r.snap.Series,
			etag:   computeETag(r.snap.Posts, r.snap.Series),
		})
		return nil
	}
}

func (idx *Index) snapshot() *indexData { return idx.data.Load() }

// ETag returns the strong validator for the current snapshot (§3).
func (idx *Index) ETag() string { return idx.snapshot().etag }

// GetPost returns the post by slug, regardless of visibility — callers
// apply the visibility check themselves (§4.D).
func (idx *Index) GetPost(slug string) (*Post, bool) {
	p, ok := idx.snapshot().posts[slug]
	return p, ok
}

// GetSeries returns the series by slug with member posts resolved in
// order, regardless of visibility.
func (idx *Index) GetSeries(slug string) (*Series, []*Post, bool) {
	snap := idx.snapshot()
	s, ok := snap.series[slug]
	if !ok {
		return nil, nil, false
	}
	members := orderedMembers(s, snap.posts)
	return s, members, true
}

// ListOptions controls pagination and draft/scheduled visibility in
// listing endpoints (§4.D). Limit uses -1 to mean "unspecified, apply
// the default of 50"; an explicit 0 is a valid request for an empty
// page (§8 boundary behavior) and is preserved as 0, not defaulted.
type ListOptions struct {
	IncludeDrafts    bool
	IncludeScheduled bool
	Limit            int
	Offset           int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Page is a generic paginated result.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// ListPosts returns a visibility-filtered, ordered page of posts (§4.D).
func (idx *Index) ListPosts(opts ListOptions, now time.Time) Page[*Post] {
	snap := idx.snapshot()
	limit, offset := clampPaging(opts.Limit, opts.Offset)

	var visible []*Post
	for _, p := range snap.posts {
		if postVisible(p, opts, now) {
			visible = append(visible, p)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return lessByGoesLiveThenSlug(visible[i].GoesLiveAt, visible[i].Slug, visible[j].GoesLiveAt, visible[j].Slug) })

	return paginate(visible, limit, offset)
}

// ListSeries returns a visibility-filtered, ordered page of series.
func (idx *Index) ListSeries(opts ListOptions, now time.Time) Page[*Series] {
	snap := idx.snapshot()
	limit, offset := clampPaging(opts.Limit, opts.Offset)

	var visible []*Series
	for _, s := range snap.series {
		if seriesVisible(s, opts, now) {
			visible = append(visible, s)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return lessByGoesLiveThenSlug(visible[i].GoesLiveAt, visible[i].Slug, visible[j].GoesLiveAt, visible[j].Slug) })

	return paginate(visible, limit, offset)
}

func postVisible(p *Post, opts ListOptions, now time.Time) bool {
	switch p.Visibility(now) {
	case VisibilityDraft:
		return opts.IncludeDrafts
	case VisibilityScheduled:
		return opts.IncludeScheduled
	default:
		return true
	}
}

func seriesVisible(s *Series, opts ListOptions, now time.Time) bool {
	switch s.Visibility(now) {
	case VisibilityDraft:
		return opts.IncludeDrafts
	case VisibilityScheduled:
		return opts.IncludeScheduled
	default:
		return true
	}
}

func lessByGoesLiveThenSlug(ai *time.Time, aSlug string, bi *time.Time, bSlug string) bool {
	switch {
	case ai == nil && bi == nil:
		return aSlug < bSlug
	case ai == nil:
		return false // nil sorts to the end
	case bi == nil:
		return true
	case ai.Equal(*bi):
		return aSlug < bSlug
	default:
		return ai.After(*bi) // descending: newest first
	}
}

func clampPaging(limit, offset int) (int, int) {
	if limit < 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate[T any](items []T, limit, offset int) Page[T] {
	total := len(items)
	if offset >= total {
		return Page[T]{Items: []T{}, Total: total, Limit: limit, Offset: offset}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := items[offset:end]
	if out == nil {
		out = []T{}
	}
	return Page[T]{Items: out, Total: total, Limit: limit, Offset: offset}
}

func orderedMembers(s *Series, posts map[string]*Post) []*Post {
	members := make([]*Post, 0, len(s.Members))
	for _, slug := range s.Members {
		if p, ok := posts[slug]; ok {
			members = append(members, p)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		oi, oj := members[i].Order, members[j].Order
		switch {
		case oi == nil && oj == nil:
			return members[i].Slug < members[j].Slug
		case oi == nil:
			return false
		case oj == nil:
			return true
		case *oi == *oj:
			return members[i].Slug < members[j].Slug
		default:
			return *oi < *oj
		}
	})
	return members
}

// computeETag implements §3's deterministic strong-validator ETag:
// SHA-256 over sorted post slugs, each post's content bytes, and sorted
// series slugs, hex-encoded and wrapped in ASCII double quotes.
func computeETag(posts map[string]*Post, series map[string]*Series) string {
	h := sha256.New()

	postSlugs := make([]string, 0, len(posts))
	for slug := range posts {
		postSlugs = append(postSlugs, slug)
	}
	sort.Strings(postSlugs)
	for _, slug := range postSlugs {
		h.Write([]byte(slug))
		h.Write([]byte(posts[slug].Content))
	}

	seriesSlugs := make([]string, 0, len(series))
	for slug := range series {
		seriesSlugs = append(seriesSlugs, slug)
	}
	sort.Strings(seriesSlugs)
	for _, slug := range seriesSlugs {
		h.Write([]byte(slug))
	}

	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
