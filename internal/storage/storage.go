// Package storage is the injectable S3-compatible object-storage
// collaborator (§1): binary asset listing and upload. The HTTP and CLI
// layers depend only on the Store interface, never on minio-go
// directly, so tests can substitute an in-memory fake.
package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maypok86/otter/v2"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// Asset is a single object-storage entry as surfaced over the API
// (§6 wire formats).
type Asset struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// ListOptions filters and paginates a List call. Prefix additionally
// accepts a doublestar glob pattern (e.g. "images/**/*.png"); a plain
// prefix string (no glob metacharacters) behaves exactly like an S3
// prefix listing.
type ListOptions struct {
	Prefix            string
	ContinuationToken string
	MaxKeys           int
}

// ListResult is one page of a List call.
type ListResult struct {
	Assets                []Asset
	NextContinuationToken string
}

// Store is the object-storage collaborator interface every handler and
// CLI command depends on.
type Store interface {
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Asset, error)
	PublicURL(key string) string
}

const defaultMaxKeys = 100

// hasGlobMeta reports whether prefix contains doublestar glob
// metacharacters, distinguishing a plain S3 prefix from a glob pattern.
func hasGlobMeta(prefix string) bool {
	return strings.ContainsAny(prefix, "*?[{")
}

// filterByGlob keeps only assets whose key matches pattern, used when a
// caller's `prefix` option is actually a glob (e.g. `images/**/*.png`)
// rather than a literal S3 prefix.
func filterByGlob(assets []Asset, pattern string) ([]Asset, error) {
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		ok, err := doublestar.Match(pattern, a.Key)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindBadRequest, "invalid asset glob pattern", err)
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// cacheKey identifies a cached listing page.
type cacheKey struct {
	prefix            string
	continuationToken string
	maxKeys           int
}

// listingCache is a short-TTL cache in front of Store.List, backed by
// otter/v2, mirroring the same pairing (minio-go + otter) a sibling
// git-backed static asset service keeps in front of its own S3 listing
// calls: listings change only on a content push or upload, so a few
// seconds of staleness is an acceptable trade for cutting
// list-objects round trips under read traffic.
type listingCache struct {
	c *otter.Cache[cacheKey, ListResult]
}

func newListingCache(ttl time.Duration) *listingCache {
	c := otter.Must(&otter.Options[cacheKey, ListResult]{
		MaximumSize:      1024,
		ExpiryCalculator: otter.ExpiryWriting[cacheKey, ListResult](ttl),
	})
	return &listingCache{c: c}
}

func (c *listingCache) get(k cacheKey, _ time.Time) (ListResult, bool) {
	return c.c.GetIfPresent(k)
}

func (c *listingCache) put(k cacheKey, r ListResult, _ time.Time) {
	c.c.Set(k, r)
}

// invalidate drops every cached listing page. CLI upload paths call it
// so a subsequent `ls assets` in the same process sees the new object
// immediately instead of waiting out the TTL.
func (c *listingCache) invalidate() {
	c.c.InvalidateAll()
}
