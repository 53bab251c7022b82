package server

import (
	"fmt"
	"net/http"
)

// applyCacheHeaders sets the §4.G cache-header pair: admin responses
// are never cached; public responses carry the configured max-age /
// stale-while-revalidate window plus the index's current ETag so
// clients can revalidate cheaply across a push.
func applyCacheHeaders(w http.ResponseWriter, admin bool, maxAge, staleWhileRevalidate int, etag string) {
	if admin {
		w.Header().Set("Cache-Control", "private, no-store")
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, staleWhileRevalidate))
	w.Header().Set("ETag", etag)
}
