package server

import (
	"net/http"
	"strconv"

	"github.com/riley-cms/riley-cms/internal/storage"
)

// handleListAssets serves the paginated asset listing (§4.G), admin
// only: a missing or mismatched token is a 401, not a 404, since the
// endpoint's existence is not a secret worth enumeration-resistance.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r.Context()) {
		writeError(w, http.StatusUnauthorized, "assets listing requires an admin token")
		return
	}

	q := r.URL.Query()
	opts := storage.ListOptions{
		Prefix:            q.Get("prefix"),
		ContinuationToken: q.Get("continuation_token"),
	}
	if raw := q.Get("max_keys"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_keys must be a non-negative integer")
			return
		}
		opts.MaxKeys = n
	}

	result, err := s.deps.Store.List(r.Context(), opts)
	if err != nil {
		writeAppError(w, s.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	resp := map[string]any{"assets": result.Assets}
	if result.NextContinuationToken != "" {
		resp["next_continuation_token"] = result.NextContinuationToken
	}
	writeJSON(w, http.StatusOK, resp)
}
