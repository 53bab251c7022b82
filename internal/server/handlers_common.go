package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/riley-cms/riley-cms/internal/content"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// parseListOptions reads include_drafts/include_scheduled/limit/offset
// from the query string (§4.D, §4.F). Admin is required for either
// include flag to take effect; a non-admin request for drafts/scheduled
// is rejected with 401 before the handler ever touches the index.
func parseListOptions(r *http.Request, admin bool) (content.ListOptions, error) {
	q := r.URL.Query()

	wantDrafts := q.Get("include_drafts") == "true"
	wantScheduled := q.Get("include_scheduled") == "true"
	if (wantDrafts || wantScheduled) && !admin {
		return content.ListOptions{}, errUnauthorizedListFilter
	}

	limit := -1
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return content.ListOptions{}, errBadPagination
		}
		limit = n
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return content.ListOptions{}, errBadPagination
		}
		offset = n
	}

	return content.ListOptions{
		IncludeDrafts:    wantDrafts,
		IncludeScheduled: wantScheduled,
		Limit:            limit,
		Offset:           offset,
	}, nil
}

var (
	errUnauthorizedListFilter = newListError(http.StatusUnauthorized, "include_drafts/include_scheduled require an admin token")
	errBadPagination          = newListError(http.StatusBadRequest, "limit/offset must be non-negative integers")
)

type listError struct {
	status int
	msg    string
}

func (e *listError) Error() string { return e.msg }

func newListError(status int, msg string) *listError { return &listError{status: status, msg: msg} }

func writeListError(w http.ResponseWriter, err error) {
	if le, ok := err.(*listError); ok {
		writeError(w, le.status, le.msg)
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func now() time.Time { return time.Now().UTC() }
