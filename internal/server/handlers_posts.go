package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riley-cms/riley-cms/internal/content"
)

// PostSummary is the list-endpoint shape: everything but the body.
type PostSummary struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle,omitempty"`
	PreviewText  string   `json:"preview_text"`
	PreviewImage string   `json:"preview_image,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	GoesLiveAt   *string  `json:"goes_live_at,omitempty"`
	SeriesSlug   string   `json:"series_slug,omitempty"`
	Visibility   string   `json:"visibility"`
}

// Post is the single-item shape: PostSummary plus the body (§6).
type Post struct {
	PostSummary
	Content string `json:"content"`
}

func toPostSummary(p *content.Post, when timeNow) PostSummary {
	return PostSummary{
		Slug:         p.Slug,
		Title:        p.Title,
		Subtitle:     p.Subtitle,
		PreviewText:  p.PreviewText,
		PreviewImage: p.PreviewImage,
		Tags:         p.Tags,
		GoesLiveAt:   formatGoesLiveAt(p.GoesLiveAt),
		SeriesSlug:   p.SeriesSlug,
		Visibility:   p.Visibility(when()).String(),
	}
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r.Context())
	opts, err := parseListOptions(r, admin)
	if err != nil {
		writeListError(w, err)
		return
	}

	page := s.deps.Index.ListPosts(opts, now())
	summaries := make([]PostSummary, 0, len(page.Items))
	for _, p := range page.Items {
		summaries = append(summaries, toPostSummary(p, now))
	}

	applyCacheHeaders(w, admin, s.deps.Config.CacheMaxAge, s.deps.Config.CacheStaleWhileRevalidate, s.deps.Index.ETag())
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  summaries,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r.Context())
	slug := chi.URLParam(r, "slug")

	p, ok := s.deps.Index.GetPost(slug)
	if !ok || hiddenFromPublic(p.Visibility(now()), admin) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	applyCacheHeaders(w, admin, s.deps.Config.CacheMaxAge, s.deps.Config.CacheStaleWhileRevalidate, s.deps.Index.ETag())
	writeJSON(w, http.StatusOK, Post{PostSummary: toPostSummary(p, now), Content: p.Content})
}

func (s *Server) handleGetPostRaw(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r.Context())
	slug := chi.URLParam(r, "slug")

	p, ok := s.deps.Index.GetPost(slug)
	if !ok || hiddenFromPublic(p.Visibility(now()), admin) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	applyCacheHeaders(w, admin, s.deps.Config.CacheMaxAge, s.deps.Config.CacheStaleWhileRevalidate, s.deps.Index.ETag())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(p.Content))
}

// hiddenFromPublic reports whether a draft/scheduled single item must
// be hidden as a 404 from a non-admin (§4.F enumeration resistance).
func hiddenFromPublic(v content.Visibility, admin bool) bool {
	if admin {
		return false
	}
	return v == content.VisibilityDraft || v == content.VisibilityScheduled
}

// timeNow is the clock toPostSummary/toSeriesSummary consult when
// deriving an item's visibility. Handlers pass now, so each item's
// visibility comes from its own time.Now reading.
type timeNow func() time.Time

func formatGoesLiveAt(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(rfc3339)
	return &s
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"
