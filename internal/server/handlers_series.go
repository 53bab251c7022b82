package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riley-cms/riley-cms/internal/content"
)

// SeriesSummary is the list-endpoint shape.
type SeriesSummary struct {
	Slug         string  `json:"slug"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	PreviewImage string  `json:"preview_image,omitempty"`
	GoesLiveAt   *string `json:"goes_live_at,omitempty"`
	Visibility   string  `json:"visibility"`
}

// SeriesPostSummary is a member post as embedded in a single-series
// response (§6): PostSummary plus its position in the series.
type SeriesPostSummary struct {
	PostSummary
	Order *int `json:"order,omitempty"`
}

// SeriesDetail is the single-item shape: SeriesSummary plus ordered
// member posts.
type SeriesDetail struct {
	SeriesSummary
	Posts []SeriesPostSummary `json:"posts"`
}

func toSeriesSummary(s *content.Series, when timeNow) SeriesSummary {
	return SeriesSummary{
		Slug:         s.Slug,
		Title:        s.Title,
		Description:  s.Description,
		PreviewImage: s.PreviewImage,
		GoesLiveAt:   formatGoesLiveAt(s.GoesLiveAt),
		Visibility:   s.Visibility(when()).String(),
	}
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r.Context())
	opts, err := parseListOptions(r, admin)
	if err != nil {
		writeListError(w, err)
		return
	}

	page := s.deps.Index.ListSeries(opts, now())
	summaries := make([]SeriesSummary, 0, len(page.Items))
	for _, item := range page.Items {
		summaries = append(summaries, toSeriesSummary(item, now))
	}

	applyCacheHeaders(w, admin, s.deps.Config.CacheMaxAge, s.deps.Config.CacheStaleWhileRevalidate, s.deps.Index.ETag())
	writeJSON(w, http.StatusOK, map[string]any{
		"series": summaries,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r.Context())
	slug := chi.URLParam(r, "slug")

	series, members, ok := s.deps.Index.GetSeries(slug)
	if !ok || hiddenFromPublic(series.Visibility(now()), admin) {
		writeError(w, http.StatusNotFound, "series not found")
		return
	}

	memberSummaries := make([]SeriesPostSummary, 0, len(members))
	for _, m := range members {
		if hiddenFromPublic(m.Visibility(now()), admin) {
			continue
		}
		memberSummaries = append(memberSummaries, SeriesPostSummary{PostSummary: toPostSummary(m, now), Order: m.Order})
	}

	applyCacheHeaders(w, admin, s.deps.Config.CacheMaxAge, s.deps.Config.CacheStaleWhileRevalidate, s.deps.Index.ETag())
	writeJSON(w, http.StatusOK, SeriesDetail{SeriesSummary: toSeriesSummary(series, now), Posts: memberSummaries})
}
