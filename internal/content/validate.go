package content

import "fmt"

// ValidationError describes one structural problem found by Validate,
// identifying the offending slug and a human-readable message (§4.D).
type ValidationError struct {
	Slug    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Slug, v.Message)
}

// Validate checks the invariants from §3 against the current snapshot:
// non-empty title/preview_text/content on every post, and every series
// member slug resolving to a post whose series_slug matches.
func (idx *Index) Validate() []ValidationError {
	snap := idx.snapshot()
	var errs []ValidationError

	for slug, p := range snap.posts {
		if p.Title == "" {
			errs = append(errs, ValidationError{Slug: slug, Message: "title must not be empty"})
		}
		if p.PreviewText == "" {
			errs = append(errs, ValidationError{Slug: slug, Message: "preview_text must not be empty"})
		}
		if p.Content == "" {
			errs = append(errs, ValidationError{Slug: slug, Message: "content must not be empty"})
		}
	}

	for slug, s := range snap.series {
		if s.Title == "" {
			errs = append(errs, ValidationError{Slug: slug, Message: "title must not be empty"})
		}
		for _, memberSlug := range s.Members {
			p, ok := snap.posts[memberSlug]
			if !ok {
				errs = append(errs, ValidationError{Slug: slug, Message: "member " + memberSlug + " does not exist"})
				continue
			}
			if p.SeriesSlug != slug {
				errs = append(errs, ValidationError{Slug: slug, Message: "member " + memberSlug + " has series_slug " + p.SeriesSlug})
			}
		}
	}

	return errs
}
