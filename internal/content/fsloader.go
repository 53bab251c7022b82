package content

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// postConfig and seriesConfig mirror config.toml/series.toml (§6).
type postConfig struct {
	Title        string   `toml:"title"`
	Subtitle     string   `toml:"subtitle"`
	PreviewText  string   `toml:"preview_text"`
	PreviewImage string   `toml:"preview_image"`
	Tags         []string `toml:"tags"`
	GoesLiveAt   *time.Time `toml:"goes_live_at"`
	Order        *int     `toml:"order"`
}

type seriesConfig struct {
	Title        string     `toml:"title"`
	Description  string     `toml:"description"`
	PreviewImage string     `toml:"preview_image"`
	GoesLiveAt   *time.Time `toml:"goes_live_at"`
}

// FSLoader implements Loader by walking a content directory tree laid
// out per §6: one subdirectory per slug, each holding config.toml plus
// content.mdx, and optionally series.toml plus member subdirectories.
type FSLoader struct {
	ContentDir string
	logger     *log.Logger
}

// NewFSLoader constructs a filesystem Loader rooted at contentDir. A nil
// logger defaults to a "[riley-cms:content]"-prefixed stdlib logger,
// matching the package's per-subsystem logging convention.
func NewFSLoader(contentDir string, logger *log.Logger) *FSLoader {
	if logger == nil {
		logger = log.New(log.Writer(), "[riley-cms:content] ", log.LstdFlags)
	}
	return &FSLoader{ContentDir: contentDir, logger: logger}
}

// Load walks ContentDir top-down. A top-level directory is a series if
// it contains series.toml, otherwise a standalone post if it contains
// config.toml. A malformed individual item is logged and skipped (§7
// Content errors are non-fatal); the walk itself failing is fatal.
func (l *FSLoader) Load(ctx context.Context) (*Snapshot, error) {
	entries, err := os.ReadDir(l.ContentDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindIO, "read content dir "+l.ContentDir, err)
	}

	snap := &Snapshot{
		Posts:  map[string]*Post{},
		Series: map[string]*Series{},
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, apperror.Wrap(apperror.KindIO, "content load canceled", ctx.Err())
		}
		if !entry.IsDir() {
			continue
		}
		slug := entry.Name()
		dir := filepath.Join(l.ContentDir, slug)

		if _, err := os.Stat(filepath.Join(dir, "series.toml")); err == nil {
			series, members, err := l.loadSeries(dir, slug)
			if err != nil {
				l.logger.Printf("skipping series %q: %v", slug, err)
				continue
			}
			snap.Series[slug] = series
			for memberSlug, p := range members {
				snap.Posts[memberSlug] = p
			}
			continue
		}

		if _, err := os.Stat(filepath.Join(dir, "config.toml")); err == nil {
			p, err := l.loadPost(dir, slug, "")
			if err != nil {
				l.logger.Printf("skipping post %q: %v", slug, err)
				continue
			}
			snap.Posts[slug] = p
		}
	}

	return snap, nil
}

func (l *FSLoader) loadSeries(dir, slug string) (*Series, map[string]*Post, error) {
	data, err := os.ReadFile(filepath.Join(dir, "series.toml"))
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindContent, "read series.toml", err)
	}
	var cfg seriesConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, apperror.Wrap(apperror.KindContent, "parse series.toml", err)
	}
	if cfg.Title == "" {
		return nil, nil, apperror.New(apperror.KindContent, "series.toml missing required title")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindContent, "read series dir", err)
	}

	members := map[string]*Post{}
	var memberSlugs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		memberSlug := entry.Name()
		memberDir := filepath.Join(dir, memberSlug)
		if _, err := os.Stat(filepath.Join(memberDir, "config.toml")); err != nil {
			continue
		}
		p, err := l.loadPost(memberDir, memberSlug, slug)
		if err != nil {
			l.logger.Printf("skipping series %q member %q: %v", slug, memberSlug, err)
			continue
		}
		members[memberSlug] = p
		memberSlugs = append(memberSlugs, memberSlug)
	}
	sort.Strings(memberSlugs)

	return &Series{
		Slug:         slug,
		Title:        cfg.Title,
		Description:  cfg.Description,
		PreviewImage: cfg.PreviewImage,
		GoesLiveAt:   cfg.GoesLiveAt,
		Members:      memberSlugs,
	}, members, nil
}

func (l *FSLoader) loadPost(dir, slug, seriesSlug string) (*Post, error) {
	cfgData, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindContent, "read config.toml", err)
	}
	var cfg postConfig
	if err := toml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, apperror.Wrap(apperror.KindContent, "parse config.toml", err)
	}
	if cfg.Title == "" {
		return nil, apperror.New(apperror.KindContent, "config.toml missing required title")
	}
	if cfg.PreviewText == "" {
		return nil, apperror.New(apperror.KindContent, "config.toml missing required preview_text")
	}

	body, err := os.ReadFile(filepath.Join(dir, "content.mdx"))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindContent, "read content.mdx", err)
	}
	if len(body) == 0 {
		return nil, apperror.New(apperror.KindContent, "content.mdx must not be empty")
	}

	var goesLiveAt *time.Time
	if cfg.GoesLiveAt != nil {
		utc := cfg.GoesLiveAt.UTC()
		goesLiveAt = &utc
	}

	return &Post{
		Slug:         slug,
		Title:        cfg.Title,
		Subtitle:     cfg.Subtitle,
		PreviewText:  cfg.PreviewText,
		PreviewImage: cfg.PreviewImage,
		Tags:         cfg.Tags,
		GoesLiveAt:   goesLiveAt,
		SeriesSlug:   seriesSlug,
		Content:      string(body),
		Order:        cfg.Order,
	}, nil
}
