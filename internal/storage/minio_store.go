package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// MinioConfig is the subset of [storage] used to construct a
// minio-go-backed Store. Credentials are never read from riley_cms.toml
// (it has no credentials fields, §6) — they come from the standard
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN
// environment variables, the same convention every other S3-compatible
// CLI and SDK uses.
type MinioConfig struct {
	Endpoint      string
	Bucket        string
	Region        string
	PublicURLBase string
	UseSSL        bool
}

// minioStore is the concrete Store backed by any S3-compatible
// endpoint, with a short-TTL listing cache in front of ListObjects.
type minioStore struct {
	client        *minio.Client
	bucket        string
	publicURLBase string
	cache         *listingCache
}

const listingCacheTTL = 5 * time.Second

// NewMinioStore constructs a Store against cfg. It does not probe
// connectivity, and its callers make no startup reachability check;
// storage errors surface on the first List or Upload.
func NewMinioStore(cfg MinioConfig) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewEnvAWS(),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorage, "construct S3 client", err)
	}
	return &minioStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicURLBase: strings.TrimRight(cfg.PublicURLBase, "/"),
		cache:         newListingCache(listingCacheTTL),
	}, nil
}

func (s *minioStore) PublicURL(key string) string {
	return s.publicURLBase + "/" + strings.TrimLeft(key, "/")
}

func (s *minioStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	listPrefix := opts.Prefix
	glob := ""
	if hasGlobMeta(opts.Prefix) {
		listPrefix = literalPrefixOf(opts.Prefix)
		glob = opts.Prefix
	}

	key := cacheKey{prefix: listPrefix, continuationToken: opts.ContinuationToken, maxKeys: maxKeys}
	if cached, ok := s.cache.get(key, time.Now()); ok && glob == "" {
		return cached, nil
	}

	objCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:            listPrefix,
		StartAfter:        opts.ContinuationToken,
		MaxKeys:           maxKeys,
		WithMetadata:      false,
	})

	assets := make([]Asset, 0, maxKeys)
	var lastKey string
	for obj := range objCh {
		if obj.Err != nil {
			return ListResult{}, apperror.Wrap(apperror.KindStorage, "list objects", obj.Err)
		}
		assets = append(assets, Asset{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			URL:          s.PublicURL(obj.Key),
		})
		lastKey = obj.Key
		if len(assets) >= maxKeys {
			break
		}
	}

	result := ListResult{Assets: assets}
	if len(assets) == maxKeys && lastKey != "" {
		result.NextContinuationToken = lastKey
	}

	if glob != "" {
		filtered, err := filterByGlob(assets, glob)
		if err != nil {
			return ListResult{}, err
		}
		result.Assets = filtered
		return result, nil
	}

	s.cache.put(key, result, time.Now())
	return result, nil
}

// literalPrefixOf returns the longest prefix of pattern preceding its
// first glob metacharacter, used as the S3-side prefix filter before
// the doublestar match narrows results client-side.
func literalPrefixOf(pattern string) string {
	idx := strings.IndexAny(pattern, "*?[{")
	if idx < 0 {
		return pattern
	}
	cut := strings.LastIndexByte(pattern[:idx], '/')
	if cut < 0 {
		return ""
	}
	return pattern[:cut+1]
}

func (s *minioStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Asset, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Asset{}, apperror.Wrap(apperror.KindStorage, "put object", err)
	}
	s.cache.invalidate()

	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Asset{}, apperror.Wrap(apperror.KindStorage, "stat uploaded object", err)
	}
	return Asset{
		Key:          key,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		URL:          s.PublicURL(key),
	}, nil
}
