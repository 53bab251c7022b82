package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store fake used by handler tests; it
// accepts the same prefix, glob and continuation-token options as
// minioStore without talking to a real S3 endpoint. Unlike minioStore,
// it applies a glob before paginating, and it returns a continuation
// token only when more keys remain.
type MemoryStore struct {
	mu            sync.Mutex
	objects       map[string]memObject
	publicURLBase string
}

type memObject struct {
	data         []byte
	lastModified time.Time
}

func NewMemoryStore(publicURLBase string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject), publicURLBase: strings.TrimRight(publicURLBase, "/")}
}

func (m *MemoryStore) PublicURL(key string) string {
	return m.publicURLBase + "/" + strings.TrimLeft(key, "/")
}

func (m *MemoryStore) Upload(_ context.Context, key string, body io.Reader, size int64, _ string) (Asset, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return Asset{}, err
	}
	m.mu.Lock()
	m.objects[key] = memObject{data: data, lastModified: time.Now()}
	m.mu.Unlock()
	return Asset{Key: key, Size: int64(len(data)), LastModified: m.objects[key].lastModified, URL: m.PublicURL(key)}, nil
}

func (m *MemoryStore) List(_ context.Context, opts ListOptions) (ListResult, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)

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

	var all []Asset
	started := opts.ContinuationToken == ""
	for _, k := range keys {
		if !started {
			if k == opts.ContinuationToken {
				started = true
			}
			continue
		}
		if listPrefix != "" && !strings.HasPrefix(k, listPrefix) {
			continue
		}
		m.mu.Lock()
		obj := m.objects[k]
		m.mu.Unlock()
		all = append(all, Asset{Key: k, Size: int64(len(obj.data)), LastModified: obj.lastModified, URL: m.PublicURL(k)})
	}

	if glob != "" {
		filtered, err := filterByGlob(all, glob)
		if err != nil {
			return ListResult{}, err
		}
		all = filtered
	}

	result := ListResult{}
	if len(all) > maxKeys {
		result.Assets = all[:maxKeys]
		result.NextContinuationToken = all[maxKeys-1].Key
	} else {
		result.Assets = all
	}
	return result, nil
}
