package pageindex

import (
	"context"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

type cachedIndex struct {
	modTime time.Time
	size    int64
	index   *domain.PageIndex
}

// CachingLoader reuses a parsed index until the file's size or mtime changes.
// Loaded indexes are immutable, so concurrent runs share them.
type CachingLoader struct {
	inner ports.PageIndexLoader
	cache *lru.Cache[string, cachedIndex]
}

func NewCachingLoader(inner ports.PageIndexLoader, size int) *CachingLoader {
	if size <= 0 {
		size = 8
	}
	cache, _ := lru.New[string, cachedIndex](size)
	return &CachingLoader{inner: inner, cache: cache}
}

func (l *CachingLoader) Load(ctx context.Context, path string) (*domain.PageIndex, error) {
	info, statErr := os.Stat(path)
	if statErr == nil {
		if hit, ok := l.cache.Get(path); ok && hit.modTime.Equal(info.ModTime()) && hit.size == info.Size() {
			return hit.index, nil
		}
	}

	index, err := l.inner.Load(ctx, path)
	if err != nil {
		l.cache.Remove(path)
		return nil, err
	}
	if statErr == nil {
		l.cache.Add(path, cachedIndex{modTime: info.ModTime(), size: info.Size(), index: index})
	}
	return index, nil
}
