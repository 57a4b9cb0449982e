package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ctxloom/ctxloom/internal/config"
)

// Store holds full chunk/summary text out of the hot metadata path.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Factory func(cfg config.BlobStoreConfig) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.BlobStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("blob_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported blob store: %s", cfg.Type)
	}
	return factory(cfg)
}

// ChunkKey derives the blob key for a chunk id.
func ChunkKey(chunkID string) string {
	return "chunk/" + chunkID
}

// SummaryKey derives the blob key for a summary id.
func SummaryKey(summaryID string) string {
	return "summary/" + summaryID
}
