// ABOUTME: In-memory backend with no persistence target
// ABOUTME: Capacity is measured against a fixed assumed ceiling
package storage

import (
	"context"

	"github.com/harper/toolbox/internal/storage/kvstore"
)

// DefaultMemoryCeiling is the assumed capacity of the in-memory backend.
const DefaultMemoryCeiling int64 = 5 << 20

type memoryBackend struct {
	ceiling int64
}

func newMemoryBackend(ceiling int64) *memoryBackend {
	if ceiling <= 0 {
		ceiling = DefaultMemoryCeiling
	}
	return &memoryBackend{ceiling: ceiling}
}

func (b *memoryBackend) Kind() Kind { return KindInMemory }

func (b *memoryBackend) Load(context.Context) ([]byte, error) { return nil, nil }

func (b *memoryBackend) Persist(context.Context, []byte) error { return nil }

func (b *memoryBackend) Info(_ context.Context, imageSize int64) Info {
	q := kvstore.NewQuota(b.ceiling, imageSize)
	return Info{
		Type:      KindInMemory,
		Location:  "memory",
		Size:      imageSize,
		Available: q.Available,
		Quota:     &q,
	}
}

func (b *memoryBackend) Close() error { return nil }
