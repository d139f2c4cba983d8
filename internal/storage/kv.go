// ABOUTME: Indexed-store backend keeping the relational image in the key-value store
// ABOUTME: The image is one record of the images collection, keyed by app name
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/harper/toolbox/internal/storage/kvstore"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

type kvBackend struct {
	store *kvstore.Store
	name  string
	now   func() time.Time
}

func (b *kvBackend) Kind() Kind { return KindIndexedStore }

func (b *kvBackend) Load(ctx context.Context) ([]byte, error) {
	rec, err := b.store.Get(ctx, kvstore.CollectionImages, b.name)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	data, _ := rec["data"].(string)
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return image, nil
}

func (b *kvBackend) Persist(ctx context.Context, image []byte) error {
	_, err := b.store.Put(ctx, kvstore.CollectionImages, kvstore.Record{
		"name":       b.name,
		"data":       base64.StdEncoding.EncodeToString(image),
		"size":       len(image),
		"updated_at": sqlite.FormatTime(b.now()),
	})
	if err != nil {
		return fmt.Errorf("failed to persist image: %w", err)
	}
	return nil
}

func (b *kvBackend) Info(ctx context.Context, imageSize int64) Info {
	q := b.store.Estimate(ctx)
	location := b.store.Dir()
	if location == "" {
		location = "memory"
	}
	size := q.Usage
	if size == 0 {
		size = imageSize
	}
	return Info{
		Type:      KindIndexedStore,
		Location:  location,
		Size:      size,
		Available: q.Available,
		Quota:     &q,
	}
}

// Close leaves the store open; the manager owns it for flags and backups.
func (b *kvBackend) Close() error { return nil }
