// ABOUTME: Storage backend kinds and the contract every backend implements
// ABOUTME: A backend loads and persists the relational image and reports capacity
package storage

import (
	"context"
	"fmt"

	"github.com/harper/toolbox/internal/storage/kvstore"
)

// Kind names a storage backend.
type Kind string

const (
	KindIndexedStore  Kind = "indexed-store"
	KindDirectoryFile Kind = "directory-file"
	KindInMemory      Kind = "in-memory"
)

// FallbackOrder is the order backends are tried after any preferred one.
var FallbackOrder = []Kind{KindIndexedStore, KindDirectoryFile, KindInMemory}

// ParseKind validates a backend name. The empty string is allowed and means no preference.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindIndexedStore, KindDirectoryFile, KindInMemory:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown storage backend %q (want %s, %s or %s)",
		s, KindIndexedStore, KindDirectoryFile, KindInMemory)
}

// Quota is a capacity reading in bytes.
type Quota = kvstore.Quota

// Info describes the active backend.
type Info struct {
	Type      Kind   `json:"type"`
	Location  string `json:"location"`
	Size      int64  `json:"size"`
	Available int64  `json:"available"`
	Unlimited bool   `json:"unlimited"`
	Quota     *Quota `json:"quota,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Backend persists the relational image somewhere.
type Backend interface {
	Kind() Kind
	// Load returns the stored image, or nil when nothing is stored yet.
	Load(ctx context.Context) ([]byte, error)
	// Persist stores the current image.
	Persist(ctx context.Context, image []byte) error
	// Info reports location and capacity given the current image size.
	Info(ctx context.Context, imageSize int64) Info
	Close() error
}

// Opener creates a backend. Returning an error makes the manager try the next kind.
type Opener func(ctx context.Context) (Backend, error)

func candidates(preferred []Kind) []Kind {
	seen := map[Kind]bool{}
	var out []Kind
	for _, k := range append(append([]Kind(nil), preferred...), FallbackOrder...) {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
