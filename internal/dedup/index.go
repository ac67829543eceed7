// Package dedup keeps the two-tier fingerprint index: exact fingerprints are
// authoritative (a hit means the listing is already known), soft fingerprints
// are advisory (a hit flags a probable repost).
package dedup

import (
	"context"
	"sync"

	"dealscan-engine/internal/domain"
)

// Store is the persistence lookup behind the in-memory cache.
type Store interface {
	ExistsFingerprint(ctx context.Context, fp string) (bool, error)
	ExistsSoftFingerprint(ctx context.Context, soft string) (bool, error)
}

type Index struct {
	mu    sync.Mutex
	store Store
	seen  map[string]struct{}
	soft  map[string]struct{}
}

func NewIndex(store Store) *Index {
	return &Index{
		store: store,
		seen:  make(map[string]struct{}),
		soft:  make(map[string]struct{}),
	}
}

// IsNew reports whether the exact fingerprint has never been seen, and marks
// it seen. For any fingerprint it returns true at most once per process
// lifetime, and never if the store already holds it.
func (i *Index) IsNew(ctx context.Context, fp string) (bool, error) {
	if fp == "" {
		return false, nil
	}

	i.mu.Lock()
	_, hit := i.seen[fp]
	i.mu.Unlock()
	if hit {
		return false, nil
	}

	exists, err := i.store.ExistsFingerprint(ctx, fp)
	if err != nil {
		return false, err
	}

	i.mu.Lock()
	_, hit = i.seen[fp]
	i.seen[fp] = struct{}{}
	i.mu.Unlock()
	if hit {
		return false, nil
	}
	return !exists, nil
}

// IsNearDuplicate reports whether the soft fingerprint collides with a known
// listing. It never blocks storage; callers use it to suppress duplicate
// notifications when configured.
func (i *Index) IsNearDuplicate(ctx context.Context, soft string) (bool, error) {
	if soft == "" {
		return false, nil
	}

	i.mu.Lock()
	_, hit := i.soft[soft]
	i.mu.Unlock()
	if hit {
		return true, nil
	}

	return i.store.ExistsSoftFingerprint(ctx, soft)
}

// Register records a persisted listing's fingerprints in the cache.
func (i *Index) Register(l *domain.Listing) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if l.Fingerprint != "" {
		i.seen[l.Fingerprint] = struct{}{}
	}
	if l.SoftFingerprint != "" {
		i.soft[l.SoftFingerprint] = struct{}{}
	}
}

// Preload warms the cache with fingerprints of recent listings so a fresh
// process does not hammer the store for ads it saw yesterday.
func (i *Index) Preload(exact, soft []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, fp := range exact {
		i.seen[fp] = struct{}{}
	}
	for _, s := range soft {
		i.soft[s] = struct{}{}
	}
}
