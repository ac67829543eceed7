package dedup

import (
	"context"
	"testing"

	"dealscan-engine/internal/domain"
)

type fakeStore struct {
	exact map[string]bool
	soft  map[string]bool
	calls int
}

func (s *fakeStore) ExistsFingerprint(_ context.Context, fp string) (bool, error) {
	s.calls++
	return s.exact[fp], nil
}

func (s *fakeStore) ExistsSoftFingerprint(_ context.Context, soft string) (bool, error) {
	return s.soft[soft], nil
}

func TestIsNewReturnsTrueExactlyOnce(t *testing.T) {
	idx := NewIndex(&fakeStore{exact: map[string]bool{}})
	ctx := context.Background()

	first, err := idx.IsNew(ctx, "abc")
	if err != nil || !first {
		t.Fatalf("first sighting: (%v, %v), want (true, nil)", first, err)
	}

	for i := 0; i < 3; i++ {
		again, _ := idx.IsNew(ctx, "abc")
		if again {
			t.Fatalf("sighting %d returned true again", i+2)
		}
	}
}

func TestIsNewConsultsStore(t *testing.T) {
	store := &fakeStore{exact: map[string]bool{"known": true}}
	idx := NewIndex(store)

	isNew, _ := idx.IsNew(context.Background(), "known")
	if isNew {
		t.Error("fingerprint already in store reported as new")
	}
}

func TestIsNewCachesStoreHits(t *testing.T) {
	store := &fakeStore{exact: map[string]bool{"known": true}}
	idx := NewIndex(store)
	ctx := context.Background()

	idx.IsNew(ctx, "known")
	idx.IsNew(ctx, "known")
	if store.calls != 1 {
		t.Errorf("store consulted %d times, want 1 (cache miss only)", store.calls)
	}
}

func TestIsNewEmptyFingerprint(t *testing.T) {
	idx := NewIndex(&fakeStore{exact: map[string]bool{}})
	if isNew, _ := idx.IsNew(context.Background(), ""); isNew {
		t.Error("empty fingerprint must never be new")
	}
}

func TestIsNearDuplicateAdvisory(t *testing.T) {
	idx := NewIndex(&fakeStore{exact: map[string]bool{}, soft: map[string]bool{}})
	ctx := context.Background()

	// A soft check never registers anything.
	if dup, _ := idx.IsNearDuplicate(ctx, "s1"); dup {
		t.Fatal("unknown soft fingerprint reported as duplicate")
	}
	if dup, _ := idx.IsNearDuplicate(ctx, "s1"); dup {
		t.Error("soft check must not register the fingerprint")
	}

	idx.Register(&domain.Listing{Fingerprint: "f1", SoftFingerprint: "s1"})
	if dup, _ := idx.IsNearDuplicate(ctx, "s1"); !dup {
		t.Error("registered soft fingerprint not detected")
	}
}

func TestPreload(t *testing.T) {
	idx := NewIndex(&fakeStore{exact: map[string]bool{}, soft: map[string]bool{}})
	idx.Preload([]string{"f1"}, []string{"s1"})
	ctx := context.Background()

	if isNew, _ := idx.IsNew(ctx, "f1"); isNew {
		t.Error("preloaded fingerprint reported as new")
	}
	if dup, _ := idx.IsNearDuplicate(ctx, "s1"); !dup {
		t.Error("preloaded soft fingerprint not detected")
	}
}
