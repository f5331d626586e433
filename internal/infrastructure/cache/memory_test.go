package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/macrolens/nutriresolve/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func sampleResult(name string, calories float64) *domain.ResolutionResult {
	return &domain.ResolutionResult{
		Query: "barcode:012345678905",
		Candidate: &domain.Candidate{
			ProductName:  name,
			ServingGrams: 30,
			Calories:     calories,
			ProteinG:     2,
			CarbsG:       20,
			FatG:         7,
			SourceID:     domain.SourceUSDA,
			Completeness: domain.CompletenessFlags{Calories: true, Protein: true, Carbs: true, Fat: true},
		},
		Origin:     domain.OriginConsensus,
		Confidence: 0.95,
		Agreeing:   []string{"openfoodfacts", "usda"},
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	want := sampleResult("Potato Chips", 150)
	if err := cache.Set(ctx, "k", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Candidate.ProductName != "Potato Chips" || got.Candidate.Calories != 150 {
		t.Errorf("Get() candidate = %+v", got.Candidate)
	}
	if got.Origin != domain.OriginConsensus || got.Confidence != 0.95 {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.Agreeing) != 2 {
		t.Errorf("Agreeing = %v, want 2 entries", got.Agreeing)
	}
}

func TestMemoryCache_StoredValueIsACopy(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	value := sampleResult("Granola", 200)
	if err := cache.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value.Candidate.Calories = 9999

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Candidate.Calories != 200 {
		t.Errorf("Calories = %v, want 200 (stored value must not alias caller)", got.Candidate.Calories)
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "non-existent-key")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_ExpiredEntryDeletedOnRead(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(WithClock(clock.Now))
	ctx := context.Background()

	if err := cache.Set(ctx, "k", sampleResult("Soda", 140), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(59 * time.Minute)
	if _, err := cache.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	clock.Advance(2 * time.Minute)
	// Not swept proactively
	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d before read, want 1", size)
	}

	if _, err := cache.Get(ctx, "k"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after expiry error = %v, want %v", err, domain.ErrCacheMiss)
	}
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d after expired read, want 0", size)
	}
}

func TestMemoryCache_PutOverwrites(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(WithClock(clock.Now))
	ctx := context.Background()

	_ = cache.Set(ctx, "k", sampleResult("Old", 100), time.Hour)
	clock.Advance(50 * time.Minute)
	_ = cache.Set(ctx, "k", sampleResult("New", 120), time.Hour)
	clock.Advance(50 * time.Minute)

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Candidate.ProductName != "New" {
		t.Errorf("ProductName = %q, want New", got.Candidate.ProductName)
	}
	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}
}

func TestMemoryCache_CorruptEntryIsMiss(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.setRaw("bad", []byte("{not json"), time.Hour)

	_, err := cache.Get(ctx, "bad")
	if !errors.Is(err, domain.ErrCacheCorrupt) {
		t.Errorf("Get() error = %v, want ErrCacheCorrupt", err)
	}
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, corrupt entry should be dropped", size)
	}
}

func TestMemoryCache_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewMemoryCache(WithMaxEntries(3))
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, key, sampleResult(key, 100), time.Hour); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	// Touch "a" so "b" becomes the oldest
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	_ = cache.Set(ctx, "d", sampleResult("d", 100), time.Hour)

	if size := cache.Size(); size != 3 {
		t.Errorf("Size() = %d, want 3", size)
	}
	if _, err := cache.Get(ctx, "b"); err != domain.ErrCacheMiss {
		t.Errorf("Get(b) error = %v, want eviction", err)
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, err := cache.Get(ctx, key); err != nil {
			t.Errorf("Get(%s) error = %v", key, err)
		}
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, sampleResult("x", 1), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, key); err != domain.ErrCacheMiss {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}

	// Deleting a missing key is not an error
	if err := cache.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete() missing key error = %v", err)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := cache.Set(ctx, key, sampleResult(key, float64(i)), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Fatalf("Size() = %d, want 5 before clear", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
	if _, err := cache.Get(ctx, "key-0"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after clear error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(WithMaxEntries(8))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%10)
			if err := cache.Set(ctx, key, sampleResult(key, float64(id)), time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			_, _ = cache.Get(ctx, key)
			_ = cache.Delete(ctx, fmt.Sprintf("key-%d", (id+1)%10))
		}(i)
	}
	wg.Wait()

	if size := cache.Size(); size > 8 {
		t.Errorf("Size() = %d, want <= 8", size)
	}
}
