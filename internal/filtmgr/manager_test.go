package filtmgr

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/oriys/bloomd/internal/bloom"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := Init(dir, bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func keysOf(strs ...string) [][]byte {
	out := make([][]byte, len(strs))
	for i, s := range strs {
		out[i] = []byte(s)
	}
	return out
}

func TestEndToEndScenario1_FreshManagerCreateAndList(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if names := m.ListFilters(); len(names) != 0 {
		t.Fatalf("expected empty manager, got %v", names)
	}

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}

	names := m.ListFilters()
	if len(names) != 1 || names[0] != "a" {
		t.Fatalf("expected [a], got %v", names)
	}

	if got := m.latest.Load().vsn; got != 1 {
		t.Fatalf("expected vsn 1 after first create, got %d", got)
	}
}

func TestEndToEndScenario2_SetThenCheck(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}

	r, err := m.SetKeys(ctx, "a", keysOf("x", "y", "x"))
	if err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if want := []byte{1, 1, 0}; !bytesEqual(r, want) {
		t.Fatalf("SetKeys result = %v, want %v", r, want)
	}

	r, err = m.CheckKeys(ctx, "a", keysOf("x", "y", "z"))
	if err != nil {
		t.Fatalf("CheckKeys: %v", err)
	}
	if want := []byte{1, 1, 0}; !bytesEqual(r, want) {
		t.Fatalf("CheckKeys result = %v, want %v", r, want)
	}
}

func TestEndToEndScenario3_CreateExistsAndCheckMissing(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.CreateFilter(ctx, "a", nil); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := m.CheckKeys(ctx, "missing", keysOf("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEndToEndScenario4_DropRemovesFromListing(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.DropFilter(ctx, "a"); err != nil {
		t.Fatalf("DropFilter: %v", err)
	}
	if names := m.ListFilters(); len(names) != 0 {
		t.Fatalf("expected empty listing after drop, got %v", names)
	}
}

func TestEndToEndScenario6_ClearPreservesOnDisk(t *testing.T) {
	dir := t.TempDir()
	m, err := Init(dir, bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.UnmapFilter(ctx, "a"); err != nil {
		t.Fatalf("UnmapFilter: %v", err)
	}
	if err := m.ClearFilter(ctx, "a"); err != nil {
		t.Fatalf("ClearFilter: %v", err)
	}
	if names := m.ListFilters(); len(names) != 0 {
		t.Fatalf("expected empty listing after clear, got %v", names)
	}

	if !bloom.Exists(dir, "a") {
		t.Fatal("expected on-disk state for cleared filter to remain")
	}

	// Re-init should pick it back up via discovery.
	m2, err := Init(dir, bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: false})
	if err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	if names := m2.ListFilters(); len(names) != 1 || names[0] != "a" {
		t.Fatalf("expected re-init to rediscover [a], got %v", names)
	}
}

func TestDropThenCreateSucceedsImmediately(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.DropFilter(ctx, "a"); err != nil {
		t.Fatalf("DropFilter: %v", err)
	}
	// The name is released synchronously even though the wrapper's
	// final teardown happens later via the vacuum.
	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("expected immediate re-create to succeed, got %v", err)
	}
}

func TestDropUnknownFilter(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	if err := m.DropFilter(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearRejectsResidentFilter(t *testing.T) {
	m := testManager(t) // InMemory: true, so never proxied
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.ClearFilter(ctx, "a"); !errors.Is(err, ErrNotProxied) {
		t.Fatalf("expected ErrNotProxied, got %v", err)
	}
}

func TestListColdFiltersHarvestsOnSecondPass(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}

	// Freshly created filters are hot; the first ListColdFilters call
	// should lower the flag and report nothing cold yet.
	if cold := m.ListColdFilters(); len(cold) != 0 {
		t.Fatalf("expected no cold filters on first pass, got %v", cold)
	}

	// Now that isHot has been lowered and nothing has touched the
	// filter since, it should show up as cold.
	cold := m.ListColdFilters()
	if len(cold) != 1 || cold[0] != "a" {
		t.Fatalf("expected [a] to be cold on second pass, got %v", cold)
	}

	// Harvesting re-arms the hot flag, so an immediate repeat call
	// reports nothing.
	if cold := m.ListColdFilters(); len(cold) != 0 {
		t.Fatalf("expected harvesting to re-arm hot flag, got %v", cold)
	}
}

// TestEndToEndScenario5_DiscoveryAndColdListing exercises the literal
// restart scenario: a filter persisted by one manager is rediscovered
// by a fresh one pointed at the same data directory, reported cold on
// the first listing, and not reported again on an immediate repeat.
func TestEndToEndScenario5_DiscoveryAndColdListing(t *testing.T) {
	dir := t.TempDir()
	cfg := bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: false}

	m1, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	if err := m1.CreateFilter(ctx, "b", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}

	m2, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("re-Init: %v", err)
	}

	first := m2.ListColdFilters()
	if len(first) != 1 || first[0] != "b" {
		t.Fatalf("expected [b] cold on first listing after discovery, got %v", first)
	}

	second := m2.ListColdFilters()
	if len(second) != 0 {
		t.Fatalf("expected no cold filters on immediate repeat listing, got %v", second)
	}
}

func TestSetKeysConvergesAcrossConcurrentWriters(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := keysOf(keyName(w, i))
				if _, err := m.SetKeys(ctx, "a", key); err != nil {
					t.Errorf("SetKeys: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			r, err := m.CheckKeys(ctx, "a", keysOf(keyName(w, i)))
			if err != nil {
				t.Fatalf("CheckKeys: %v", err)
			}
			if r[0] != 1 {
				t.Fatalf("expected key %s to be a member after concurrent writes", keyName(w, i))
			}
		}
	}
}

func keyName(w, i int) string {
	return "writer-" + strconv.Itoa(w) + "-" + strconv.Itoa(i)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
