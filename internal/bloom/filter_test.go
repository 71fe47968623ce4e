package bloom

import (
	"fmt"
	"testing"
)

func testConfig() Config {
	return Config{Capacity: 64, FPRate: 0.01, InMemory: true}
}

func TestFilterAddContains(t *testing.T) {
	dir := t.TempDir()
	f, err := New(testConfig(), dir, "widgets", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := f.Add([]byte("alpha")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.Add([]byte("beta")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ok, err := f.Contains([]byte("alpha"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatal("expected alpha to be a member")
	}

	ok, err = f.Contains([]byte("gamma"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatal("did not expect gamma to be reported as a member (false positive rate too small for this test fixture)")
	}
}

func TestFilterGrowsNewTierWhenFull(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Capacity: 4, FPRate: 0.1, InMemory: true}
	f, err := New(cfg, dir, "small", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 20; i++ {
		if err := f.Add([]byte(fmt.Sprintf("key-%d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	f.mu.Lock()
	tierCount := len(f.tiers)
	f.mu.Unlock()

	if tierCount < 2 {
		t.Fatalf("expected filter to have grown additional tiers, got %d", tierCount)
	}

	for i := 0; i < 20; i++ {
		ok, err := f.Contains([]byte(fmt.Sprintf("key-%d", i)))
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if !ok {
			t.Fatalf("expected key-%d to be a member after tier growth", i)
		}
	}
}

func TestFilterPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Capacity: 64, FPRate: 0.01, InMemory: false}

	f, err := New(cfg, dir, "durable", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := f.Add([]byte("persisted")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.IsProxied() {
		t.Fatal("expected filter to be proxied after Close with InMemory=false")
	}

	reopened, err := New(cfg, dir, "durable", false)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	if !reopened.IsProxied() {
		t.Fatal("expected lazily-reopened filter to start proxied")
	}

	ok, err := reopened.Contains([]byte("persisted"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted key to survive reload")
	}
	if reopened.IsProxied() {
		t.Fatal("expected Contains to have brought the filter resident")
	}
}

func TestFilterCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Capacity: 64, FPRate: 0.01, InMemory: false}
	f, err := New(cfg, dir, "idempotent", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestFilterDeleteRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	f, err := New(testConfig(), dir, "gone", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !Exists(dir, "gone") {
		t.Fatal("expected filter directory to exist before Delete")
	}
	if err := f.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if Exists(dir, "gone") {
		t.Fatal("expected filter directory to be gone after Delete")
	}
}

func TestConfigEqual(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if !a.Equal(b) {
		t.Fatal("two default configs should be equal")
	}
	b.Capacity *= 2
	if a.Equal(b) {
		t.Fatal("configs with different capacities should not be equal")
	}
}
