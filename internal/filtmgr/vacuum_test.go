package filtmgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oriys/bloomd/internal/bloom"
)

func TestVacuumRetiresChainAfterCooldowns(t *testing.T) {
	dir := t.TempDir()
	m, err := Init(dir, bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()

	const cooldown = 20 * time.Millisecond
	m.StartWorker(ctx, 5*time.Millisecond, cooldown)
	defer m.StopWorker()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if err := m.DropFilter(ctx, "a"); err != nil {
		t.Fatalf("DropFilter: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m.latest.Load().prev == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected vacuum to collapse the version chain to a single node")
}

func TestDropConcurrentWithCheckNeverCorrupts(t *testing.T) {
	dir := t.TempDir()
	m, err := Init(dir, bloom.Config{Capacity: 1000, FPRate: 0.01, InMemory: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()

	m.StartWorker(ctx, 5*time.Millisecond, 15*time.Millisecond)
	defer m.StopWorker()

	if err := m.CreateFilter(ctx, "a", nil); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if _, err := m.SetKeys(ctx, "a", keysOf("x")); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			r, err := m.CheckKeys(ctx, "a", keysOf("x"))
			if err != nil && err != ErrNotFound {
				t.Errorf("unexpected CheckKeys error: %v", err)
				return
			}
			if err == nil && len(r) != 1 {
				t.Errorf("unexpected result length: %v", r)
				return
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	if err := m.DropFilter(ctx, "a"); err != nil {
		t.Fatalf("DropFilter: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	if _, err := m.CheckKeys(ctx, "a", keysOf("x")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after drop settles, got %v", err)
	}
}
