package filtmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/bloomd/internal/bloom"
	"github.com/oriys/bloomd/internal/logging"
	"github.com/oriys/bloomd/internal/metrics"
)

// Init allocates a manager rooted at dataDir, using defaultConfig for
// filters created or discovered without an override. Discovery runs
// synchronously as part of Init; the vacuum worker is not started
// until StartWorker is called.
func Init(dataDir string, defaultConfig bloom.Config) (*Manager, error) {
	m := &Manager{
		defaultConfig: defaultConfig,
		dataDir:       dataDir,
	}

	v0 := newInitialVersion()
	v0.index = discover(dataDir, defaultConfig)
	m.latest.Store(v0)

	metrics.SetActiveFilters(len(v0.index))
	logging.Op().Info("filtmgr: initialized", "data_dir", dataDir, "filters_discovered", len(v0.index))
	return m, nil
}

// StartWorker spawns the vacuum goroutine against ctx, waking every
// tick to check whether the published version has advanced and
// cooling a retired version for cooldown before reclaiming it. A
// non-positive tick falls back to defaultVacuumTick.
func (m *Manager) StartWorker(ctx context.Context, tick, cooldown time.Duration) {
	if tick <= 0 {
		tick = defaultVacuumTick
	}
	vctx, cancel := context.WithCancel(ctx)
	m.vacuumCancel = cancel
	m.vacuumDone = make(chan struct{})
	go m.runVacuum(vctx, tick, cooldown)
}

// StopWorker requests the vacuum worker exit and blocks until it has.
func (m *Manager) StopWorker() {
	if m.vacuumCancel == nil {
		return
	}
	m.vacuumCancel()
	<-m.vacuumDone
}

// Destroy tears the manager down. Precondition: the vacuum worker has
// already been stopped (StopWorker returned). It finalizes every
// wrapper in the current version's index whose shouldDelete is false —
// which closes it and keeps its on-disk state, since teardown is not
// the same as an explicit drop — then walks the version chain from latest to
// oldest, finalizing any wrapper parked in each version's deleted slot
// and destroying the version itself.
func (m *Manager) Destroy() error {
	latest := m.latest.Load()

	var firstErr error
	for _, w := range latest.index {
		// Active wrappers reaching teardown are never marked for
		// deletion (drop/clear already moved those out of the index
		// into a version's deleted slot); this is a defensive check,
		// not an expected branch.
		if w.shouldDelete.Load() {
			continue
		}
		if err := deleteFilter(w); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("filtmgr: teardown: %w", err)
		}
	}

	for v := latest; v != nil; {
		next := v.prev
		if v.deleted != nil {
			if err := deleteFilter(v.deleted); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("filtmgr: teardown: %w", err)
			}
		}
		destroyVersion(v)
		v = next
	}

	logging.Op().Info("filtmgr: destroyed")
	return firstErr
}
