package bloom

import (
	"fmt"
	"os"
	"sync"
)

// Filter is a single scalable Bloom filter: a growing chain of tiers,
// each tighter than the last, backed by a directory on disk. The filter
// manager holds exactly one Filter per name and serializes access to it
// through its own locking; Filter's own mutex only protects the
// resident/proxied transition and the tier slice itself.
type Filter struct {
	name string
	dir  string
	cfg  Config

	mu       sync.Mutex
	tiers    []*tier
	resident bool
}

// New opens or creates the named filter under dataDir. If a directory
// for name already exists on disk, its persisted tiers are loaded;
// discover controls whether that load happens eagerly (true, as when
// the manager is just starting up and wants the size leveling loaded
// aggressively) or lazily on first touch (false). A filter configured
// with Config.InMemory never proxies regardless of discover.
func New(cfg Config, dataDir, name string, discover bool) (*Filter, error) {
	f := &Filter{
		name: name,
		dir:  dataDir,
		cfg:  cfg,
	}

	meta, tiers, exists, err := load(dataDir, name)
	if err != nil {
		return nil, err
	}

	switch {
	case exists && (discover || cfg.InMemory):
		f.cfg = meta.Config
		f.tiers = tiers
		f.resident = true
	case exists:
		// Known to exist on disk but not loaded yet; ensureResident
		// will bring it in on first Add/Contains/Flush.
		f.cfg = meta.Config
		f.resident = false
	default:
		f.tiers = []*tier{newTier(cfg.Capacity, cfg.FPRate)}
		f.resident = true
		if err := f.save(); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// IsProxied reports whether this filter's bit arrays are not currently
// resident in memory. An in-memory-configured filter is never proxied.
func (f *Filter) IsProxied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.cfg.InMemory && !f.resident
}

// Config returns the configuration this filter was sized with.
func (f *Filter) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// ensureResident loads tiers off disk if they are not already in
// memory. Must be called with f.mu held.
func (f *Filter) ensureResident() error {
	if f.resident {
		return nil
	}
	_, tiers, exists, err := load(f.dir, f.name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bloom: %q: proxied filter missing its data on disk", f.name)
	}
	f.tiers = tiers
	f.resident = true
	return nil
}

// Add inserts key into the filter, growing a new tighter tier if the
// current top tier is at capacity.
func (f *Filter) Add(key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureResident(); err != nil {
		return err
	}

	h1, h2 := hashPair(key)
	top := f.tiers[len(f.tiers)-1]
	if top.full() {
		next := newTier(top.capacity*growthFactor, top.fpRate*tighteningRatio)
		f.tiers = append(f.tiers, next)
		top = next
	}
	top.set(h1, h2)
	return nil
}

// Contains reports whether key may have been added to the filter. A
// false result is authoritative; a true result may be a false positive.
func (f *Filter) Contains(key []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureResident(); err != nil {
		return false, err
	}

	h1, h2 := hashPair(key)
	for _, t := range f.tiers {
		if t.contains(h1, h2) {
			return true, nil
		}
	}
	return false, nil
}

// Flush persists the filter's current state to disk without releasing
// its resident tiers.
func (f *Filter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.resident {
		return nil
	}
	return f.save()
}

// Close flushes the filter and, unless it is configured in-memory,
// releases its resident tiers so a later touch proxies back in from
// disk. Close is idempotent: closing an already-proxied filter is a
// no-op rather than an error, since the manager's unmap path and its
// final-teardown path can both reach the same filter.
func (f *Filter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.resident {
		return nil
	}
	if err := f.save(); err != nil {
		return err
	}
	if f.cfg.InMemory {
		return nil
	}
	f.tiers = nil
	f.resident = false
	return nil
}

// Delete removes the filter's on-disk directory entirely. The caller
// is responsible for ensuring no further Add/Contains calls reach this
// Filter afterward.
func (f *Filter) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeAll(f.dir, f.name)
}

// Destroy releases in-memory resources without touching disk. The
// filter manager calls it as the last step of a filter's final
// teardown, after Close or Delete.
func (f *Filter) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers = nil
	f.resident = false
}

// Exists reports whether a filter named name has a directory on disk
// under dataDir, without loading it.
func Exists(dataDir, name string) bool {
	_, err := os.Stat(filterDir(dataDir, name))
	return err == nil
}
