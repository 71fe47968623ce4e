package filtmgr

import (
	"sync"
	"sync/atomic"

	"github.com/oriys/bloomd/internal/bloom"
)

// wrapper is the manager-side object owning one named filter plus its
// lock and lifecycle flags. Once isActive becomes false it never
// becomes true again; a wrapper with isActive == false is reachable
// from exactly one version's deleted slot and from no version's index.
type wrapper struct {
	filter *bloom.Filter

	isActive     atomic.Bool
	isHot        atomic.Bool
	shouldDelete atomic.Bool

	rwlock sync.RWMutex

	// custom is non-nil only when this wrapper was created with a
	// per-filter config distinct from the manager default.
	custom *bloom.Config
}

func newWrapper(f *bloom.Filter, custom *bloom.Config) *wrapper {
	w := &wrapper{filter: f, custom: custom}
	w.isActive.Store(true)
	w.isHot.Store(true)
	return w
}

// take returns the wrapper named name in v, or nil if it is absent or
// no longer active. It raises v.isHot as a side effect of being
// dereferenced; the caller is responsible for raising the wrapper's own
// isHot once it has actually touched the filter. take does no locking
// beyond the map lookup — acquiring rwlock before touching filter is
// the caller's job.
func take(v *version, name string) *wrapper {
	v.isHot.Store(true)
	w, ok := v.index[name]
	if !ok || !w.isActive.Load() {
		return nil
	}
	return w
}

// deleteFilter performs a wrapper's final teardown: delete (remove
// on-disk state) if shouldDelete, otherwise close (flush + release
// memory, keep on-disk state), then destroy the engine handle. The caller must guarantee no goroutine
// holds w.rwlock — true either because the vacuum's cooldown has
// elapsed or because this runs during single-threaded manager teardown.
func deleteFilter(w *wrapper) error {
	var err error
	if w.shouldDelete.Load() {
		err = w.filter.Delete()
	} else {
		err = w.filter.Close()
	}
	w.filter.Destroy()
	w.filter = nil
	w.custom = nil
	return err
}
