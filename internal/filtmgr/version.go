package filtmgr

import "sync/atomic"

// version is one MVCC snapshot of the name→wrapper index. A published
// version's index is never mutated. Its deleted field is assigned
// exactly once, at the moment a newer version supersedes it; isHot is
// raised by readers and lowered by the vacuum worker, which also clears
// prev.
type version struct {
	vsn uint64

	index map[string]*wrapper

	// deleted holds the one wrapper, if any, that was removed from
	// index when this version was superseded by a newer one. It is
	// nil until that happens and is read exactly once, by the vacuum
	// worker retiring this version.
	deleted *wrapper

	isHot atomic.Bool

	// prev back-links to the immediately older version. The vacuum
	// worker owns clearing this once the chain below has been
	// reclaimed.
	prev *version
}

// newInitialVersion builds version 0: an empty index, no predecessor.
func newInitialVersion() *version {
	v := &version{index: make(map[string]*wrapper)}
	v.isHot.Store(true)
	return v
}

// createNewVersion allocates a fresh version with vsn = latest.vsn+1,
// prev = latest, and an index that is a shallow copy of latest's
// (wrappers are shared, not cloned). Precondition: caller holds the
// manager's write mutex.
func createNewVersion(latest *version) *version {
	nv := &version{
		vsn:   latest.vsn + 1,
		prev:  latest,
		index: make(map[string]*wrapper, len(latest.index)),
	}
	nv.isHot.Store(true)
	for name, w := range latest.index {
		nv.index[name] = w
	}
	return nv
}

// destroyVersion releases a version's own container. It never touches
// the wrappers referenced by index or deleted.
func destroyVersion(v *version) {
	v.index = nil
	v.prev = nil
}
