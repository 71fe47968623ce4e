package filtmgr

import "errors"

// Sentinel errors returned by manager operations. Callers that need the
// old three-way success/not-found/internal-error return code can recover
// it with Code.
var (
	// ErrNotFound is returned when an operation names a filter that is
	// not currently known to the manager.
	ErrNotFound = errors.New("filtmgr: filter not found")

	// ErrAlreadyExists is returned by CreateFilter when a filter with
	// the requested name is already present.
	ErrAlreadyExists = errors.New("filtmgr: filter already exists")

	// ErrNotProxied is returned by ClearFilter when the named filter is
	// currently resident (not proxied) and therefore cannot be cleared.
	ErrNotProxied = errors.New("filtmgr: filter is not proxiable")

	// ErrEngine wraps a failure surfaced by the underlying Bloom engine
	// (disk I/O, corrupt persisted state, and similar).
	ErrEngine = errors.New("filtmgr: engine error")

	// ErrAlloc is the error kind for a failure to allocate a new
	// version or wrapper. No operation in this package returns it;
	// Code maps it to -2.
	ErrAlloc = errors.New("filtmgr: allocation failed")
)

// Code maps an error returned by this package to the manager's
// historical three-valued return code: 0 for success (nil error), -1
// for not-found/already-exists, and -2 for an internal error or
// precondition violation (engine failure, allocation failure, or
// ClearFilter against a resident filter). It exists for callers, such
// as the admin CLI, that bridge into a protocol expecting that
// convention.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return -1
	default:
		return -2
	}
}
