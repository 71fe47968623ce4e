// Package filtmgr implements bloomd's filter manager: a named
// collection of Bloom filters, mediated by an MVCC index over
// name→filter, per-filter reader/writer locks, and a background vacuum
// worker that reclaims old versions.
package filtmgr

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/bloomd/internal/bloom"
	"github.com/oriys/bloomd/internal/logging"
	"github.com/oriys/bloomd/internal/metrics"
	"github.com/oriys/bloomd/internal/observability"
)

// Manager owns the default filter config, the atomically published
// latest version, and the global write mutex that serializes
// destructive operations against one another.
type Manager struct {
	defaultConfig bloom.Config
	dataDir       string

	latest  atomic.Pointer[version]
	writeMu sync.Mutex

	vacuumCancel context.CancelFunc
	vacuumDone   chan struct{}
}

func (m *Manager) recordOp(ctx context.Context, op, name string, keys int, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dur := time.Since(start)
	metrics.RecordOp(op, outcome, float64(dur.Milliseconds()))

	span := observability.SpanFromContext(ctx)
	span.SetAttributes(
		observability.AttrOp.String(op),
		observability.AttrFilterName.String(name),
		observability.AttrKeysCount.Int(keys),
		observability.AttrDurationMs.Int64(dur.Milliseconds()),
	)
	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		observability.SetSpanOK(span)
	}

	// Most ops run outside an active trace (the CLI, for instance,
	// never starts one), so the audit trail still needs a way to
	// correlate entries for a single call; fall back to a generated
	// ID when the span isn't recording one.
	traceID := span.SpanContext().TraceID()
	traceIDStr := traceID.String()
	if !traceID.IsValid() {
		traceIDStr = uuid.New().String()
	}

	logging.Default().Log(&logging.OpLog{
		TraceID:    traceIDStr,
		Op:         op,
		Filter:     name,
		KeysCount:  keys,
		DurationMs: dur.Milliseconds(),
		Success:    err == nil,
		Error:      errString(err),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// CheckKeys reports, for each key, whether it may be a member of the
// named filter. A false result is authoritative; a true result may be
// a false positive, per Bloom filter semantics.
func (m *Manager) CheckKeys(ctx context.Context, name string, keys [][]byte) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "filtmgr.CheckKeys")
	defer span.End()
	start := time.Now()

	v := m.latest.Load()
	w := take(v, name)
	if w == nil {
		err := ErrNotFound
		m.recordOp(ctx, "check", name, len(keys), start, err)
		return nil, err
	}

	w.rwlock.RLock()
	defer w.rwlock.RUnlock()

	result := make([]byte, len(keys))
	for i, key := range keys {
		ok, err := w.filter.Contains(key)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
			m.recordOp(ctx, "check", name, len(keys), start, wrapped)
			return result, wrapped
		}
		if ok {
			result[i] = 1
		}
	}

	w.isHot.Store(true)
	metrics.Global().RecordCheck()
	m.recordOp(ctx, "check", name, len(keys), start, nil)
	return result, nil
}

// SetKeys inserts each key into the named filter. The result byte for
// a key is 1 if it was newly added, 0 if the filter already reported it
// as a (possibly false-positive) member.
func (m *Manager) SetKeys(ctx context.Context, name string, keys [][]byte) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "filtmgr.SetKeys")
	defer span.End()
	start := time.Now()

	v := m.latest.Load()
	w := take(v, name)
	if w == nil {
		err := ErrNotFound
		m.recordOp(ctx, "set", name, len(keys), start, err)
		return nil, err
	}

	w.rwlock.Lock()
	defer w.rwlock.Unlock()

	result := make([]byte, len(keys))
	for i, key := range keys {
		existed, err := w.filter.Contains(key)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
			m.recordOp(ctx, "set", name, len(keys), start, wrapped)
			return result, wrapped
		}
		if existed {
			continue
		}
		if err := w.filter.Add(key); err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
			m.recordOp(ctx, "set", name, len(keys), start, wrapped)
			return result, wrapped
		}
		result[i] = 1
	}

	w.isHot.Store(true)
	metrics.Global().RecordSet()
	m.recordOp(ctx, "set", name, len(keys), start, nil)
	return result, nil
}

// Flush asks the named filter's engine to persist its current state.
func (m *Manager) Flush(ctx context.Context, name string) error {
	ctx, span := observability.StartSpan(ctx, "filtmgr.Flush")
	defer span.End()
	start := time.Now()

	v := m.latest.Load()
	w := take(v, name)
	if w == nil {
		m.recordOp(ctx, "flush", name, 0, start, ErrNotFound)
		return ErrNotFound
	}

	if err := w.filter.Flush(); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
		m.recordOp(ctx, "flush", name, 0, start, wrapped)
		return wrapped
	}
	m.recordOp(ctx, "flush", name, 0, start, nil)
	return nil
}

// CreateFilter creates a new named filter. custom, if non-nil and
// distinct from the manager default, is owned by the new wrapper and
// used instead of the default for this filter only.
func (m *Manager) CreateFilter(ctx context.Context, name string, custom *bloom.Config) error {
	ctx, span := observability.StartSpan(ctx, "filtmgr.CreateFilter")
	defer span.End()
	start := time.Now()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	latest := m.latest.Load()
	if _, ok := latest.index[name]; ok {
		m.recordOp(ctx, "create", name, 0, start, ErrAlreadyExists)
		return ErrAlreadyExists
	}

	cfg := m.defaultConfig
	var owned *bloom.Config
	if custom != nil && !custom.Equal(m.defaultConfig) {
		cfg = *custom
		owned = custom
	}

	f, err := bloom.New(cfg, m.dataDir, name, true)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
		m.recordOp(ctx, "create", name, 0, start, wrapped)
		return wrapped
	}

	nv := createNewVersion(latest)
	nv.index[name] = newWrapper(f, owned)
	m.latest.Store(nv)

	metrics.Global().RecordCreate()
	metrics.SetActiveFilters(len(nv.index))
	m.recordOp(ctx, "create", name, 0, start, nil)
	return nil
}

// DropFilter removes the named filter from the live index. Final
// on-disk teardown happens later, once the vacuum worker has confirmed
// no in-flight reader still references the version that contained it.
func (m *Manager) DropFilter(ctx context.Context, name string) error {
	ctx, span := observability.StartSpan(ctx, "filtmgr.DropFilter")
	defer span.End()
	start := time.Now()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	latest := m.latest.Load()
	w, ok := latest.index[name]
	if !ok || !w.isActive.Load() {
		m.recordOp(ctx, "drop", name, 0, start, ErrNotFound)
		return ErrNotFound
	}

	w.isActive.Store(false)
	w.shouldDelete.Store(true)

	nv := createNewVersion(latest)
	delete(nv.index, name)
	// latest is about to be superseded by nv; it is the version that
	// still contained w; record that here so the vacuum finds it when
	// it eventually retires latest (by then nv.prev).
	latest.deleted = w

	m.latest.Store(nv)

	metrics.Global().RecordDrop()
	metrics.SetActiveFilters(len(nv.index))
	m.recordOp(ctx, "drop", name, 0, start, nil)
	return nil
}

// ClearFilter behaves like DropFilter but only succeeds against a
// filter that is currently proxied (not resident in memory), and
// preserves its on-disk state at final teardown rather than deleting
// it.
func (m *Manager) ClearFilter(ctx context.Context, name string) error {
	ctx, span := observability.StartSpan(ctx, "filtmgr.ClearFilter")
	defer span.End()
	start := time.Now()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	latest := m.latest.Load()
	w, ok := latest.index[name]
	if !ok || !w.isActive.Load() {
		m.recordOp(ctx, "clear", name, 0, start, ErrNotFound)
		return ErrNotFound
	}
	if !w.filter.IsProxied() {
		m.recordOp(ctx, "clear", name, 0, start, ErrNotProxied)
		return ErrNotProxied
	}

	w.isActive.Store(false)
	w.shouldDelete.Store(false)

	nv := createNewVersion(latest)
	delete(nv.index, name)
	latest.deleted = w

	m.latest.Store(nv)

	metrics.Global().RecordClear()
	metrics.SetActiveFilters(len(nv.index))
	m.recordOp(ctx, "clear", name, 0, start, nil)
	return nil
}

// UnmapFilter releases a non-in-memory filter's resident bit arrays
// without removing it from the index. It is a no-op for filters
// configured InMemory, and idempotent against concurrent calls on the
// same name (Filter.Close itself is idempotent).
func (m *Manager) UnmapFilter(ctx context.Context, name string) error {
	ctx, span := observability.StartSpan(ctx, "filtmgr.UnmapFilter")
	defer span.End()
	start := time.Now()

	v := m.latest.Load()
	w := take(v, name)
	if w == nil {
		m.recordOp(ctx, "unmap", name, 0, start, ErrNotFound)
		return ErrNotFound
	}

	if w.filter.Config().InMemory {
		m.recordOp(ctx, "unmap", name, 0, start, nil)
		return nil
	}

	w.rwlock.Lock()
	defer w.rwlock.Unlock()

	if err := w.filter.Close(); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrEngine, err)
		m.recordOp(ctx, "unmap", name, 0, start, wrapped)
		return wrapped
	}

	metrics.Global().RecordUnmap()
	m.recordOp(ctx, "unmap", name, 0, start, nil)
	return nil
}

// ListFilters returns the names of every currently active filter, in
// sorted order.
func (m *Manager) ListFilters() []string {
	v := m.latest.Load()
	v.isHot.Store(true)

	names := make([]string, 0, len(v.index))
	for name, w := range v.index {
		if w.isActive.Load() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListColdFilters returns the names of active, non-proxied filters that
// have not been touched since the previous call to ListColdFilters.
// This is the same "set flag on access, harvest on next pass" heuristic the vacuum worker uses for versions: a hot
// wrapper is lowered and skipped; a cold, non-proxied one is emitted
// and then re-armed hot, so an immediate repeat call reports it again
// only after it has gone untouched for a further full pass.
func (m *Manager) ListColdFilters() []string {
	v := m.latest.Load()
	v.isHot.Store(true)

	var cold []string
	for name, w := range v.index {
		if !w.isActive.Load() {
			continue
		}
		if w.isHot.Load() {
			w.isHot.Store(false)
			continue
		}
		if !w.filter.IsProxied() {
			cold = append(cold, name)
			w.isHot.Store(true)
		}
	}
	sort.Strings(cold)
	return cold
}

// FilterCB invokes cb with the named filter's engine handle, without
// acquiring the wrapper's rwlock. It is meant only for metadata
// inspection (size, tier counts); the manager does not enforce that
// cb refrains from mutating or reading filter contents.
func (m *Manager) FilterCB(name string, cb func(name string, f *bloom.Filter)) error {
	v := m.latest.Load()
	w := take(v, name)
	if w == nil {
		return ErrNotFound
	}
	cb(name, w.filter)
	return nil
}
