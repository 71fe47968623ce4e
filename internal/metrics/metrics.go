// Package metrics collects and exposes bloomd's runtime observability
// data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct for the lightweight JSON endpoint
//     (served at /debug/vars by the daemon), useful without any
//     external scraper.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems.
//
// # Concurrency
//
// Every counter here is touched from the manager's hot path (CheckKeys,
// SetKeys) and from the vacuum worker concurrently, so all fields are
// atomics; nothing in this package takes a lock.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics collects bloomd's in-process counters.
type Metrics struct {
	ChecksTotal  atomic.Int64
	SetsTotal    atomic.Int64
	CreatesTotal atomic.Int64
	DropsTotal   atomic.Int64
	ClearsTotal  atomic.Int64
	UnmapsTotal  atomic.Int64

	VacuumCyclesTotal    atomic.Int64
	VersionsRetiredTotal atomic.Int64

	ActiveFilters atomic.Int64
	HotFilters    atomic.Int64
}

var global = &Metrics{}
var startTime time.Time

func init() {
	startTime = time.Unix(0, 0)
}

// Global returns the process-wide Metrics instance.
func Global() *Metrics {
	return global
}

// StartTime reports when the metrics subsystem was initialized. Daemon
// startup calls MarkStart once the clock is safe to read.
func StartTime() time.Time {
	return startTime
}

// MarkStart records the moment the daemon finished initializing, for
// uptime reporting.
func MarkStart(t time.Time) {
	startTime = t
}

func (m *Metrics) RecordCheck() { m.ChecksTotal.Add(1) }
func (m *Metrics) RecordSet()   { m.SetsTotal.Add(1) }
func (m *Metrics) RecordCreate() {
	m.CreatesTotal.Add(1)
	m.ActiveFilters.Add(1)
}
func (m *Metrics) RecordDrop() {
	m.DropsTotal.Add(1)
	m.ActiveFilters.Add(-1)
}
func (m *Metrics) RecordClear() { m.ClearsTotal.Add(1) }
func (m *Metrics) RecordUnmap() { m.UnmapsTotal.Add(1) }

func (m *Metrics) RecordVacuumCycle(versionsRetired int) {
	m.VacuumCyclesTotal.Add(1)
	m.VersionsRetiredTotal.Add(int64(versionsRetired))
}

func (m *Metrics) SetHotFilters(n int64) { m.HotFilters.Store(n) }

// Snapshot returns a JSON-serializable view of the current counters.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"checks_total":           m.ChecksTotal.Load(),
		"sets_total":             m.SetsTotal.Load(),
		"creates_total":          m.CreatesTotal.Load(),
		"drops_total":            m.DropsTotal.Load(),
		"clears_total":           m.ClearsTotal.Load(),
		"unmaps_total":           m.UnmapsTotal.Load(),
		"vacuum_cycles_total":    m.VacuumCyclesTotal.Load(),
		"versions_retired_total": m.VersionsRetiredTotal.Load(),
		"active_filters":         m.ActiveFilters.Load(),
		"hot_filters":            m.HotFilters.Load(),
		"uptime_seconds":         time.Since(startTime).Seconds(),
	}
}

// JSONHandler serves the metrics snapshot as JSON.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
