package filtmgr

import (
	"context"
	"time"

	"github.com/oriys/bloomd/internal/logging"
	"github.com/oriys/bloomd/internal/metrics"
)

// defaultVacuumTick is how often the vacuum worker wakes to check
// whether the published version has advanced, when the caller (or its
// configuration) doesn't specify one.
const defaultVacuumTick = 1 * time.Second

// runVacuum is the background worker's main loop. It wakes once per
// tick, and whenever the published version has advanced since the
// last wake, retires the chain of versions behind it. ctx cancellation
// is the Go rendering of the original worker's shared stop flag: it is
// observed on every tick, and it also cuts an in-flight cooldown sleep
// short, leaving the version being cooled unreclaimed.
func (m *Manager) runVacuum(ctx context.Context, tick, cooldown time.Duration) {
	defer close(m.vacuumDone)

	var lastSeenVsn uint64

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current := m.latest.Load()
		if current.vsn == lastSeenVsn {
			continue
		}
		lastSeenVsn = current.vsn

		reportFilterHotness(current)

		depth := 0
		for v := current.prev; v != nil; v = v.prev {
			depth++
		}
		metrics.SetVersionChainDepth("latest", depth)

		start := time.Now()
		retired := m.cleanChain(ctx, current.prev, cooldown)
		current.prev = nil

		metrics.RecordVacuumCycle(float64(time.Since(start).Milliseconds()), retired)
		metrics.Global().RecordVacuumCycle(retired)
	}
}

// reportFilterHotness counts how many active wrappers in v's index are
// currently hot and reports it to both metric stores. It is purely
// observational: it does not lower or raise any flag itself.
func reportFilterHotness(v *version) {
	hot := 0
	for _, w := range v.index {
		if w.isActive.Load() && w.isHot.Load() {
			hot++
		}
	}
	metrics.Global().SetHotFilters(int64(hot))
	metrics.SetHotFilters(hot)
}

// cleanChain retires v and every version behind it, oldest first, by
// walking the prev chain with an explicit slice rather than recursing
// (a long chain recursing newest-to-oldest risks overflowing the
// goroutine stack). Each version in turn is given a cooldown: its
// isHot flag is lowered, and if nothing raises it again before the
// cooldown elapses, the version (and anything parked in its deleted
// slot) is reclaimed. It returns the number of versions retired.
func (m *Manager) cleanChain(ctx context.Context, v *version, cooldown time.Duration) int {
	if v == nil {
		return 0
	}

	chain := make([]*version, 0, 4)
	for cur := v; cur != nil; cur = cur.prev {
		chain = append(chain, cur)
	}

	retired := 0
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		if !m.cooldownAndRetire(ctx, cur, cooldown) {
			return retired
		}
		retired++
	}
	return retired
}

// cooldownAndRetire repeatedly lowers cur.isHot and sleeps for cooldown
// until either ctx is cancelled (returns false, leaving cur
// unreclaimed) or a full cooldown elapses with isHot still false
// (returns true, having reclaimed cur).
func (m *Manager) cooldownAndRetire(ctx context.Context, cur *version, cooldown time.Duration) bool {
	for {
		cur.isHot.Store(false)

		timer := time.NewTimer(cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		if !cur.isHot.Load() {
			break
		}
	}

	if cur.deleted != nil {
		if err := deleteFilter(cur.deleted); err != nil {
			logging.Op().Warn("filtmgr: vacuum failed to finalize dropped filter", "error", err)
		}
		cur.deleted = nil
	}
	destroyVersion(cur)
	return true
}
