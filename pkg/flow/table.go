package flow

import "time"

// Default eviction timing, per the external interface contract. Both
// are configurable via Table's constructor but these defaults must
// match whatever the capture configuration documents.
const (
	DefaultIdleExpiry    = 300 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// Table maps canonical flow Keys to their exclusively-owned State. It
// is not safe for concurrent use: the capture loop is its sole owner
// and mutator, by design (see DESIGN.md on the single-RX-queue model).
type Table struct {
	entries map[Key]*State

	idleExpiry    time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	sweepPrimed   bool
}

// NewTable constructs an empty Table with the given eviction timing. A
// zero duration selects the package default.
func NewTable(idleExpiry, sweepInterval time.Duration) *Table {
	if idleExpiry <= 0 {
		idleExpiry = DefaultIdleExpiry
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Table{
		entries:       make(map[Key]*State),
		idleExpiry:    idleExpiry,
		sweepInterval: sweepInterval,
	}
}

// Touch returns the State for key, inserting a fresh zero-valued one on
// first sight. Lookup never fails.
func (t *Table) Touch(key Key) *State {
	st, ok := t.entries[key]
	if !ok {
		st = &State{}
		t.entries[key] = st
	}
	return st
}

// Len reports the number of live flows currently tracked.
func (t *Table) Len() int {
	return len(t.entries)
}

// Sweep unconditionally evicts every entry whose LastTime is older than
// now minus the configured idle expiry, and reports how many entries
// were removed. Sweep is idempotent and safe to call at any time; the
// capture loop instead calls MaybeSweep to ratelimit this to once per
// sweep interval.
func (t *Table) Sweep(now time.Time) int {
	horizon := float64(now.UnixNano())/1e9 - t.idleExpiry.Seconds()
	removed := 0
	for key, st := range t.entries {
		if st.LastTime < horizon {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// MaybeSweep invokes Sweep at most once per configured sweep interval,
// tracking the last invocation on the table itself. This is what the
// capture loop calls opportunistically between bursts.
func (t *Table) MaybeSweep(now time.Time) int {
	if t.sweepPrimed && now.Sub(t.lastSweep) < t.sweepInterval {
		return 0
	}
	t.lastSweep = now
	t.sweepPrimed = true
	return t.Sweep(now)
}
