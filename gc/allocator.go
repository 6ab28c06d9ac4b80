package gc

import (
	"time"
)

// ---------------------------------------------------------------------------
// Flag: two-valued epoch marker
// ---------------------------------------------------------------------------

// Flag marks which collection cycle a slot was last reached in.
//
// The allocator's current flag alternates between two values across
// sweep cycles. A slot is "marked" when its flag equals the current
// one; everything else is unmarked by definition, so no reset pass is
// needed between cycles. Freshly allocated slots carry flagNew, which
// never equals either cycle value.
type Flag uint8

const (
	flagNew  Flag = 0 // fresh allocation, off-cycle by construction
	flagEven Flag = 1
	flagOdd  Flag = 2
)

// ---------------------------------------------------------------------------
// Traceable: capability interface for payloads
// ---------------------------------------------------------------------------

// Traceable is implemented by any value that can live on the collected
// heap. Trace must invoke Handle.Trace with the given flag on every
// handle directly reachable from the value, and nothing else.
type Traceable interface {
	Trace(flag Flag)
}

// ---------------------------------------------------------------------------
// Slots and handles
// ---------------------------------------------------------------------------

// slot is the allocator-owned box for one payload. Once the payload is
// swept the slot is hollowed, never freed: its address stays valid for
// the life of the process, so a stale Handle can always be inspected
// safely.
type slot struct {
	value Traceable // nil once collected
	flag  Flag
}

// Handle is a copyable, non-owning reference to a tracked slot. Handles
// may outlive the payload; dereferencing one whose payload was swept is
// a caller bug (a missed root) and panics.
type Handle struct {
	s *slot
}

// Alive reports whether the handle's payload has not been collected.
func (h Handle) Alive() bool {
	return h.s != nil && h.s.value != nil
}

// Value returns the payload. It panics if the payload was collected or
// the handle is the zero Handle; that indicates a root was missed
// during marking, never memory corruption.
func (h Handle) Value() Traceable {
	if h.s == nil {
		panic("gc: dereference of zero Handle")
	}
	if h.s.value == nil {
		panic("gc: dereference of collected Handle")
	}
	return h.s.value
}

// Trace marks the handle's slot reachable for the given cycle and
// recurses into the payload. Marking an already-marked slot is a no-op,
// which terminates recursion on cyclic value graphs. Payload Trace
// implementations call this on each handle they hold.
func (h Handle) Trace(flag Flag) {
	if h.s == nil || h.s.flag == flag {
		return
	}
	h.s.flag = flag
	if h.s.value != nil {
		h.s.value.Trace(flag)
	}
}

// ---------------------------------------------------------------------------
// Allocator
// ---------------------------------------------------------------------------

// SweepStats holds statistics from a single sweep.
type SweepStats struct {
	Live          int // slots retained
	Swept         int // payloads released
	SweepDuration time.Duration
	Timestamp     time.Time
}

// Allocator owns the tracked slots and drives the mark/sweep cycle.
// It is not safe for concurrent use; at most one goroutine may
// allocate, mark or sweep at a time.
type Allocator struct {
	flag  Flag
	slots []*slot

	sweepCount uint64
	lastStats  *SweepStats
}

// New creates an empty allocator. The zero Allocator is not usable:
// its current flag would collide with the off-cycle flag of fresh
// slots.
func New() *Allocator {
	return &Allocator{flag: flagEven}
}

// Alloc takes ownership of value, registers it in a fresh slot and
// returns a handle to it. The slot starts off-cycle, so an allocation
// made after a mark phase is collected by the next sweep unless it is
// marked itself.
func (a *Allocator) Alloc(value Traceable) Handle {
	s := &slot{value: value, flag: flagNew}
	a.slots = append(a.slots, s)
	return Handle{s: s}
}

// Mark is the root-marking entry point: it marks everything reachable
// from h for the current cycle. Call it once per root between sweeps;
// repeated calls are harmless.
func (a *Allocator) Mark(h Handle) {
	h.Trace(a.flag)
}

// Sweep releases the payload of every slot not marked in the current
// cycle and removes it from the live list, keeping the survivors in
// their original insertion order. Hollowed slots themselves are never
// freed. Afterwards the current flag flips to the other cycle value.
func (a *Allocator) Sweep() *SweepStats {
	start := time.Now()

	kept := a.slots[:0]
	swept := 0
	for _, s := range a.slots {
		if s.flag == a.flag {
			kept = append(kept, s)
			continue
		}
		s.value = nil
		swept++
	}
	// Drop tails so hollowed slots are not retained by the backing array.
	for i := len(kept); i < len(a.slots); i++ {
		a.slots[i] = nil
	}
	a.slots = kept

	if a.flag == flagEven {
		a.flag = flagOdd
	} else {
		a.flag = flagEven
	}

	a.sweepCount++
	a.lastStats = &SweepStats{
		Live:          len(a.slots),
		Swept:         swept,
		SweepDuration: time.Since(start),
		Timestamp:     start,
	}
	return a.lastStats
}

// Len returns the number of live slots.
func (a *Allocator) Len() int {
	return len(a.slots)
}

// SweepCount returns the total number of sweeps performed.
func (a *Allocator) SweepCount() uint64 {
	return a.sweepCount
}

// LastStats returns statistics from the most recent sweep, or nil if
// no sweep has been performed yet.
func (a *Allocator) LastStats() *SweepStats {
	return a.lastStats
}
