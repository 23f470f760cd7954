package keeper

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// ErrConfiguration is returned when a configured GC pacing threshold turns
// out to be unsatisfiable (spec.md §4.3, §7 "configuration").
var ErrConfiguration = errors.New("keeper: gc pacing threshold too low")

// Pool is the fixed-size set of Keepers created at universe init
// (spec.md §4.3), ported from Keepers::initialize/getKeeper/close in
// original_source/src/keeper.cpp.
type Pool struct {
	keepers     []*Keeper
	closing     atomic.Bool
	gcThreshold int64 // bytes; <0 disables pacing
}

// NewPool constructs n Keepers. gcThreshold < 0 disables GC pacing, exactly
// as Keepers::initialize treats a negative gc_threshold.
func NewPool(n int, gcThreshold int64) *Pool {
	p := &Pool{keepers: make([]*Keeper, n), gcThreshold: gcThreshold}
	for i := range p.keepers {
		p.keepers[i] = New()
	}
	return p
}

// Len reports the number of Keepers in the pool.
func (p *Pool) Len() int { return len(p.keepers) }

// KeeperFor returns the Keeper assigned to group, or (nil, false) if the
// pool is closing or empty (spec.md §3 "keeperIndex = group mod N").
func (p *Pool) KeeperFor(group uint64) (*Keeper, bool) {
	if p.closing.Load() || len(p.keepers) == 0 {
		return nil, false
	}
	return p.keepers[group%uint64(len(p.keepers))], true
}

// Close sets the closing flag and tears down every Keeper exactly once. It
// reports whether this call performed the teardown; a second call is a
// no-op that reports false, matching Keepers::close's isClosing guard.
func (p *Pool) Close() bool {
	if !p.closing.CompareAndSwap(false, true) {
		return false
	}
	for _, k := range p.keepers {
		k.Lock()
		for id := range k.lindas {
			k.Clear(id)
		}
		k.Unlock()
	}
	return true
}

// Pace runs GC pacing after a primitive invocation on keeper, matching
// keeper_call's tail in keeper.cpp (lines ~636-652): if usage is at/above
// the threshold, force a collection; if usage is still over threshold
// afterward, report a configuration error. skipClear callers (the "clear"
// primitive itself) must not call Pace, matching the original's exemption
// of KEEPER_API(clear).
//
// Go has no per-Keeper heap accounting (unlike one Lua state per Keeper in
// the original), so usage is approximated with the process-wide heap size.
func (p *Pool) Pace() error {
	if p.gcThreshold < 0 {
		return nil
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	if int64(mem.HeapAlloc) < p.gcThreshold {
		return nil
	}
	runtime.GC()
	runtime.ReadMemStats(&mem)
	if int64(mem.HeapAlloc) > p.gcThreshold {
		return fmt.Errorf("%w: need at least %d bytes", ErrConfiguration, mem.HeapAlloc)
	}
	return nil
}
