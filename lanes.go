package lanes

import (
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/benoit-pierre/lanes/internal/keeper"
)

// Universe is the process-wide object that owns the KeeperPool and, through
// it, the GC pacing threshold (spec.md §9 "Global universe"). The copy
// engine is the stateless internal/copyengine package; a Universe holds no
// copy engine of its own.
// It is constructed once and torn down once; Close is idempotent.
type Universe struct {
	pool    *keeper.Pool
	logger  atomic.Pointer[log.Logger]
	nextGrp atomic.Uint64
}

// NewUniverse creates a Universe with nbKeepers Keepers and the given GC
// pacing threshold (bytes; negative disables pacing), mirroring
// Keepers::initialize(nbKeepers_, gc_threshold_) in
// original_source/src/keeper.cpp.
func NewUniverse(nbKeepers int, gcThreshold int64) *Universe {
	u := &Universe{pool: keeper.NewPool(nbKeepers, gcThreshold)}
	u.logger.Store(log.New(os.Stderr, "lanes: ", log.LstdFlags))
	return u
}

// SetLogger overrides the logger used for non-fatal anomalies that have no
// caller to return to (currently only a repeat Close). GC pacing
// configuration errors are returned by the operation, not logged.
func (u *Universe) SetLogger(l *log.Logger) { u.logger.Store(l) }

func (u *Universe) log() *log.Logger { return u.logger.Load() }

// Close tears down the KeeperPool. Safe to call more than once; a repeat
// call is logged as a non-fatal anomaly rather than silently ignored.
func (u *Universe) Close() {
	if !u.pool.Close() {
		u.log().Printf("lanes: Close called on an already-closed Universe")
	}
}

// NewLinda creates a Linda identified by name and group, assigned to
// Keeper index group mod N at construction time (spec.md §3). The
// assignment never changes afterward, even if the pool is later closed.
//
// A Linda's two condition variables share their assigned Keeper's mutex
// rather than a mutex of their own (spec.md §5: "the Keeper's mutex is the
// only lock in the system"). *keeper.Keeper satisfies sync.Locker via its
// Lock/Unlock methods, so sync.NewCond can bind directly to it.
func (u *Universe) NewLinda(name string, group uint64) *Linda {
	l := &Linda{
		universe: u,
		name:     newLindaName(name),
		group:    group,
	}
	if k, ok := u.pool.KeeperFor(group); ok {
		l.keeper = k
		l.readHappened = sync.NewCond(k)
		l.writeHappened = sync.NewCond(k)
	}
	return l
}

// NewAutoLinda creates a Linda whose group is assigned round-robin across
// the Keeper pool, for callers that have no natural grouping key of their
// own and just want load spread evenly across shards.
func (u *Universe) NewAutoLinda(name string) *Linda {
	return u.NewLinda(name, u.nextGrp.Add(1))
}
