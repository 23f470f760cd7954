package lanes

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benoit-pierre/lanes/internal/copyengine"
	"github.com/benoit-pierre/lanes/internal/keeper"
)

// Linda is a shared, named, bounded FIFO rendezvous point (spec.md §3).
// It owns no storage itself: every operation locks its assigned Keeper,
// invokes one storage primitive, and broadcasts on its own condition
// variables, which share that Keeper's mutex.
//
// A Linda is safe for concurrent use by multiple goroutines, exactly as
// the original is safe for concurrent use by multiple lanes.
type Linda struct {
	universe *Universe
	name     lindaName
	group    uint64

	keeper        *keeper.Keeper // fixed at construction; nil if the pool had zero Keepers
	readHappened  *sync.Cond     // signalled when a receive succeeds, or room frees up
	writeHappened *sync.Cond     // signalled when a send or set succeeds

	cancel atomic.Uint32 // CancelRequest, guarded by the Keeper's mutex
}

// keeperOrUnavailable reports the Keeper to operate on, or false if the
// pool has been closed since this Linda was created (spec.md §4.4
// "acquire K = keeperFor(self); if unavailable -> return nothing").
func (l *Linda) keeperOrUnavailable() (*keeper.Keeper, bool) {
	if l.keeper == nil {
		return nil, false
	}
	if _, ok := l.universe.pool.KeeperFor(l.group); !ok {
		return nil, false
	}
	return l.keeper, true
}

func deadlineFrom(d time.Duration) (deadline time.Time, infinite bool) {
	if d == NoTimeout {
		return time.Time{}, true
	}
	return time.Now().Add(d), false
}

func deadlinePassed(deadline time.Time, infinite bool) bool {
	return !infinite && !time.Now().Before(deadline)
}

// waitUntil blocks on cond, which must already be locked, until deadline,
// or forever when infinite. It reports whether the deadline (rather than a
// Broadcast) is what woke it. Grounded on original_source/src/linda.cpp's
// send/receive wait loops, whose SIGNAL_WAIT under an absolute deadline Go
// expresses with a time.AfterFunc that broadcasts once the deadline
// passes, since sync.Cond has no native timed wait.
func waitUntil(cond *sync.Cond, deadline time.Time, infinite bool) (timedOut bool) {
	if infinite {
		cond.Wait()
		return false
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return true
	}
	timer := time.AfterFunc(remaining, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
	return !deadline.After(time.Now())
}

// pace runs GC pacing after a keeper-touching operation completes and its
// mutex has been released, matching keeper_call's tail in keeper.cpp: every
// primitive paces except clear (§4.2.1's skipClear exemption, honored by
// Clear/Release not deferring this). Its caller surfaces the returned
// configuration error to the operation's own result (§7: "surfaced
// synchronously after the primitive completes"), not just to the log.
func (l *Linda) pace() error {
	return l.universe.pool.Pace()
}

// paceInto runs pace and folds a configuration error into a named err
// result, without clobbering an error the primitive itself already
// produced.
func (l *Linda) paceInto(err *error) {
	if perr := l.pace(); perr != nil && *err == nil {
		*err = perr
	}
}

// checkCancel samples this Linda's cancellation flag. A Soft request
// returns ErrCancelled to the caller; a Hard request panics HardCancel,
// unwinding through the blocked call the way the original's lua_error does
// through a cancelled lane. The caller's Keeper mutex is still held at this
// point; a deferred Unlock further up the stack releases it during the
// panic's unwind.
func (l *Linda) checkCancel() error {
	switch CancelRequest(l.cancel.Load()) {
	case CancelHard:
		panic(HardCancel{Linda: l})
	case CancelSoft:
		return ErrCancelled
	default:
		return nil
	}
}

// Send enqueues one or more values under key, blocking until there is room,
// timeout elapses, or the Linda is cancelled (spec.md §4.2.2, §4.4).
// It reports true if the values were enqueued.
func (l *Linda) Send(timeout time.Duration, key any, values ...any) (ok bool, err error) {
	if err := validateTimeout(timeout); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if len(values) == 0 {
		return false, fmt.Errorf("%w: send requires at least one value", ErrArgument)
	}
	envs, err := copyengine.Copy(copyengine.ToKeeper, values)
	if err != nil {
		return false, err
	}
	vals := make([]keeper.Value, len(envs))
	for i, e := range envs {
		vals[i] = e
	}

	k, ok := l.keeperOrUnavailable()
	if !ok {
		return false, nil
	}
	deadline, infinite := deadlineFrom(timeout)

	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	for {
		if err := l.checkCancel(); err != nil {
			return false, err
		}
		if k.Send(l, key, vals) {
			l.writeHappened.Broadcast()
			return true, nil
		}
		if deadlinePassed(deadline, infinite) {
			return false, nil
		}
		if waitUntil(l.readHappened, deadline, infinite) {
			return false, nil
		}
	}
}

// Receive pops one value from the first of keys (in order) that has data,
// blocking as Send does (spec.md §4.2.3, §4.4). timedOut distinguishes an
// elapsed deadline from a genuine empty read when err is nil.
func (l *Linda) Receive(timeout time.Duration, keys ...any) (key any, value any, timedOut bool, err error) {
	if err := validateTimeout(timeout); err != nil {
		return nil, nil, false, err
	}
	if err := validateKeys(keys); err != nil {
		return nil, nil, false, err
	}

	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, nil, false, nil
	}
	deadline, infinite := deadlineFrom(timeout)
	kkeys := make([]keeper.Key, len(keys))
	for i, kk := range keys {
		kkeys[i] = kk
	}

	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	for {
		if err := l.checkCancel(); err != nil {
			return nil, nil, false, err
		}
		if rkey, renv, found := k.Receive(l, kkeys); found {
			l.readHappened.Broadcast()
			vals, err := copyengine.Decode([]copyengine.Envelope{renv.(copyengine.Envelope)})
			if err != nil {
				return nil, nil, false, err
			}
			return rkey, vals[0], false, nil
		}
		if deadlinePassed(deadline, infinite) {
			return nil, nil, true, nil
		}
		if waitUntil(l.writeHappened, deadline, infinite) {
			return nil, nil, true, nil
		}
	}
}

// ReceiveBatched pops between min and max oldest values from key's FIFO as
// a single unit, blocking until at least min are available (spec.md
// §4.2.4). This is the Go equivalent of the original API's
// receive(batched, key, min[, max]) call shape; see Batched's doc comment.
func (l *Linda) ReceiveBatched(timeout time.Duration, key any, min, max int) (values []any, timedOut bool, err error) {
	if err := validateTimeout(timeout); err != nil {
		return nil, false, err
	}
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if min < 1 || max < min {
		return nil, false, fmt.Errorf("%w: need 1 <= min <= max, got min=%d max=%d", ErrArgument, min, max)
	}

	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, false, nil
	}
	deadline, infinite := deadlineFrom(timeout)

	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	for {
		if err := l.checkCancel(); err != nil {
			return nil, false, err
		}
		if envs, found := k.ReceiveBatched(l, key, min, max); found {
			l.readHappened.Broadcast()
			typed := make([]copyengine.Envelope, len(envs))
			for i, e := range envs {
				typed[i] = e.(copyengine.Envelope)
			}
			vals, err := copyengine.Decode(typed)
			if err != nil {
				return nil, false, err
			}
			return vals, false, nil
		}
		if deadlinePassed(deadline, infinite) {
			return nil, true, nil
		}
		if waitUntil(l.writeHappened, deadline, infinite) {
			return nil, true, nil
		}
	}
}

// Set replaces key's entire FIFO contents, never blocking (spec.md §4.2.5).
// With no values it empties (or removes, if unbounded) the key; with
// values it resets then refills it. wake reports whether the primitive
// determined blocked senders should be released.
func (l *Linda) Set(key any, values ...any) (wake bool, err error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	var vals []keeper.Value
	if len(values) > 0 {
		envs, err := copyengine.Copy(copyengine.ToKeeper, values)
		if err != nil {
			return false, err
		}
		vals = make([]keeper.Value, len(envs))
		for i, e := range envs {
			vals[i] = e
		}
	}

	k, ok := l.keeperOrUnavailable()
	if !ok {
		return false, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	if err := l.checkCancel(); err != nil {
		return false, err
	}
	wake = k.Set(l, key, vals)
	if len(values) > 0 {
		l.writeHappened.Broadcast()
	}
	if wake {
		l.readHappened.Broadcast()
	}
	return wake, nil
}

// Get returns up to count of key's oldest values without removing them
// (spec.md §4.2.6). Never blocks.
func (l *Linda) Get(key any, count int) (values []any, err error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be >= 1, got %d", ErrArgument, count)
	}
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	envs := k.Get(l, key, count)
	k.Unlock()

	typed := make([]copyengine.Envelope, len(envs))
	for i, e := range envs {
		typed[i] = e.(copyengine.Envelope)
	}
	values, err = copyengine.Decode(typed)
	return values, err
}

// Limit sets key's FIFO capacity (spec.md §4.2.7). Pass DefaultLimit to
// reset the key back to unbounded. Never blocks; wake reports whether
// blocked senders should be released because the new limit has room the
// old one didn't.
func (l *Linda) Limit(key any, newLimit int) (wake bool, err error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if newLimit < -1 {
		return false, fmt.Errorf("%w: limit must be >= -1, got %d", ErrArgument, newLimit)
	}
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return false, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	wake = k.Limit(l, key, newLimit)
	if wake {
		l.readHappened.Broadcast()
	}
	return wake, nil
}

// Count reports the current length of a single key's FIFO, and whether the
// key currently has a FIFO at all (spec.md §4.2.8, one-key form). Never blocks.
func (l *Linda) Count(key any) (count int, exists bool, err error) {
	if err := validateKey(key); err != nil {
		return 0, false, err
	}
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return 0, false, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	count, exists = k.CountOne(l, key)
	return count, exists, nil
}

// CountKeys reports lengths for every key in keys that has a FIFO
// (spec.md §4.2.8, many-keys form). Never blocks.
func (l *Linda) CountKeys(keys ...any) (counts map[any]int, err error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, nil
	}
	kkeys := make([]keeper.Key, len(keys))
	for i, kk := range keys {
		kkeys[i] = kk
	}
	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	out := k.CountMany(l, kkeys)
	return widenKeyMap(out), nil
}

// CountAll reports lengths for every key this Linda currently has a FIFO
// for, empty ones included (spec.md §4.2.8, zero-key form). Never blocks.
func (l *Linda) CountAll() (counts map[any]int, err error) {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	defer k.Unlock()
	return widenKeyMap(k.CountAll(l)), nil
}

func widenKeyMap(in map[keeper.Key]int) map[any]int {
	out := make(map[any]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Clear drops every key this Linda has data under. Callable at any time;
// does not itself wake blocked waiters (spec.md §4.2.1 operation table:
// broadcast happens only on the lifecycle-driven clear issued by Release).
func (l *Linda) Clear() error {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil
	}
	k.Lock()
	defer k.Unlock()
	k.Clear(l)
	return nil
}

// Release ends this Linda's lifetime: it clears its storage and wakes every
// waiter on both condition variables, so nothing stays blocked on a Linda
// nobody can ever satisfy again. This substitutes for the original's
// destructor-triggered "last reference dropped" clear (spec.md §3 "Ownership
// and lifetime"): Go has no deterministic destructors, so callers that are
// done with a Linda call Release explicitly instead of relying on the
// garbage collector.
func (l *Linda) Release() {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return
	}
	k.Lock()
	k.Clear(l)
	if l.readHappened != nil {
		l.readHappened.Broadcast()
	}
	if l.writeHappened != nil {
		l.writeHappened.Broadcast()
	}
	k.Unlock()
}

// Cancel sets this Linda's cancellation flag and wakes the waiters named by
// mode (spec.md §4.4 "Cancellation semantics", §6.1). CancelOff clears the
// flag again. The flag itself is a single tri-state shared by every
// operation; mode only selects which condition variable gets a prompt
// wakeup broadcast, so a later-arriving call sees the same state regardless
// of which mode set it.
func (l *Linda) Cancel(mode CancelMode) {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return
	}
	k.Lock()
	defer k.Unlock()

	if mode == CancelOff {
		l.cancel.Store(uint32(CancelNone))
	} else {
		l.cancel.Store(uint32(CancelSoft))
	}
	switch mode {
	case CancelRead:
		l.writeHappened.Broadcast()
	case CancelWrite:
		l.readHappened.Broadcast()
	case CancelBoth, CancelOff:
		l.readHappened.Broadcast()
		l.writeHappened.Broadcast()
	}
}

// CancelHard escalates the cancellation flag to Hard: the next sample point
// inside a blocked Send/Receive/ReceiveBatched panics HardCancel instead of
// returning ErrCancelled.
func (l *Linda) CancelHard() {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return
	}
	k.Lock()
	l.cancel.Store(uint32(CancelHard))
	l.readHappened.Broadcast()
	l.writeHappened.Broadcast()
	k.Unlock()
}

// Snapshot is the diagnostic view of one key's FIFO (spec.md §4.2.9).
type Snapshot struct {
	First  int
	Count  int
	Limit  int
	Values []any
}

// Dump returns a read-only snapshot of every key this Linda has a FIFO for,
// empty ones included.
// Intended for diagnostics and tests, never for control flow.
func (l *Linda) Dump() (snapshot map[any]Snapshot, err error) {
	k, ok := l.keeperOrUnavailable()
	if !ok {
		return nil, nil
	}
	defer l.paceInto(&err)
	k.Lock()
	raw := k.Dump(l)
	k.Unlock()

	out := make(map[any]Snapshot, len(raw))
	for key, snap := range raw {
		typed := make([]copyengine.Envelope, len(snap.Storage))
		for i, v := range snap.Storage {
			typed[i] = v.(copyengine.Envelope)
		}
		vals, err := copyengine.Decode(typed)
		if err != nil {
			return nil, err
		}
		out[key] = Snapshot{First: snap.First, Count: snap.Count, Limit: snap.Limit, Values: vals}
	}
	return out, nil
}

// ExportKey returns key's current values as one length-prefixed, frame-
// encoded blob (internal/copyengine.EncodeBatch), for diagnostic tooling
// that wants a wire-transportable dump of a single key without walking a Go
// slice. DecodeExport reverses it.
func (l *Linda) ExportKey(key any) ([]byte, error) {
	snap, err := l.Dump()
	if err != nil {
		return nil, err
	}
	return copyengine.EncodeBatch(snap[key].Values)
}

// DecodeExport reverses ExportKey.
func DecodeExport(blob []byte) ([]any, error) {
	return copyengine.DecodeBatch(blob)
}

// Handle is an opaque, comparable identity for a Linda, suitable as a map
// key or for equality checks across however many references to the same
// Linda a caller is holding (spec.md §4.2.10 "deep() -> opaque handle").
type Handle struct{ linda *Linda }

// Deep returns this Linda's opaque handle.
func (l *Linda) Deep() Handle { return Handle{linda: l} }

// Name returns the Linda's name, or "" if it was created unnamed.
func (l *Linda) Name() string { return l.name.String() }

// Group returns the group this Linda was constructed with.
func (l *Linda) Group() uint64 { return l.group }

// String renders the Linda for logging, matching the original's
// tostring(linda) -> "Linda: <name or address>".
func (l *Linda) String() string {
	if !l.name.isEmpty() {
		return "Linda: " + l.name.String()
	}
	return fmt.Sprintf("Linda: %p", l)
}
