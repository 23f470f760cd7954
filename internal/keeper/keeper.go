// Package keeper implements the sharded, lock-guarded storage engine
// backing every Linda operation.
//
// Every primitive in this file is ported from the keepercall_* family in
// original_source/src/keeper.cpp, with the stack-shuffling ABI of that
// implementation replaced by typed Go calls per spec.md §9 ("Stack-based
// primitive ABI -> typed calls").
package keeper

import "sync"

// ID identifies a Linda for the purposes of keeper bookkeeping. The keeper
// never dereferences it; it only uses it as a map key, matching the
// original's use of the Linda pointer as a LindasDB key.
type ID any

// Key is anything the external copy engine can hash-identify: booleans,
// numbers, strings, or opaque identities. The Linda layer rejects
// non-hashable and reserved-sentinel keys before a Keeper is ever touched
// (spec.md §4.4 "Argument validation").
type Key any

// Keeper is one storage shard: a mutex plus the LindaID -> (Key -> Slot)
// mapping it guards. This is the ONLY lock in the system (spec.md §5); no
// primitive here may acquire another Keeper's mutex.
type Keeper struct {
	mu       sync.Mutex
	lindas   map[ID]map[Key]*Slot
	slotPool sync.Pool // *Slot recycling, grounded on lemonmq/slowtable's itempool
}

// New creates an empty Keeper.
func New() *Keeper {
	k := &Keeper{lindas: make(map[ID]map[Key]*Slot)}
	k.slotPool.New = func() any { return &Slot{} }
	return k
}

// Lock/Unlock expose the Keeper's single mutex to the Linda layer, which
// must hold it across "invoke primitive, then broadcast" (spec.md §4.4).
func (k *Keeper) Lock()   { k.mu.Lock() }
func (k *Keeper) Unlock() { k.mu.Unlock() }

func (k *Keeper) acquireSlot() *Slot {
	s := k.slotPool.Get().(*Slot)
	s.first, s.count, s.limit, s.storage = 1, 0, -1, s.storage[:0]
	return s
}

func (k *Keeper) releaseSlot(s *Slot) {
	s.storage = nil
	k.slotPool.Put(s)
}

// slotsFor returns (creating if absent) the Key->Slot map for a Linda,
// mirroring PushKeysDB's get-or-create logic in keeper.cpp.
func (k *Keeper) slotsFor(id ID, create bool) map[Key]*Slot {
	keys, ok := k.lindas[id]
	if !ok && create {
		keys = make(map[Key]*Slot)
		k.lindas[id] = keys
	}
	return keys
}

// Clear removes the lindaID -> keys mapping entirely (§4.2.1). Never fails,
// and any Slots that were in flight are returned to the pool.
func (k *Keeper) Clear(id ID) {
	keys := k.lindas[id]
	for _, s := range keys {
		k.releaseSlot(s)
	}
	delete(k.lindas, id)
}

// Send appends n>=1 values to (id, key)'s Slot, creating it if needed
// (§4.2.2). Returns false without enqueuing anything if the Slot is full.
func (k *Keeper) Send(id ID, key Key, vals []Value) bool {
	keys := k.slotsFor(id, true)
	slot, ok := keys[key]
	if !ok {
		slot = k.acquireSlot()
		keys[key] = slot
	}
	if !slot.HasRoom(len(vals)) {
		return false
	}
	slot.push(vals)
	return true
}

// Receive probes keys in order and pops a single value from the first one
// that has data (§4.2.3). The inspection order IS the priority order.
func (k *Keeper) Receive(id ID, keys []Key) (key Key, val Value, ok bool) {
	table := k.slotsFor(id, false)
	for _, key := range keys {
		slot, exists := table[key]
		if !exists || slot.Count() == 0 {
			continue
		}
		v := slot.pop(1)[0]
		return key, v, true
	}
	return nil, nil, false
}

// ReceiveBatched pops between min and max oldest values from (id, key)'s
// Slot, provided it holds at least min (§4.2.4). min>=1, max>=min.
func (k *Keeper) ReceiveBatched(id ID, key Key, min, max int) ([]Value, bool) {
	table := k.slotsFor(id, false)
	slot, ok := table[key]
	if !ok || slot.Count() < min {
		return nil, false
	}
	n := max
	if slot.Count() < n {
		n = slot.Count()
	}
	return slot.pop(n), true
}

// Set implements §4.2.5: with no values, it empties or removes the Slot;
// with values, it resets then pushes. It reports whether blocked writers
// should be woken, ported verbatim from keepercall_set's
// _should_wake_writers bookkeeping.
func (k *Keeper) Set(id ID, key Key, vals []Value) (wakeWriters bool) {
	table := k.slotsFor(id, len(vals) > 0)
	slot, exists := table[key]

	if len(vals) == 0 {
		if !exists {
			return false
		}
		if slot.limit < 0 {
			delete(table, key)
			k.releaseSlot(slot)
			return false
		}
		wakeWriters = slot.limit > 0 && slot.count >= slot.limit
		slot.reset()
		return wakeWriters
	}

	if !exists {
		// no writer could be waiting on a key that didn't exist yet
		slot = k.acquireSlot()
		table[key] = slot
		slot.push(vals)
		return false
	}

	wasFull := slot.limit > 0 && slot.count >= slot.limit
	slot.reset()
	slot.push(vals)
	wakeWriters = wasFull && len(vals) < slot.limit
	return wakeWriters
}

// Get returns up to count oldest values via non-destructive peek (§4.2.6).
func (k *Keeper) Get(id ID, key Key, count int) []Value {
	table := k.slotsFor(id, false)
	slot, ok := table[key]
	if !ok || slot.Count() == 0 {
		return nil
	}
	n := count
	if slot.Count() < n {
		n = slot.Count()
	}
	return slot.peek(n)
}

// Limit creates the Slot if absent, assigns newLimit, and reports whether
// blocked writers should wake (§4.2.7): the key was full under the old
// limit and is no longer full under the new one.
func (k *Keeper) Limit(id ID, key Key, newLimit int) (wakeWriters bool) {
	table := k.slotsFor(id, true)
	slot, ok := table[key]
	if !ok {
		slot = k.acquireSlot()
		table[key] = slot
	}
	wasFull := slot.limit >= 0 && slot.count >= slot.limit
	willHaveRoom := newLimit < 0 || slot.count < newLimit
	slot.limit = newLimit
	return wasFull && willHaveRoom
}

// CountOne returns the count for a single key, and whether it has a Slot
// at all (§4.2.8, one-key case).
func (k *Keeper) CountOne(id ID, key Key) (int, bool) {
	table := k.slotsFor(id, false)
	slot, ok := table[key]
	if !ok {
		return 0, false
	}
	return slot.Count(), true
}

// CountAll returns counts for every key that currently has a Slot
// (§4.2.8, zero-key case).
func (k *Keeper) CountAll(id ID) map[Key]int {
	table := k.slotsFor(id, false)
	out := make(map[Key]int, len(table))
	for key, slot := range table {
		out[key] = slot.Count()
	}
	return out
}

// CountMany restricts the result to the supplied keys that have a Slot
// (§4.2.8, many-keys case).
func (k *Keeper) CountMany(id ID, keys []Key) map[Key]int {
	table := k.slotsFor(id, false)
	out := make(map[Key]int)
	for _, key := range keys {
		if slot, ok := table[key]; ok {
			out[key] = slot.Count()
		}
	}
	return out
}

// Snapshot is the diagnostic payload for one key, ported from
// keeper_push_linda_storage's per-key {first, count, limit, storage} (§4.2.9).
type Snapshot struct {
	First   int
	Count   int
	Limit   int
	Storage []Value
}

// Dump returns a read-only snapshot of every Slot for a Linda (§4.2.9).
func (k *Keeper) Dump(id ID) map[Key]Snapshot {
	table := k.slotsFor(id, false)
	out := make(map[Key]Snapshot, len(table))
	for key, slot := range table {
		var storage []Value
		if slot.count > 0 {
			storage = slot.peek(slot.count)
		}
		out[key] = Snapshot{First: slot.first, Count: slot.count, Limit: slot.limit, Storage: storage}
	}
	return out
}
