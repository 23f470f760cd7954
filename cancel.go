package lanes

import "errors"

// CancelRequest is the three-state cancellation flag carried by a worker or
// a Linda (spec.md §3, §4.4 "Cancellation semantics").
type CancelRequest uint8

const (
	CancelNone CancelRequest = iota
	CancelSoft
	CancelHard
)

// CancelMode names the four cancel() call shapes of §6.1/§4.4.
type CancelMode string

const (
	CancelRead  CancelMode = "read"
	CancelWrite CancelMode = "write"
	CancelBoth  CancelMode = "both"
	CancelOff   CancelMode = "none"
)

// ErrCancelled is the cancel-error sentinel of §6.3: returned to the caller
// on soft cancellation in place of a normal result.
var ErrCancelled = errors.New("lanes: operation cancelled")

// HardCancel is panicked through a blocked operation when cancellation is
// Hard (spec.md §4.4: "raises through the call; the mutex is released by
// scope-guard unwinding"). This mirrors the original's lua_error unwinding
// a cancelled lane: in Go, a deferred Unlock plays the role of the
// scope-guard, and HardCancel plays the role of the propagated Lua error.
// Worker harnesses (out of scope per spec.md §1) are expected to recover
// it at their own call boundary; this package never recovers it itself.
type HardCancel struct{ Linda *Linda }

func (h HardCancel) Error() string { return "lanes: hard cancellation" }
