package lanes

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrArgument reports a caller mistake caught before a Keeper is ever
// touched (spec.md §4.4 "Argument validation").
var ErrArgument = errors.New("lanes: invalid argument")

// NoTimeout requests an unbounded wait. It mirrors the original host API's
// own -1.0 "infinite" default (original_source/src/linda.cpp), so the same
// sentinel value plays the same role here.
const NoTimeout time.Duration = -1

// DefaultLimit resets a key to the unbounded default when passed to Limit.
const DefaultLimit = -1

func validateTimeout(d time.Duration) error {
	if d < 0 && d != NoTimeout {
		return fmt.Errorf("%w: negative timeout %s", ErrArgument, d)
	}
	return nil
}

// validateKey rejects nil, the three reserved sentinels, and anything that
// cannot stand as a map key, matching the original's restriction to
// booleans, numbers, strings, and light userdata (spec.md §4.4, §6.3).
func validateKey(key any) error {
	if key == nil {
		return fmt.Errorf("%w: nil key", ErrArgument)
	}
	if isReservedSentinel(key) {
		return fmt.Errorf("%w: reserved sentinel used as key", ErrArgument)
	}
	rv := reflect.ValueOf(key)
	if !rv.Comparable() {
		return fmt.Errorf("%w: key type %T is not hashable", ErrArgument, key)
	}
	return nil
}

func validateKeys(keys []any) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: at least one key required", ErrArgument)
	}
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return err
		}
	}
	return nil
}
