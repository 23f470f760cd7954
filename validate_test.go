package lanes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTimeout(t *testing.T) {
	assert.NoError(t, validateTimeout(NoTimeout))
	assert.NoError(t, validateTimeout(0))
	assert.NoError(t, validateTimeout(5*time.Second))
	assert.ErrorIs(t, validateTimeout(-2), ErrArgument)
}

func TestValidateKeyRejectsReservedSentinels(t *testing.T) {
	assert.ErrorIs(t, validateKey(nil), ErrArgument)
	assert.ErrorIs(t, validateKey(Batched), ErrArgument)
	assert.ErrorIs(t, validateKey(NilSentinel), ErrArgument)
	assert.ErrorIs(t, validateKey(ErrCancelled), ErrArgument)
}

func TestValidateKeyRejectsUnhashableTypes(t *testing.T) {
	assert.ErrorIs(t, validateKey([]int{1, 2}), ErrArgument)
	assert.ErrorIs(t, validateKey(map[string]int{}), ErrArgument)
}

func TestValidateKeyAcceptsOrdinaryTypes(t *testing.T) {
	for _, k := range []any{true, 1, "s", 3.14, new(int)} {
		assert.NoError(t, validateKey(k))
	}
}

func TestValidateKeysRequiresAtLeastOne(t *testing.T) {
	assert.ErrorIs(t, validateKeys(nil), ErrArgument)
	assert.NoError(t, validateKeys([]any{"a"}))
}
