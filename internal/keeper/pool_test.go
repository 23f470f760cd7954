package keeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolKeeperForIsDeterministic(t *testing.T) {
	p := NewPool(4, -1)
	k1, ok := p.KeeperFor(10)
	require.True(t, ok)
	k2, ok := p.KeeperFor(10)
	require.True(t, ok)
	assert.Same(t, k1, k2, "the same group must always resolve to the same Keeper")

	k3, ok := p.KeeperFor(14) // 14 mod 4 == 2, same as 10 mod 4
	require.True(t, ok)
	assert.Same(t, k1, k3)
}

func TestPoolKeeperForSpreadsAcrossShards(t *testing.T) {
	p := NewPool(4, -1)
	seen := map[*Keeper]bool{}
	for group := uint64(0); group < 4; group++ {
		k, ok := p.KeeperFor(group)
		require.True(t, ok)
		seen[k] = true
	}
	assert.Len(t, seen, 4, "four consecutive groups against four Keepers must hit all four")
}

func TestPoolEmptyIsUnavailable(t *testing.T) {
	p := NewPool(0, -1)
	_, ok := p.KeeperFor(0)
	assert.False(t, ok, "a zero-Keeper pool can never resolve a group")
}

func TestPoolCloseIsIdempotentAndClearsState(t *testing.T) {
	p := NewPool(2, -1)
	k, ok := p.KeeperFor(0)
	require.True(t, ok)
	k.Lock()
	k.Send("linda-1", "k", []Value{1})
	k.Unlock()

	assert.True(t, p.Close(), "the first Close must perform the teardown")
	assert.False(t, p.Close(), "a second Close must be a no-op and report so")

	k.Lock()
	assert.Empty(t, k.CountAll("linda-1"), "Close must clear every Linda's stored values")
	k.Unlock()

	_, ok = p.KeeperFor(0)
	assert.False(t, ok, "KeeperFor must report unavailable once closed")
}

func TestPoolPaceDisabledByNegativeThreshold(t *testing.T) {
	p := NewPool(1, -1)
	assert.NoError(t, p.Pace())
}

func TestPoolPaceUnderThresholdIsANoop(t *testing.T) {
	p := NewPool(1, 1<<62) // unreachably high threshold
	assert.NoError(t, p.Pace())
}
