package lanes

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniverseCloseIsIdempotent(t *testing.T) {
	u := NewUniverse(2, -1)
	u.Close()
	assert.NotPanics(t, func() { u.Close() })
}

func TestKeeperForIsFixedAtConstruction(t *testing.T) {
	u := newTestUniverse(t, 4)
	l1 := u.NewLinda("a", 1)
	l2 := u.NewLinda("b", 5) // 5 mod 4 == 1 mod 4
	assert.Same(t, l1.keeper, l2.keeper)
}

func TestNewAutoLindaSpreadsGroups(t *testing.T) {
	u := newTestUniverse(t, 8)
	seen := map[uint64]bool{}
	for i := 0; i < 8; i++ {
		l := u.NewAutoLinda("")
		seen[l.Group()] = true
	}
	assert.Len(t, seen, 8, "eight successive auto-assigned Lindas must land on eight distinct groups")
}

// TestConcurrentSendersAndReceiversConserveValues fuzzes a single shared
// Linda with many concurrent senders and receivers and checks that no
// value is duplicated or lost, the way aryszka-forget's fuzzy_test.go
// hammers a cache with randomized concurrent operations and checks
// invariants rather than exact traces. Goroutines are dispatched through
// gopool.Go and randomization comes from fastrand, both pack-sourced.
func TestConcurrentSendersAndReceiversConserveValues(t *testing.T) {
	const (
		nbSenders      = 12
		itemsPerSender = 200
		nbKeys         = 5
		nbReceivers    = 8
	)

	u := newTestUniverse(t, 3)
	l := u.NewLinda("stress", 0)
	total := int64(nbSenders * itemsPerSender)

	keys := make([]any, nbKeys)
	for i := range keys {
		keys[i] = i
	}

	var sendWG, recvWG sync.WaitGroup
	var sent, received int64

	for s := 0; s < nbSenders; s++ {
		sendWG.Add(1)
		gopool.Go(func() {
			defer sendWG.Done()
			for i := 0; i < itemsPerSender; i++ {
				key := keys[fastrand.Intn(nbKeys)]
				ok, err := l.Send(time.Second, key, 1)
				assert.NoError(t, err)
				assert.True(t, ok)
				atomic.AddInt64(&sent, 1)
			}
		})
	}

	stop := make(chan struct{})
	for r := 0; r < nbReceivers; r++ {
		recvWG.Add(1)
		gopool.Go(func() {
			defer recvWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, _, timedOut, err := l.Receive(50*time.Millisecond, keys...)
				assert.NoError(t, err)
				if !timedOut {
					atomic.AddInt64(&received, 1)
				}
			}
		})
	}

	sendWG.Wait()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&received) == atomic.LoadInt64(&sent)
	}, 5*time.Second, 10*time.Millisecond, "every sent value must eventually be received")
	close(stop)
	recvWG.Wait()

	assert.Equal(t, total, atomic.LoadInt64(&sent))
	assert.Equal(t, total, atomic.LoadInt64(&received))
}

// TestConcurrentCancelIsRaceFree exercises Cancel racing against a pool of
// blocked receivers, checked with -race in mind: every receiver must
// return, and none must return a normal value once Cancel has fired.
func TestConcurrentCancelIsRaceFree(t *testing.T) {
	u := newTestUniverse(t, 2)
	l := u.NewLinda("cancel-race", 0)

	const nbReceivers = 16
	var wg sync.WaitGroup
	var cancelled int64
	for i := 0; i < nbReceivers; i++ {
		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()
			_, _, _, err := l.Receive(2*time.Second, "k")
			if err == ErrCancelled {
				atomic.AddInt64(&cancelled, 1)
			}
		})
	}

	time.Sleep(10 * time.Millisecond)
	l.Cancel(CancelBoth)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("cancel left a receiver blocked")
	}
	assert.Equal(t, int64(nbReceivers), atomic.LoadInt64(&cancelled))
}
