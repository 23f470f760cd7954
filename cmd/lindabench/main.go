// Command lindabench drives concurrent senders and receivers against a
// single Universe and reports throughput, the way server/main.go and
// index.go's rpsc reported message throughput for the original broker.
package main

import (
	"flag"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/bytedance/gopkg/util/gopool"

	"github.com/benoit-pierre/lanes"
)

func main() {
	keepers := flag.Int("keepers", 4, "number of Keepers in the pool")
	senders := flag.Int("senders", 8, "concurrent sender goroutines")
	receivers := flag.Int("receivers", 8, "concurrent receiver goroutines")
	keys := flag.Int("keys", 16, "distinct keys contended over")
	duration := flag.Duration("duration", 10*time.Second, "how long to run")
	flag.Parse()

	universe := lanes.NewUniverse(*keepers, -1)
	defer universe.Close()

	linda := universe.NewLinda("bench", 0)
	defer linda.Release()

	var sent, received, full, empty int64
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < *senders; i++ {
		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				key := fastrand.Intn(*keys)
				ok, err := linda.Send(50*time.Millisecond, key, fastrand.Uint32())
				if err != nil {
					log.Printf("send: %v", err)
					return
				}
				if ok {
					atomic.AddInt64(&sent, 1)
				} else {
					atomic.AddInt64(&full, 1)
				}
			}
		})
	}

	for i := 0; i < *receivers; i++ {
		wg.Add(1)
		gopool.Go(func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				key := fastrand.Intn(*keys)
				_, _, timedOut, err := linda.Receive(50*time.Millisecond, key)
				if err != nil {
					log.Printf("receive: %v", err)
					return
				}
				if timedOut {
					atomic.AddInt64(&empty, 1)
				} else {
					atomic.AddInt64(&received, 1)
				}
			}
		})
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	deadline := time.After(*duration)
	for {
		select {
		case <-ticker.C:
			log.Printf("sent=%d received=%d full=%d empty=%d",
				atomic.LoadInt64(&sent), atomic.LoadInt64(&received),
				atomic.LoadInt64(&full), atomic.LoadInt64(&empty))
		case <-deadline:
			close(stop)
			wg.Wait()
			log.Printf("done: sent=%d received=%d full=%d empty=%d",
				atomic.LoadInt64(&sent), atomic.LoadInt64(&received),
				atomic.LoadInt64(&full), atomic.LoadInt64(&empty))
			return
		}
	}
}
