// Command creambench generates protocol load against a running creamd and
// reports throughput. Every operation opens its own connection, matching the
// protocol's one-request-per-connection rule, so the numbers include dial
// cost the way real clients pay it.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/IvanBrykalov/cream/client"
)

func main() {
	// ---- Flags ----
	var (
		addr     = flag.String("addr", "127.0.0.1:8888", "cream server address")
		workers  = flag.Int("workers", 8, "number of concurrent load workers")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		keys     = flag.Int("keys", 10_000, "keyspace size")
		zipfS    = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV    = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload  = flag.Int("preload", 0, "entries to PUT before the run (0 = keys/10)")
		timeout  = flag.Duration("timeout", 2*time.Second, "per-request dial+I/O timeout")
	)
	flag.Parse()

	c := client.New(*addr, *timeout)

	// ---- Preload so reads see a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *keys / 10
	}
	for i := 0; i < pl; i++ {
		k := []byte("k:" + strconv.Itoa(i))
		if err := c.Put(k, []byte("v"+strconv.Itoa(i))); err != nil {
			log.Fatalf("preload: %v", err)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, failures, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() []byte {
				return []byte("k:" + strconv.FormatUint(localZipf.Uint64(), 10))
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					switch _, err := c.Get(keyByZipf()); {
					case err == nil:
						atomic.AddUint64(&hits, 1)
					case client.IsNotFound(err):
						atomic.AddUint64(&misses, 1)
					default:
						atomic.AddUint64(&failures, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					if err := c.Put(keyByZipf(), []byte("v"+strconv.Itoa(localR.Int()))); err != nil {
						atomic.AddUint64(&failures, 1)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)
	failN := atomic.LoadUint64(&failures)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("addr=%s workers=%d keys=%d dur=%v seed=%d\n",
		*addr, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  failures=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN, failN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
}
