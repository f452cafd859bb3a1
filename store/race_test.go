package store

import (
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent Put/Get/Evict/Clear on random keys.
// Should pass under `-race` without detector reports.
func TestRace_MixedWorkload(t *testing.T) {
	s := newStore(t, Options{Capacity: 4096, TTL: 50 * time.Millisecond})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 10_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := []byte("k:" + strconv.Itoa(r.Intn(keyspace)))
				switch r.Intn(100) {
				case 0: // rare — Clear
					_ = s.Clear()
				case 1, 2, 3, 4, 5: // ~5% — Evict
					_, _ = s.Evict(k)
				case 6, 7, 8, 9, 10, 11, 12, 13, 14, 15: // ~10% — Put
					_ = s.Put(k, []byte("x"), true)
				default: // ~84% — Get
					_, _ = s.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()

	// Whatever interleaving happened, the size invariant must hold.
	if sz := s.Size(); sz < 0 || sz > s.Capacity() {
		t.Fatalf("Size = %d out of [0, %d]", sz, s.Capacity())
	}
}

// Concurrent writers with distinct keys into a non-full table: every key's
// last completed put must be visible afterward.
func TestRace_DistinctKeyWriters(t *testing.T) {
	const (
		writers       = 8
		keysPerWriter = 64
	)
	s := newStore(t, Options{Capacity: writers * keysPerWriter * 2})

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		id := w
		g.Go(func() error {
			for i := 0; i < keysPerWriter; i++ {
				k := []byte(fmt.Sprintf("w%d:k%d", id, i))
				v := []byte(fmt.Sprintf("v%d:%d", id, i))
				if err := s.Put(k, v, true); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if sz := s.Size(); sz != writers*keysPerWriter {
		t.Fatalf("Size = %d, want %d", sz, writers*keysPerWriter)
	}
	for w := 0; w < writers; w++ {
		for i := 0; i < keysPerWriter; i++ {
			wantGet(t, s, fmt.Sprintf("w%d:k%d", w, i), fmt.Sprintf("v%d:%d", w, i))
		}
	}
}

// Parallel readers against a stable table; exercises the read-lock fast path.
func TestRace_ParallelReaders(t *testing.T) {
	s := newStore(t, Options{Capacity: 256})
	for i := 0; i < 128; i++ {
		mustPut(t, s, "k"+strconv.Itoa(i), "v"+strconv.Itoa(i))
	}

	var g errgroup.Group
	for w := 0; w < 4*runtime.GOMAXPROCS(0); w++ {
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				k := "k" + strconv.Itoa(i%128)
				v, err := s.Get([]byte(k))
				if err != nil {
					return err
				}
				if want := "v" + strconv.Itoa(i%128); string(v) != want {
					return fmt.Errorf("Get %s = %q, want %q", k, v, want)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
