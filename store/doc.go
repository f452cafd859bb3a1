// Package store provides a bounded, concurrent, open-addressed hash table for
// opaque byte-string keys and values, with linear probing, tombstones, TTL
// expiration, and force-eviction on overflow. It is the data plane behind the
// cream cache server.
//
// # Design
//
//   - Storage: a fixed array of exactly Capacity slots allocated at
//     construction. The table never grows. Each slot is Empty, Live, or a
//     Tombstone; Live slots own their key/value bytes and carry an absolute
//     expiration deadline.
//
//   - Probing: the natural index is hash(key) mod capacity; the probe walks
//     h, h+1, ... (mod capacity) for at most capacity steps. Empty terminates
//     a lookup, Tombstones are skipped (they preserve probe continuity for
//     keys placed past them), Live slots are compared byte-wise. Insertion
//     remembers the first Tombstone on the chain and reuses it when no Empty
//     slot exists.
//
//   - TTL: entries expire a fixed duration after insertion (Options.TTL,
//     2s by default). Expiration is lazy: any probe that visits a Live slot
//     past its deadline reclaims it to Empty before looking at it, so expired
//     entries are indistinguishable from entries that never existed.
//
//   - Overflow: when every slot is Live and the key is not present, Put with
//     force=true displaces the entry at the new key's natural index; without
//     force it fails with CREAM_STORE_FULL and mutates nothing.
//
//   - Concurrency: a single sync.RWMutex. Put, Evict, Clear, and Invalidate
//     are writers. Get probes under the read lock and only upgrades to the
//     write lock when the probe crosses an expired slot that must be
//     reclaimed, so read-mostly workloads run in parallel.
//
//   - Ownership: Put transfers the key and value slices into the store; the
//     caller must not retain or mutate them afterward. Options.Release is
//     invoked exactly once for every destroyed pair (replacement, TTL expiry,
//     evict, displacement, clear, invalidate). Get returns a copy made while
//     the lock is held, so the result stays valid after concurrent writes.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; plug the Prometheus adapter to export them.
//
// # Basic usage
//
//	s, err := store.New(store.Options{Capacity: 1024})
//	if err != nil { ... }
//	_ = s.Put([]byte("a"), []byte("1"), true)
//	if v, err := s.Get([]byte("a")); err == nil {
//	    _ = v // copy of the stored value
//	}
//	removed, _ := s.Evict([]byte("a"))
//	_ = removed
package store
