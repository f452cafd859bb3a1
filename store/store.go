package store

import (
	"bytes"
	"math"
	"sync"

	"github.com/IvanBrykalov/cream/internal/util"
)

// Store is a bounded, concurrent, open-addressed hash table. All methods are
// safe for concurrent use by multiple goroutines. See the package
// documentation for probing, TTL, and ownership semantics.
type Store struct {
	// ---- guarded by mu ----
	mu       sync.RWMutex
	slots    []slot
	size     int // count of Live slots; 0 <= size <= capacity
	capacity int
	invalid  bool

	hash    HashFunc
	release ReleaseFunc
	ttl     int64 // nanoseconds
	clock   Clock
	metrics Metrics

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_       util.CacheLinePad
	hits    util.PaddedAtomicInt64
	misses  util.PaddedAtomicInt64
	expired util.PaddedAtomicUint64
}

// Stats is a point-in-time snapshot of the store's lookup counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Expired uint64
}

// New constructs a Store with the provided Options. It fails with
// CREAM_INVALID_ARGUMENT when Capacity is outside [1, 2^32-1] or TTL is
// negative; every other zero field gets a documented default.
func New(opt Options) (*Store, error) {
	if opt.Capacity <= 0 || int64(opt.Capacity) > math.MaxUint32 {
		return nil, errInvalidArgument("new", "capacity")
	}
	if opt.TTL < 0 {
		return nil, errInvalidArgument("new", "ttl")
	}
	if opt.Hash == nil {
		opt.Hash = util.Jenkins32
	}
	if opt.Release == nil {
		opt.Release = func(_, _ []byte) {}
	}
	if opt.TTL == 0 {
		opt.TTL = DefaultTTL
	}
	if opt.Clock == nil {
		opt.Clock = timecacheClock{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	return &Store{
		slots:    make([]slot, opt.Capacity),
		capacity: opt.Capacity,
		hash:     opt.Hash,
		release:  opt.Release,
		ttl:      int64(opt.TTL),
		clock:    opt.Clock,
		metrics:  opt.Metrics,
	}, nil
}

// Put inserts or replaces the entry for key. On success the store owns both
// slices; the caller must not retain or mutate them. With force=true a put
// into a full table displaces the entry at the new key's natural index; with
// force=false it fails with CREAM_STORE_FULL and mutates nothing.
func (s *Store) Put(key, val []byte, force bool) error {
	if len(key) == 0 {
		return errInvalidArgument("put", "empty key")
	}
	if len(val) == 0 {
		return errInvalidArgument("put", "empty value")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return errStoreInvalidated()
	}

	now := s.clock.NowNano()
	h := s.natural(key)
	candidate := -1 // first tombstone on the probe chain, if any

	for step := 0; step < s.capacity; step++ {
		i := h + step
		if i >= s.capacity {
			i -= s.capacity
		}
		sl := &s.slots[i]

		if sl.state == slotTombstone {
			if candidate < 0 {
				candidate = i
			}
			continue
		}
		s.expireLocked(sl, now)

		if sl.state == slotEmpty {
			s.place(sl, key, val, now)
			s.size++
			s.metrics.Size(s.size)
			return nil
		}
		if bytes.Equal(sl.key, key) {
			// Replace in place; size unchanged, deadline refreshed.
			s.release(sl.key, sl.val)
			s.place(sl, key, val, now)
			return nil
		}
	}

	if candidate >= 0 {
		s.place(&s.slots[candidate], key, val, now)
		s.size++
		s.metrics.Size(s.size)
		return nil
	}

	// Every slot is Live with a different key: the table is full.
	if !force {
		return errStoreFull(s.capacity)
	}
	sl := &s.slots[h]
	s.release(sl.key, sl.val)
	s.metrics.Evict(EvictDisplaced)
	s.place(sl, key, val, now)
	return nil
}

// Get returns a copy of the value stored for key, or CREAM_KEY_NOT_FOUND.
// The copy is made while the lock is held, so it stays valid regardless of
// concurrent writers.
func (s *Store) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errInvalidArgument("get", "empty key")
	}

	s.mu.RLock()
	val, clean, err := s.lookupRLocked(key)
	s.mu.RUnlock()
	if !clean {
		// The probe crossed an entry past its deadline; retake the lock as
		// a writer so reclamation can run, then probe again.
		s.mu.Lock()
		val, err = s.lookupLocked(key)
		s.mu.Unlock()
	}

	switch {
	case err == nil:
		s.hits.Add(1)
		s.metrics.Hit()
	case IsNotFound(err):
		s.misses.Add(1)
		s.metrics.Miss()
	}
	return val, err
}

// lookupRLocked probes without mutating. clean=false means an expired slot
// was encountered and the caller must re-run the lookup under the write lock.
func (s *Store) lookupRLocked(key []byte) (val []byte, clean bool, err error) {
	if s.invalid {
		return nil, true, errStoreInvalidated()
	}
	now := s.clock.NowNano()
	h := s.natural(key)

	for step := 0; step < s.capacity; step++ {
		i := h + step
		if i >= s.capacity {
			i -= s.capacity
		}
		sl := &s.slots[i]

		switch sl.state {
		case slotEmpty:
			return nil, true, errKeyNotFound()
		case slotTombstone:
			continue
		case slotLive:
			if now > sl.deadline {
				return nil, false, nil
			}
			if bytes.Equal(sl.key, key) {
				return append([]byte(nil), sl.val...), true, nil
			}
		}
	}
	return nil, true, errKeyNotFound()
}

// lookupLocked probes under the write lock, reclaiming expired slots as it goes.
func (s *Store) lookupLocked(key []byte) ([]byte, error) {
	if s.invalid {
		return nil, errStoreInvalidated()
	}
	now := s.clock.NowNano()
	h := s.natural(key)

	for step := 0; step < s.capacity; step++ {
		i := h + step
		if i >= s.capacity {
			i -= s.capacity
		}
		sl := &s.slots[i]
		if sl.state == slotTombstone {
			continue
		}
		s.expireLocked(sl, now)
		if sl.state == slotEmpty {
			return nil, errKeyNotFound()
		}
		if bytes.Equal(sl.key, key) {
			return append([]byte(nil), sl.val...), nil
		}
	}
	return nil, errKeyNotFound()
}

// Evict removes the live entry for key, leaving a tombstone so probe chains
// through the slot stay intact. It reports whether a live entry was removed;
// an absent key is not an error.
func (s *Store) Evict(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, errInvalidArgument("evict", "empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return false, errStoreInvalidated()
	}

	now := s.clock.NowNano()
	h := s.natural(key)

	for step := 0; step < s.capacity; step++ {
		i := h + step
		if i >= s.capacity {
			i -= s.capacity
		}
		sl := &s.slots[i]
		if sl.state == slotTombstone {
			continue
		}
		s.expireLocked(sl, now)
		if sl.state == slotEmpty {
			return false, nil
		}
		if bytes.Equal(sl.key, key) {
			s.release(sl.key, sl.val)
			sl.reset()
			sl.state = slotTombstone
			s.size--
			s.metrics.Evict(EvictManual)
			s.metrics.Size(s.size)
			return true, nil
		}
	}
	return false, nil
}

// Clear destroys every live entry and returns all slots to Empty.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return errStoreInvalidated()
	}
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.state == slotLive {
			s.release(sl.key, sl.val)
		}
		sl.reset()
	}
	s.size = 0
	s.metrics.Size(0)
	return nil
}

// Invalidate destroys every live entry, frees the backing array, and marks
// the store invalid. All subsequent operations fail with
// CREAM_STORE_INVALIDATED.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid {
		return errStoreInvalidated()
	}
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.state == slotLive {
			s.release(sl.key, sl.val)
		}
	}
	s.slots = nil
	s.size = 0
	s.invalid = true
	s.metrics.Size(0)
	return nil
}

// Size returns the current number of live entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Capacity returns the fixed slot count.
func (s *Store) Capacity() int { return s.capacity }

// Stats returns a snapshot of the lookup counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Expired: s.expired.Load(),
	}
}

// ---- internals (mu held for writing) ----

// natural returns hash(key) mod capacity, the first index of key's probe
// sequence.
func (s *Store) natural(key []byte) int {
	return int(s.hash(key) % uint32(s.capacity))
}

// expireLocked reclaims sl to Empty if it is Live and past its deadline.
// Expiring to Empty rather than Tombstone makes the entry indistinguishable
// from one that never existed. A younger live entry placed further along a
// chain that crosses this slot becomes unreachable until it expires itself.
func (s *Store) expireLocked(sl *slot, now int64) {
	if sl.state != slotLive || now <= sl.deadline {
		return
	}
	s.release(sl.key, sl.val)
	sl.reset()
	s.size--
	s.expired.Add(1)
	s.metrics.Evict(EvictTTL)
	s.metrics.Size(s.size)
}

// place makes sl Live with the given pair and a fresh deadline.
func (s *Store) place(sl *slot, key, val []byte, now int64) {
	sl.state = slotLive
	sl.key = key
	sl.val = val
	sl.deadline = now + s.ttl
}
