package store

import (
	"time"

	"github.com/agilira/go-timecache"
)

// DefaultTTL is the entry time-to-live applied when Options.TTL is zero.
// It matches the constant the wire protocol's original deployment shipped with.
const DefaultTTL = 2 * time.Second

// HashFunc maps key bytes to a 32-bit digest. The store reduces the digest
// modulo its capacity; the function must be deterministic for byte-equal keys.
type HashFunc func(key []byte) uint32

// ReleaseFunc is invoked exactly once for every destroyed key/value pair.
// It is the sole release path for entry bytes and runs while the store lock
// is held, so it must be non-blocking and must not call back into the store.
type ReleaseFunc func(key, val []byte)

// Clock provides time in nanoseconds; useful for deterministic tests.
// Values must be monotonically non-decreasing.
type Clock interface{ NowNano() int64 }

// timecacheClock is the default clock. TTL checks run on every probe step,
// so the cached time source keeps them off the vDSO hot path.
type timecacheClock struct{}

func (timecacheClock) NowNano() int64 { return timecache.CachedTimeNano() }

// Options configures a Store. Capacity is required; zero values elsewhere are
// safe, with defaults applied in New():
//   - nil Hash    => Jenkins one-at-a-time (util.Jenkins32)
//   - nil Release => no-op
//   - TTL == 0    => DefaultTTL
//   - nil Clock   => go-timecache-backed system clock
//   - nil Metrics => NoopMetrics
type Options struct {
	// Capacity is the exact slot count, fixed for the life of the store.
	// Must be in [1, 2^32-1].
	Capacity int

	// Hash produces the 32-bit key digest used for the natural index.
	Hash HashFunc

	// Release observes every destroyed key/value pair (replacement, TTL
	// expiry, evict, displacement, clear, invalidate).
	Release ReleaseFunc

	// TTL is the fixed lifetime of every entry, measured from insertion or
	// replacement. Negative values are rejected.
	TTL time.Duration

	// Clock overrides the time source (tests). Nil => cached system clock.
	Clock Clock

	// Metrics receives Hit/Miss/Evict/Size signals.
	Metrics Metrics
}
