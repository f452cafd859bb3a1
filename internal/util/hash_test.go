package util

import (
	"fmt"
	"testing"
)

func TestJenkins32_Deterministic(t *testing.T) {
	t.Parallel()

	keys := [][]byte{[]byte("a"), []byte("key"), []byte("another key"), {0x00, 0xff, 0x10}}
	for _, k := range keys {
		if Jenkins32(k) != Jenkins32(append([]byte(nil), k...)) {
			t.Fatalf("digest for %q not stable across equal inputs", k)
		}
	}
}

// Single-byte differences must change the digest; a hash that collapses
// neighbors would turn the probe sequence into one long cluster.
func TestJenkins32_Disperses(t *testing.T) {
	t.Parallel()

	seen := make(map[uint32][]string)
	for i := 0; i < 1000; i++ {
		k := fmt.Sprintf("k:%d", i)
		h := Jenkins32([]byte(k))
		seen[h] = append(seen[h], k)
	}
	for h, ks := range seen {
		if len(ks) > 1 {
			t.Fatalf("digest %#x shared by %v", h, ks)
		}
	}
}

func TestJenkins32_EmptyInput(t *testing.T) {
	t.Parallel()

	// The store rejects empty keys, but the function itself must not panic.
	_ = Jenkins32(nil)
	_ = Jenkins32([]byte{})
}
