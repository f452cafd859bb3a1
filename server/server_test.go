package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/IvanBrykalov/cream/client"
	"github.com/IvanBrykalov/cream/server"
	"github.com/IvanBrykalov/cream/wire"
)

// startServer runs a server on an ephemeral port and returns a client bound
// to it. Shutdown and its error are checked in cleanup.
func startServer(t *testing.T, cfg server.Config) *client.Client {
	t.Helper()

	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour // keep expiry out of tests that don't ask for it
	}
	cfg.Logger = zaptest.NewLogger(t)

	srv, err := server.New(cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
	return client.New(ln.Addr().String(), 2*time.Second)
}

func TestServer_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := server.New(server.Config{Workers: 0, MaxEntries: 4})
	require.Error(t, err)
	_, err = server.New(server.Config{Workers: 2, MaxEntries: 0})
	require.Error(t, err)
}

func TestServer_PutThenGet(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	for i, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Put([]byte(k), []byte{byte('1' + i)}))
	}
	v, err := c.Get([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)
}

// A forced put into a full table replaces an earlier entry at its natural
// index; the displaced key answers NOT_FOUND and the survivors keep their
// values.
func TestServer_ForcedPutDisplaces(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 2})
	require.NoError(t, c.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, c.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, c.Put([]byte("k3"), []byte("v3")))

	found := 0
	for _, k := range []string{"k1", "k2"} {
		v, err := c.Get([]byte(k))
		if err != nil {
			require.True(t, client.IsNotFound(err), "unexpected error for %s: %v", k, err)
			continue
		}
		require.Equal(t, []byte("v"+k[1:]), v)
		found++
	}
	require.Equal(t, 1, found, "exactly one earlier entry must survive")

	v, err := c.Get([]byte("k3"))
	require.NoError(t, err)
	require.Equal(t, []byte("v3"), v)
}

func TestServer_EvictCycle(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	require.NoError(t, c.Put([]byte("x"), []byte("y")))
	require.NoError(t, c.Evict([]byte("x")))

	_, err := c.Get([]byte("x"))
	require.True(t, client.IsNotFound(err), "got %v", err)

	require.NoError(t, c.Put([]byte("x"), []byte("z")))
	v, err := c.Get([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("z"), v)
}

// Evicting an absent key still answers OK.
func TestServer_EvictAbsentKey(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	require.NoError(t, c.Evict([]byte("ghost")))
}

func TestServer_OversizedKeyRejected(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	require.NoError(t, c.Put([]byte("keep"), []byte("v")))

	long := make([]byte, wire.MaxKeySize+1)
	for i := range long {
		long[i] = 'k'
	}
	err := c.Put(long, []byte("v"))
	require.True(t, client.IsBadRequest(err), "got %v", err)

	// A bad request must not disturb the table.
	v, err := c.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestServer_OversizedValueRejected(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	big := make([]byte, wire.MaxValueSize+1)
	err := c.Put([]byte("k"), big)
	require.True(t, client.IsBadRequest(err), "got %v", err)

	_, err = c.Get([]byte("k"))
	require.True(t, client.IsNotFound(err), "got %v", err)
}

func TestServer_Clear(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 8})
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put([]byte(k), []byte("v")))
	}
	require.NoError(t, c.Clear())
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Get([]byte(k))
		require.True(t, client.IsNotFound(err), "key %s: %v", k, err)
	}
}

func TestServer_UnknownOpcode(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	require.NoError(t, c.Put([]byte("k"), []byte("v")))

	resp, _, err := c.Do(0xDEADBEEF, nil, nil)
	require.NoError(t, err)
	require.Equal(t, wire.StatusUnsupported, resp.Code)

	// No state change.
	v, err := c.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestServer_GetMiss(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4})
	_, err := c.Get([]byte("nope"))
	require.True(t, client.IsNotFound(err), "got %v", err)
}

func TestServer_TTLExpiresEntries(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 4, TTL: 50 * time.Millisecond})
	require.NoError(t, c.Put([]byte("k"), []byte("v")))

	require.Eventually(t, func() bool {
		_, err := c.Get([]byte("k"))
		return client.IsNotFound(err)
	}, 2*time.Second, 20*time.Millisecond, "entry must expire")
}

// Many concurrent clients against a small worker pool: the queue absorbs the
// burst and every request gets a response.
func TestServer_ConcurrentClients(t *testing.T) {
	t.Parallel()

	c := startServer(t, server.Config{MaxEntries: 1024, Workers: 2})

	const n = 64
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			k := []byte{byte('a' + i%26), byte('0' + i%10)}
			if err := c.Put(k, []byte("v")); err != nil {
				errs <- err
				return
			}
			_, err := c.Get(k)
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
}
