// Package server wires cream's pieces into a TCP service: a bounded listener
// feeds accepted connections into a FIFO queue consumed by a fixed pool of
// workers, each of which executes exactly one wire-protocol request per
// connection against the shared store and then closes it.
package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	goerrors "github.com/agilira/go-errors"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/cream/queue"
	"github.com/IvanBrykalov/cream/store"
)

// DefaultMaxConns bounds concurrently accepted connections when
// Config.MaxConns is zero. The queue itself is unbounded; this listener-side
// cap is what keeps a slow worker pool from accumulating sockets without
// limit.
const DefaultMaxConns = 1024

// ErrCodeInvalidConfig — Workers or MaxEntries below 1.
const ErrCodeInvalidConfig goerrors.ErrorCode = "CREAM_INVALID_CONFIG"

// Config configures a Server.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8888".
	Addr string

	// Workers is the number of long-lived worker goroutines. Must be >= 1.
	Workers int

	// MaxEntries is the store capacity. Must be >= 1.
	MaxEntries int

	// MaxConns caps concurrently accepted connections; 0 => DefaultMaxConns.
	MaxConns int

	// TTL overrides the store's entry lifetime; 0 => store.DefaultTTL.
	TTL time.Duration

	// Logger receives operational logs; nil => zap.NewNop().
	Logger *zap.Logger

	// Metrics is handed to the store; nil => store.NoopMetrics.
	Metrics store.Metrics
}

// Server owns the store, the connection queue, and the worker pool.
type Server struct {
	cfg   Config
	log   *zap.Logger
	store *store.Store
	conns *queue.Queue[net.Conn]
}

// New validates cfg and builds a Server with its store and queue.
func New(cfg Config) (*Server, error) {
	if cfg.Workers < 1 {
		return nil, goerrors.NewWithField(ErrCodeInvalidConfig, "workers must be >= 1", "workers", strconv.Itoa(cfg.Workers))
	}
	if cfg.MaxEntries < 1 {
		return nil, goerrors.NewWithField(ErrCodeInvalidConfig, "max entries must be >= 1", "max_entries", strconv.Itoa(cfg.MaxEntries))
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	st, err := store.New(store.Options{
		Capacity: cfg.MaxEntries,
		TTL:      cfg.TTL,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		log:   cfg.Logger,
		store: st,
		conns: queue.New[net.Conn](),
	}, nil
}

// Store exposes the underlying table, mainly for stats reporting.
func (s *Server) Store() *store.Store { return s.store }

// Run listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then drains:
// the listener closes, workers finish their in-flight request, undispatched
// connections are closed, and the store is invalidated.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	s.log.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.cfg.Workers),
		zap.Int("max_entries", s.cfg.MaxEntries),
		zap.Int("max_conns", s.cfg.MaxConns),
	)

	g, ctx := errgroup.WithContext(ctx)

	// Unblock Accept when the context ends.
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	for i := 0; i < s.cfg.Workers; i++ {
		id := i
		g.Go(func() error { return s.worker(ctx, id) })
	}
	g.Go(func() error { return s.accept(ctx, ln) })

	err := g.Wait()

	// Connections accepted but never dequeued get closed unanswered.
	_ = s.conns.Invalidate(func(c net.Conn) { _ = c.Close() })
	_ = s.store.Invalidate()
	s.log.Info("stopped")

	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// accept is the producer: it loops on Accept and enqueues each connection.
// It never waits for a worker; the queue absorbs bursts and the limited
// listener provides the upper bound.
func (s *Server) accept(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return err
		}
		if err := s.conns.Enqueue(conn); err != nil {
			_ = conn.Close()
			return err
		}
		s.log.Debug("accepted",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Int("backlog", s.conns.Len()),
		)
	}
}

// worker is a consumer: dequeue, serve one request, close, repeat.
func (s *Server) worker(ctx context.Context, id int) error {
	log := s.log.With(zap.Int("worker", id))
	for {
		conn, err := s.conns.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || queue.IsInvalidated(err) {
				return ctx.Err()
			}
			return err
		}
		s.handle(log, conn)
		_ = conn.Close()
	}
}
