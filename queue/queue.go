// Package queue provides the unbounded FIFO work queue between the cream
// acceptor and its worker pool.
//
// The queue is a singly linked list under a mutex, paired with an
// item-counting semaphore: Enqueue releases one permit per item and never
// blocks, Dequeue blocks on a permit before popping the head. Backpressure is
// external — the server bounds it with a fixed worker count and a limited
// listener, not with a queue capacity.
//
// Invalidate drains undispatched items through a destructor and wakes every
// blocked Dequeue; wakeups cascade by re-releasing the permit each waiter
// consumed, mirroring the semaphore hand-off of the original design.
package queue

import (
	"context"
	"math"
	"sync"

	"github.com/agilira/go-errors"
	"golang.org/x/sync/semaphore"
)

// ErrCodeQueueInvalidated — the queue was invalidated; enqueues and pending
// dequeues fail.
const ErrCodeQueueInvalidated errors.ErrorCode = "CREAM_QUEUE_INVALIDATED"

func errQueueInvalidated() error {
	return errors.New(ErrCodeQueueInvalidated, "queue has been invalidated")
}

// IsInvalidated reports whether err came from an invalidated queue.
func IsInvalidated(err error) bool { return errors.HasCode(err, ErrCodeQueueInvalidated) }

// node is one queued item. Nodes are created by Enqueue and dropped by
// Dequeue immediately after the item is read.
type node[T any] struct {
	item T
	next *node[T]
}

// Queue is a FIFO queue of T, safe for multiple producers and consumers.
// Enqueue order equals dequeue order across successful pairs.
type Queue[T any] struct {
	mu      sync.Mutex
	head    *node[T]
	tail    *node[T]
	length  int
	invalid bool

	// items counts queued entries. The weighted semaphore starts fully
	// acquired so that the available weight equals the item count.
	items *semaphore.Weighted
}

// maxItems is the semaphore weight backing the item count; effectively
// unbounded for any realistic queue length.
const maxItems = math.MaxInt64

// New returns an empty, valid queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{items: semaphore.NewWeighted(maxItems)}
	// Drain the semaphore so zero weight is available: one Release per
	// Enqueue, one Acquire per Dequeue.
	if !q.items.TryAcquire(maxItems) {
		panic("queue: fresh semaphore must be acquirable")
	}
	return q
}

// Enqueue appends v to the tail and signals one waiter. It never blocks on
// capacity and fails only on an invalidated queue.
func (q *Queue[T]) Enqueue(v T) error {
	q.mu.Lock()
	if q.invalid {
		q.mu.Unlock()
		return errQueueInvalidated()
	}
	n := &node[T]{item: v}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.length++
	q.mu.Unlock()

	q.items.Release(1)
	return nil
}

// Dequeue blocks until an item is available, the queue is invalidated, or ctx
// is done, then pops the head. Waiters are served in FIFO order.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	if err := q.items.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	q.mu.Lock()
	if q.invalid {
		q.mu.Unlock()
		// Hand the permit to the next waiter so the invalidation wakeup
		// cascades through everyone still blocked.
		q.items.Release(1)
		return zero, errQueueInvalidated()
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.length--
	q.mu.Unlock()
	return n.item, nil
}

// Invalidate drains all remaining items through destroy (which may be nil),
// marks the queue invalid, and wakes every blocked Dequeue.
func (q *Queue[T]) Invalidate(destroy func(T)) error {
	q.mu.Lock()
	if q.invalid {
		q.mu.Unlock()
		return errQueueInvalidated()
	}
	for n := q.head; n != nil; n = n.next {
		if destroy != nil {
			destroy(n.item)
		}
	}
	q.head = nil
	q.tail = nil
	q.length = 0
	q.invalid = true
	q.mu.Unlock()

	// Start the wakeup cascade; each woken waiter re-releases its permit.
	q.items.Release(1)
	return nil
}

// Len returns the number of undispatched items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
