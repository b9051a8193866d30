package tor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/queue"
	"golang.org/x/time/rate"
)

// eventQueue is the bounded, drop-oldest buffer spec.md §5 requires between
// the message pump's reader goroutine and listener dispatch: "the dispatch
// queue is bounded; on overflow the oldest event is dropped." It is a plain
// mutex-guarded ring because lnd/queue.ConcurrentQueue (used below, per
// listener) grows unboundedly rather than dropping, so it can't itself
// enforce the bound this queue is for.
type eventQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []Event
	capacity int
	closed   bool
	dropped  uint64
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultDispatchQueueLen
	}
	q := &eventQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an event, dropping the oldest queued event if the queue is
// at capacity. It reports whether a drop occurred.
func (q *eventQueue) Push(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	dropped := false
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, e)
	q.notEmpty.Signal()
	return dropped
}

// Pop blocks until an event is available or the queue is closed.
func (q *eventQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// Dropped returns the number of events dropped so far due to overflow.
func (q *eventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close unblocks any pending Pop and rejects further Push calls.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

// listenerQueue fans a single listener's events out onto its own
// lnd/queue.ConcurrentQueue so that one slow listener callback cannot stall
// delivery to any other listener or block draining of the shared
// eventQueue above.
type listenerQueue struct {
	cb   func(Event)
	cq   *queue.ConcurrentQueue
	once sync.Once
}

func newListenerQueue(bufferSize int, cb func(Event)) *listenerQueue {
	if bufferSize <= 0 {
		bufferSize = defaultDispatchQueueLen
	}
	lq := &listenerQueue{
		cb: cb,
		cq: queue.NewConcurrentQueue(bufferSize),
	}
	lq.cq.Start()

	go func() {
		for item := range lq.cq.ChanOut() {
			evt, ok := item.(Event)
			if !ok {
				continue
			}
			lq.cb(evt)
		}
	}()

	return lq
}

func (lq *listenerQueue) deliver(e Event) {
	select {
	case lq.cq.ChanIn() <- e:
	default:
		log.Warnf("listener queue full, dropping event %T", e)
	}
}

func (lq *listenerQueue) stop() {
	lq.once.Do(func() {
		lq.cq.Stop()
	})
}

// cmdLimiter wraps an optional rate.Limiter so a nil limiter (the common
// case) imposes no overhead on the hot path of sending a command.
type cmdLimiter struct {
	limiter *rate.Limiter
}

func (l cmdLimiter) wait() {
	if l.limiter == nil {
		return
	}
	// A command that's already permitted returns immediately; callers
	// that configure a limiter accept the possibility of blocking here
	// to bound outbound command throughput per spec.md §4.8.
	_ = l.limiter.Wait(context.Background()) //nolint:errcheck
}
