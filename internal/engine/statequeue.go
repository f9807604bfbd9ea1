package engine

import "sync"

// stateQueue is an unbounded FIFO of RunState updates for one subscriber.
//
// The State pushes while holding its own lock, so Push must never block.
// A pump goroutine moves queued updates onto the subscriber's channel at
// whatever pace the subscriber reads.
type stateQueue struct {
	mu     sync.Mutex
	items  []RunState
	closed bool
	signal chan struct{} // buffered, size 1
	done   chan struct{}
}

func newStateQueue() *stateQueue {
	return &stateQueue{
		items:  make([]RunState, 0, 16),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends st. Returns false if the queue is closed.
func (q *stateQueue) Push(st RunState) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, st)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the front update without blocking.
func (q *stateQueue) TryPop() (RunState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return RunState{}, false
	}
	st := q.items[0]
	q.items[0] = RunState{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return st, true
}

// Close stops delivery. Updates not yet read are discarded.
func (q *stateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

// pump delivers queued updates to out until Close, then closes out.
func (q *stateQueue) pump(out chan<- RunState) {
	defer close(out)
	for {
		if st, ok := q.TryPop(); ok {
			select {
			case out <- st:
			case <-q.done:
				return
			}
			continue
		}

		select {
		case <-q.signal:
		case <-q.done:
			return
		}
	}
}
