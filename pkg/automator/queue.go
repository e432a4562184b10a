package automator

import "sync"

// opQueue serializes operations in strict call order. Each operation chains
// behind the previous one whether it succeeded or failed, so operations never
// interleave against the shared browser session. This is the system's sole
// concurrency-safety mechanism; there is no separate lock around the session.
type opQueue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Do runs fn after every previously enqueued operation has finished.
// Enqueue order equals call order; fn's error is returned to this caller
// only and does not affect later operations.
func (q *opQueue) Do(fn func() error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	defer close(done)
	if prev != nil {
		<-prev
	}
	return fn()
}
