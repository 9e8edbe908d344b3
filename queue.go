package httpsession

import "sync"

// ------------------------------------------------------------------------

// queuedCaller is one requestSession call waiting for its turn on a session
// that does not allow multiple concurrent requests. admit is closed to wake
// the caller; err, if non-nil by the time admit closes, is what the caller
// should return instead of proceeding (e.g. because the session shut down
// while it was queued).
type queuedCaller struct {
	admit chan struct{}
	err   error
}

func newQueuedCaller() *queuedCaller {
	return &queuedCaller{admit: make(chan struct{})}
}

// ------------------------------------------------------------------------

// callerQueue is a FIFO of queuedCaller, guarded by its own mutex so it can
// be manipulated independently of the Session's broader lock. Grounded on
// the teacher's jobqueue.go shape (a mutex-guarded slice with push/pop/len)
// but holding live values instead of encoded bytes, since a queued caller
// is in-process goroutine state with nothing to persist.
type callerQueue struct {
	mu      sync.Mutex
	waiters []*queuedCaller
}

func newCallerQueue() *callerQueue {
	return &callerQueue{}
}

// push appends c to the tail of the queue.
func (q *callerQueue) push(c *queuedCaller) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiters = append(q.waiters, c)
}

// popFront removes and returns the caller at the head of the queue, or nil
// if the queue is empty.
func (q *callerQueue) popFront() *queuedCaller {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) == 0 {
		return nil
	}

	c := q.waiters[0]
	q.waiters = q.waiters[1:]

	return c
}

// remove drops c from the queue without admitting it, used when a caller's
// context is canceled while still waiting. It reports whether c was found.
func (q *callerQueue) remove(c *queuedCaller) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w == c {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}

	return false
}

// len reports how many callers are currently waiting.
func (q *callerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.waiters)
}

// drain admits every waiting caller with err, used on shutdown so nobody is
// left blocked forever.
func (q *callerQueue) drain(err error) {
	q.mu.Lock()
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		w.err = err
		close(w.admit)
	}
}
