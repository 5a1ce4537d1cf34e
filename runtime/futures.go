package runtime

import (
	"sync"

	"github.com/wasmlink/wasmlink/errors"
)

// pendingTable tracks async export futures by their callee-assigned
// handle. Each handle resolves at most once; resolving an unknown or
// already-settled handle is a protocol violation.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[uint64]chan []byte
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[uint64]chan []byte)}
}

func (t *pendingTable) register(handle uint64) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.NotInitialized(errors.PhaseResolve, "instance")
	}
	if _, exists := t.waiters[handle]; exists {
		return nil, errors.InvalidHandle(handle, "handle already pending")
	}
	ch := make(chan []byte, 1)
	t.waiters[handle] = ch
	return ch, nil
}

func (t *pendingTable) resolve(handle uint64, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.waiters[handle]
	if !ok {
		return errors.InvalidHandle(handle, "no pending future for handle")
	}
	delete(t.waiters, handle)
	ch <- data
	close(ch)
	return nil
}

// cancel drops a waiter whose caller gave up. A later resolve for the
// handle fails as unknown.
func (t *pendingTable) cancel(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiters, handle)
}

// close fails every outstanding waiter.
func (t *pendingTable) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for handle, ch := range t.waiters {
		delete(t.waiters, handle)
		close(ch)
	}
}
