package capture

import "sync"

// StopHandle is a one-shot cooperative stop request shared between the
// listener and any number of callers.
type StopHandle struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func NewStopHandle() *StopHandle {
	return &StopHandle{done: make(chan struct{})}
}

// Stop requests the stop. Calling it again has no effect.
func (h *StopHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *StopHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Done is closed once Stop has been called.
func (h *StopHandle) Done() <-chan struct{} { return h.done }
