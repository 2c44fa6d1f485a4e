package providers

import "sync/atomic"

// SessionCounterHolder lets the metrics gauges be registered before the
// monitor service exists. Until Attach is called the counts read zero.
type SessionCounterHolder struct {
	counter atomic.Pointer[SessionCounter]
}

func NewSessionCounterHolder() *SessionCounterHolder {
	return &SessionCounterHolder{}
}

func (h *SessionCounterHolder) Attach(counter SessionCounter) {
	h.counter.Store(&counter)
}

func (h *SessionCounterHolder) SessionCount() int {
	if c := h.counter.Load(); c != nil {
		return (*c).SessionCount()
	}
	return 0
}

func (h *SessionCounterHolder) StreamingCount() int {
	if c := h.counter.Load(); c != nil {
		return (*c).StreamingCount()
	}
	return 0
}
