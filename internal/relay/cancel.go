package relay

import "sync/atomic"

// CancelToken is a latch polled by the replay loop. Request sets it, Reset
// clears it at the start of each run.
type CancelToken struct {
	requested atomic.Bool
}

func (t *CancelToken) Request() { t.requested.Store(true) }

func (t *CancelToken) Requested() bool { return t.requested.Load() }

func (t *CancelToken) Reset() { t.requested.Store(false) }
