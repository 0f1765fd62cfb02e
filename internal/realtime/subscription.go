package realtime

import "sync"

// subscription delivers snapshots for one path on its own goroutine.
// The mailbox holds only the newest undelivered snapshot: a consumer that
// falls behind skips intermediate states but never sees an older one after
// a newer one.
type subscription struct {
	id   uint64
	path string
	segs []string
	fn   func(Snapshot)

	// last is the most recently queued encoding; owned by the hub loop.
	last []byte

	mu      sync.Mutex
	pending *Snapshot
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func newSubscription(path string, segs []string, fn func(Snapshot)) *subscription {
	return &subscription{
		path: path,
		segs: segs,
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

func (s *subscription) push(snap Snapshot) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			snap := s.pending
			s.pending = nil
			s.mu.Unlock()

			if snap != nil {
				s.fn(*snap)
			}
		}
	}
}

// stop prevents further deliveries. A delivery already running completes.
func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.pending = nil
	s.mu.Unlock()
	s.quitOnce.Do(func() { close(s.quit) })
}
