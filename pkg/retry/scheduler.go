package retry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler arms one-shot retry timers keyed by URI. Scheduling a URI that
// already has a pending timer replaces it, so at most one retry is ever
// outstanding per bookmark. Fired tasks remove themselves.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a one-shot timer for the URI, replacing any pending one.
func (s *Scheduler) Schedule(uri string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[uri]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A replacement may have been armed after this one fired but before
		// it reached the lock; only remove our own entry.
		if s.timers[uri] == timer {
			delete(s.timers, uri)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[uri] = timer

	log.Debug().Str("uri", uri).Dur("delay", delay).Msg("retry scheduled")
}

// Cancel stops and removes any pending task for the URI. Safe when none exists.
func (s *Scheduler) Cancel(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
		delete(s.timers, uri)
	}
}

// CancelAll stops every pending task. Used at shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, t := range s.timers {
		t.Stop()
		delete(s.timers, uri)
	}
}

// Pending returns the number of outstanding retry tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Has reports whether a retry is pending for the URI.
func (s *Scheduler) Has(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[uri]
	return ok
}
