package ike

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler owns every DPD and rekey timer, keyed by string id, so that a
// timer can always be cancelled atomically with the deletion of its SA.
// A fake clock can be substituted for tests.
type Scheduler struct {
	clock clockwork.Clock

	mtx    sync.Mutex
	timers map[string]*timerEntry
}

type timerEntry struct {
	cancel context.CancelFunc
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*timerEntry),
	}
}

// After runs f once after d. A previous timer registered under the same id
// is cancelled first.
func (s *Scheduler) After(id string, d time.Duration, f func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.cancelLocked(id)

	ctx, cancel := context.WithCancel(context.Background())
	entry := &timerEntry{cancel: cancel}
	s.timers[id] = entry

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(d):
			s.forget(id, entry)
			f()
		}
	}()
}

// Every runs f on every tick of d until cancelled.
func (s *Scheduler) Every(id string, d time.Duration, f func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.cancelLocked(id)

	ctx, cancel := context.WithCancel(context.Background())
	entry := &timerEntry{cancel: cancel}
	s.timers[id] = entry

	go func() {
		ticker := s.clock.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				f()
			}
		}
	}()
}

func (s *Scheduler) Cancel(id string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.cancelLocked(id)
}

func (s *Scheduler) CancelAll() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for id, entry := range s.timers {
		entry.cancel()
		delete(s.timers, id)
	}
}

func (s *Scheduler) cancelLocked(id string) {
	if entry, ok := s.timers[id]; ok {
		entry.cancel()
		delete(s.timers, id)
	}
}

// forget drops the bookkeeping entry of a fired one-shot timer, unless the
// id was reused in the meantime.
func (s *Scheduler) forget(id string, entry *timerEntry) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if cur, ok := s.timers[id]; ok && cur == entry {
		delete(s.timers, id)
	}
}
