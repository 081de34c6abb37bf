package ike_test

import (
	"testing"
	"time"

	"vpnsim/internal/ike"

	"github.com/jonboulle/clockwork"
)

func waitFired(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("%s did not fire", what)
	}
}

func assertQuiet(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s fired unexpectedly", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerAfter(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := ike.NewScheduler(fc)

	fired := make(chan struct{})
	s.After("t1", time.Minute, func() { close(fired) })

	fc.BlockUntil(1)
	fc.Advance(time.Minute)
	waitFired(t, fired, "one-shot timer")
}

func TestSchedulerCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := ike.NewScheduler(fc)

	fired := make(chan struct{})
	s.After("t1", time.Minute, func() { close(fired) })
	fc.BlockUntil(1)
	s.Cancel("t1")
	fc.Advance(time.Minute)
	assertQuiet(t, fired, "cancelled timer")
}

func TestSchedulerReplaceSameID(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := ike.NewScheduler(fc)

	first := make(chan struct{})
	second := make(chan struct{})
	s.After("t1", time.Minute, func() { close(first) })
	fc.BlockUntil(1)
	// Re-registering under the same id cancels the first timer
	s.After("t1", time.Minute, func() { close(second) })
	fc.BlockUntil(1)

	fc.Advance(time.Minute)
	waitFired(t, second, "replacement timer")
	assertQuiet(t, first, "replaced timer")
}

func TestSchedulerEvery(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := ike.NewScheduler(fc)

	ticks := make(chan struct{}, 10)
	s.Every("t1", time.Second, func() { ticks <- struct{}{} })

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	waitFired(t, ticks, "first tick")

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	waitFired(t, ticks, "second tick")

	s.Cancel("t1")
}

func TestSchedulerCancelAll(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := ike.NewScheduler(fc)

	fired := make(chan struct{}, 2)
	s.After("t1", time.Minute, func() { fired <- struct{}{} })
	s.After("t2", time.Minute, func() { fired <- struct{}{} })
	fc.BlockUntil(2)
	s.CancelAll()
	fc.Advance(time.Minute)
	assertQuiet(t, fired, "cancelled timers")
}
