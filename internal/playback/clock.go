package playback

import "time"

// Clock abstracts tick scheduling so tests can drive the engine
// deterministically instead of racing real timers.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// Timer is a cancellable single-shot timer. Stop must prevent a
// not-yet-fired timer from delivering, so a cancelled tick can never
// execute with stale state.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock schedules on the runtime timer heap.
type RealClock struct{}

func (RealClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) C() <-chan time.Time { return rt.t.C }
func (rt realTimer) Stop() bool          { return rt.t.Stop() }
