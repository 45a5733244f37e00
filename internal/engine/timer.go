package engine

import (
	"sync"
	"time"
)

// timerArmer is the in-process timer backend: one time.Timer, replaced on
// every Arm.
type timerArmer struct {
	mu   sync.Mutex
	t    *time.Timer
	fire func()
}

func newTimerArmer(fire func()) *timerArmer {
	return &timerArmer{fire: fire}
}

func (a *timerArmer) Arm(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != nil {
		a.t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	a.t = time.AfterFunc(d, a.fire)
}

func (a *timerArmer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != nil {
		a.t.Stop()
		a.t = nil
	}
}
