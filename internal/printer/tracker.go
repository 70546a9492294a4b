package printer

import (
	"time"

	"filament-monitor-backend/internal/hw"
)

// Tracker watches print status transitions for start and completion.
type Tracker struct {
	clock hw.Clock

	// OnStart fires when the printer enters a printing code from any other code.
	OnStart func(st State)
	// OnComplete fires once when printing goes straight to idle or stopped,
	// with the time spent since printing began.
	OnComplete func(st State, elapsed time.Duration)

	lastStatus int
	startedAt  int64
}

func NewTracker(clock hw.Clock) *Tracker {
	return &Tracker{clock: clock, lastStatus: StatusUnknown}
}

// Observe is a Store Observer.
func (t *Tracker) Observe(_, next State) {
	if next.PrintStatus == t.lastStatus {
		return
	}
	was := Classify(t.lastStatus)
	now := Classify(next.PrintStatus)
	t.lastStatus = next.PrintStatus

	if was != PhasePrinting && now == PhasePrinting {
		t.startedAt = t.clock.NowMs()
		if t.OnStart != nil {
			t.OnStart(next)
		}
	}

	if was == PhasePrinting && now == PhaseIdle {
		elapsed := time.Duration(t.clock.NowMs()-t.startedAt) * time.Millisecond
		if t.OnComplete != nil {
			t.OnComplete(next, elapsed)
		}
	}
}
