package notification

import (
	"time"

	"filament-monitor-backend/internal/filament"
	"filament-monitor-backend/internal/model"
	"filament-monitor-backend/internal/printer"
)

// StartedEvent announces a print entering the printing phase.
func StartedEvent(st printer.State, at time.Time) Event {
	return Event{Kind: EventPrintStarted, Filename: st.Filename, At: at}
}

// CompletedEvent builds the notification and history row for a finished print.
func CompletedEvent(st printer.State, elapsed time.Duration, at time.Time) Event {
	elapsed = elapsed.Round(time.Second)
	return Event{
		Kind:     EventPrintCompleted,
		Filename: st.Filename,
		Duration: elapsed,
		At:       at,
		Job: &model.PrintJob{
			Filename:    st.Filename,
			StartedAt:   at.Add(-elapsed),
			FinishedAt:  at,
			DurationSec: int64(elapsed / time.Second),
			TotalLayers: st.TotalLayers,
		},
	}
}

// FaultEvent builds the notification and history row for a filament fault.
func FaultEvent(f filament.Fault, at time.Time) Event {
	kind := EventFilamentRunout
	if f.Status == filament.StatusJam {
		kind = EventFilamentJam
	}
	return Event{
		Kind:     kind,
		Filename: f.Filename,
		At:       at,
		Fault: &model.FilamentFault{
			Status:       string(f.Status),
			ObservedAt:   at,
			Filename:     f.Filename,
			Position:     f.Position,
			SincePulseMs: f.SincePulseMs,
			Pulses:       f.Pulses,
			AutoPaused:   f.AutoPaused,
		},
	}
}
