package notification

import (
	"fmt"
	"time"

	"filament-monitor-backend/internal/model"
)

// EventKind names something worth telling a person about.
type EventKind string

const (
	EventPrintStarted   EventKind = "print_started"
	EventPrintCompleted EventKind = "print_completed"
	EventFilamentRunout EventKind = "filament_runout"
	EventFilamentJam    EventKind = "filament_jam"
)

// Event is one notification job. Job is set for completed prints and Fault
// for filament faults; both are persisted before anyone is notified.
type Event struct {
	Kind     EventKind
	Filename string
	Duration time.Duration
	At       time.Time

	Job   *model.PrintJob
	Fault *model.FilamentFault
}

// Title is the short headline shown in push notifications.
func (e Event) Title() string {
	switch e.Kind {
	case EventPrintStarted:
		return "Print started"
	case EventPrintCompleted:
		return "Print complete"
	case EventFilamentRunout:
		return "Filament runout"
	case EventFilamentJam:
		return "Filament jam"
	default:
		return "Printer notice"
	}
}

// Body is the message text.
func (e Event) Body() string {
	name := e.Filename
	if name == "" {
		name = "unknown file"
	}
	switch e.Kind {
	case EventPrintStarted:
		return fmt.Sprintf("Started printing %s.", name)
	case EventPrintCompleted:
		return fmt.Sprintf("Finished %s in %s.", name, formatDuration(e.Duration))
	case EventFilamentRunout, EventFilamentJam:
		what := "ran out"
		if e.Kind == EventFilamentJam {
			what = "stopped moving"
		}
		msg := fmt.Sprintf("Filament %s while printing %s.", what, name)
		if e.Fault != nil && e.Fault.AutoPaused {
			msg += " The print was paused."
		}
		return msg
	default:
		return name
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
