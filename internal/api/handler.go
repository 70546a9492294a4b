package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"filament-monitor-backend/internal/control"
	"filament-monitor-backend/internal/filament"
	"filament-monitor-backend/internal/printer"
	"filament-monitor-backend/internal/store"
)

// StateSource exposes the latest printer state.
type StateSource interface {
	Snapshot() printer.State
}

// SensorSource exposes the filament sensor.
type SensorSource interface {
	Snapshot() filament.Snapshot
}

// Commander runs control actions.
type Commander interface {
	Execute(req control.Request) (string, error)
}

// LinkState reports whether the printer connection is up.
type LinkState interface {
	Connected() bool
}

// Deps are the collaborators the handlers read from and act on.
type Deps struct {
	Store   store.Store
	WebPush *webpush.Options
	Printer StateSource
	Sensor  SensorSource
	Control Commander
	Link    LinkState
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}
