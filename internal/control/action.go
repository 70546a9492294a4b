package control

import (
	"fmt"
)

// Action names accepted by Execute.
const (
	ActionStart           = "start"
	ActionPause           = "pause"
	ActionResume          = "resume"
	ActionCancel          = "cancel"
	ActionToggleLight     = "toggleLight"
	ActionToggleAutoPause = "toggleAutoPause"
	ActionClearError      = "clearError"
	ActionSetPauseDelay   = "setPauseDelay"
)

// Request is a control action as posted by the HTTP and MQTT surfaces.
type Request struct {
	Action   string  `json:"action"`
	Filename string  `json:"filename,omitempty"`
	Delay    *uint32 `json:"delay,omitempty"`
}

// Execute runs one action and returns a short human-readable result.
func (d *Dispatcher) Execute(req Request) (string, error) {
	switch req.Action {
	case ActionStart:
		if err := d.StartPrint(req.Filename); err != nil {
			return "", err
		}
		return "Print started", nil
	case ActionPause:
		if err := d.PausePrint(); err != nil {
			return "", err
		}
		return "Print paused", nil
	case ActionResume:
		if err := d.ResumePrint(); err != nil {
			return "", err
		}
		return "Print resumed", nil
	case ActionCancel:
		if err := d.CancelPrint(); err != nil {
			return "", err
		}
		return "Print cancelled", nil
	case ActionToggleLight:
		if err := d.ToggleLight(); err != nil {
			return "", err
		}
		return "Light toggled", nil
	case ActionToggleAutoPause:
		enabled, err := d.sensor.ToggleAutoPause()
		if err != nil {
			return "", fmt.Errorf("toggle auto-pause: %w", err)
		}
		if enabled {
			return "Auto-pause enabled", nil
		}
		return "Auto-pause disabled", nil
	case ActionClearError:
		d.sensor.Reset()
		return "Sensor error cleared", nil
	case ActionSetPauseDelay:
		delay := d.sensor.MotionTimeout()
		if req.Delay != nil {
			delay = *req.Delay
		}
		if err := d.sensor.SetMotionTimeout(delay); err != nil {
			return "", fmt.Errorf("set pause delay: %w", err)
		}
		return fmt.Sprintf("Pause delay updated to %d ms", delay), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}
