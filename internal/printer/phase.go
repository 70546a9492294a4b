package printer

// Raw PrintInfo.Status codes. The printer reports different codes for the
// same phase depending on mode and on start versus resume.
const (
	StatusUnknown         = -1
	StatusIdle            = 0
	StatusHoming          = 1
	StatusDropping        = 2
	StatusExposuring      = 3
	StatusLifting         = 4
	StatusPausing         = 5
	StatusPaused          = 6
	StatusStopping        = 7
	StatusStopped         = 8
	StatusPreparing       = 9
	StatusPausedAlt       = 10
	StatusPrinting        = 11
	StatusPrintingAlt     = 13
	StatusPreparingAlt    = 16
	StatusPrintingResume  = 18
	StatusPreparingResume = 20
)

// Phase is the logical print phase shared by aliasing status codes.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePreparing Phase = "preparing"
	PhasePrinting  Phase = "printing"
	PhasePaused    Phase = "paused"
	PhaseStopping  Phase = "stopping"
	PhaseUnknown   Phase = "unknown"
)

// Classify maps a raw status code to its phase. Resin sub-steps and the
// undocumented codes are Unknown so nothing acts on them.
func Classify(code int) Phase {
	switch code {
	case StatusIdle, StatusStopped:
		return PhaseIdle
	case StatusHoming, StatusPreparing, StatusPreparingAlt, StatusPreparingResume:
		return PhasePreparing
	case StatusPrinting, StatusPrintingAlt, StatusPrintingResume:
		return PhasePrinting
	case StatusPausing, StatusPaused, StatusPausedAlt:
		return PhasePaused
	case StatusStopping:
		return PhaseStopping
	default:
		return PhaseUnknown
	}
}

// StatusText is the display name of a raw status code.
func StatusText(code int) string {
	switch code {
	case StatusIdle:
		return "IDLE"
	case StatusHoming:
		return "HOMING"
	case StatusDropping:
		return "DROPPING"
	case StatusExposuring:
		return "EXPOSURING"
	case StatusLifting:
		return "LIFTING"
	case StatusPausing:
		return "PAUSING"
	case StatusPaused, StatusPausedAlt:
		return "PAUSED"
	case StatusStopping:
		return "STOPPING"
	case StatusStopped:
		return "STOPPED"
	case StatusPreparing, StatusPreparingAlt, StatusPreparingResume:
		return "PREPARING"
	case StatusPrinting, StatusPrintingAlt, StatusPrintingResume:
		return "PRINTING"
	default:
		return "UNKNOWN"
	}
}
