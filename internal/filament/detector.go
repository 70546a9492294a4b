package filament

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"filament-monitor-backend/internal/hw"
	"filament-monitor-backend/internal/printer"
)

// Status is the classified sensor state.
type Status string

const (
	StatusOK     Status = "OK"
	StatusRunout Status = "RUNOUT"
	StatusJam    Status = "JAM"
)

// Default polling intervals in milliseconds.
const (
	DefaultMotionCheckIntervalMs   = 100
	DefaultPositionCheckIntervalMs = 500
)

// Pauser pauses the current print.
type Pauser interface {
	PausePrint() error
}

// StateReader exposes the latest printer state.
type StateReader interface {
	Snapshot() printer.State
}

// Fault describes one entry into an error state.
type Fault struct {
	Status       Status `json:"status"`
	AtMs         int64  `json:"atMs"`
	SincePulseMs int64  `json:"sincePulseMs"`
	Position     string `json:"position"`
	Pulses       uint32 `json:"pulses"`
	Filename     string `json:"filename"`
	AutoPaused   bool   `json:"autoPaused"`
}

// Config holds the detector's polling intervals.
type Config struct {
	MotionCheckIntervalMs   int64
	PositionCheckIntervalMs int64

	// DisableMotion turns off jam detection for setups without a motion
	// line. Runout detection from the presence input stays active.
	DisableMotion bool
}

// Detector classifies the filament as OK, run out or jammed from the presence
// switch, the motion pulse stream and the reported toolhead position.
//
// RecordPulse runs on the interrupt context. Everything else that mutates
// detection state runs on the session loop, except Reset which may also come
// from API goroutines and is therefore serialized with Tick by mu.
type Detector struct {
	cfg      Config
	clock    hw.Clock
	presence hw.InputPin
	state    StateReader
	settings SettingsStore
	log      *zap.Logger

	pauser  Pauser
	onFault func(Fault)

	// Shared with the interrupt context.
	lastPulse atomic.Int64
	pulses    atomic.Uint32

	autoPause     atomic.Bool
	motionTimeout atomic.Uint32

	mu           sync.Mutex
	status       Status
	lastCheck    int64
	lastPosCheck int64
	lastPosition string
}

// NewDetector creates a detector with default settings. Call LoadSettings to
// apply the persisted ones.
func NewDetector(cfg Config, clock hw.Clock, presence hw.InputPin, state StateReader, settings SettingsStore, logger *zap.Logger) *Detector {
	if cfg.MotionCheckIntervalMs <= 0 {
		cfg.MotionCheckIntervalMs = DefaultMotionCheckIntervalMs
	}
	if cfg.PositionCheckIntervalMs <= 0 {
		cfg.PositionCheckIntervalMs = DefaultPositionCheckIntervalMs
	}
	d := &Detector{
		cfg:      cfg,
		clock:    clock,
		presence: presence,
		state:    state,
		settings: settings,
		log:      logger,
		status:   StatusOK,
	}
	d.autoPause.Store(true)
	d.motionTimeout.Store(DefaultMotionTimeoutMs)
	if cfg.DisableMotion {
		logger.Warn("Motion sensing disabled, only runout is detected")
	}
	return d
}

// AttachPauser sets the mitigation target. The dispatcher depends on the
// detector for resets, so it is wired after construction.
func (d *Detector) AttachPauser(p Pauser) { d.pauser = p }

// OnFault registers a callback run on the loop for every entry into RUNOUT or JAM.
func (d *Detector) OnFault(fn func(Fault)) { d.onFault = fn }

// RecordPulse is the motion interrupt handler: timestamp and count, nothing else.
func (d *Detector) RecordPulse() {
	d.lastPulse.Store(d.clock.NowMs())
	d.pulses.Add(1)
}

// Tick runs one evaluation. It is called on every session loop iteration.
func (d *Detector) Tick(now int64) {
	st := d.state.Snapshot()

	d.mu.Lock()
	fault, raised := d.evaluate(now, st)
	d.mu.Unlock()

	if raised {
		d.mitigate(fault)
	}
}

func (d *Detector) evaluate(now int64, st printer.State) (Fault, bool) {
	if st.Phase() != printer.PhasePrinting {
		d.lastCheck = 0
		if d.status != StatusOK {
			d.log.Info("Filament error cleared, printer not printing", zap.String("previous", string(d.status)))
			d.status = StatusOK
		}
		return Fault{}, false
	}

	// Presence is decisive and checked on every tick.
	if !d.presence.Get() {
		if d.status == StatusOK {
			return d.raise(StatusRunout, now, st), true
		}
		return Fault{}, false
	}

	if d.cfg.DisableMotion {
		return Fault{}, false
	}

	if now-d.lastCheck < d.cfg.MotionCheckIntervalMs {
		return Fault{}, false
	}
	d.lastCheck = now

	if !d.headMoving(now, st.CurrentCoord) {
		return Fault{}, false
	}

	sincePulse := now - d.lastPulse.Load()
	timeout := int64(d.motionTimeout.Load())

	switch {
	case sincePulse > timeout && d.status == StatusOK:
		return d.raise(StatusJam, now, st), true
	case sincePulse < timeout && d.pulses.Load() > 0 && d.status != StatusOK:
		d.log.Info("Filament motion resumed",
			zap.String("previous", string(d.status)),
			zap.Int64("since_pulse_ms", sincePulse),
		)
		d.status = StatusOK
	}
	return Fault{}, false
}

// headMoving compares the last two position samples, at most once per
// position interval. The first sample is never reported as movement.
func (d *Detector) headMoving(now int64, pos string) bool {
	if now-d.lastPosCheck < d.cfg.PositionCheckIntervalMs {
		return false
	}
	d.lastPosCheck = now

	if d.lastPosition == "" {
		d.lastPosition = pos
		return false
	}
	moving := pos != d.lastPosition
	if moving {
		d.log.Debug("Toolhead moving", zap.String("from", d.lastPosition), zap.String("to", pos))
	}
	d.lastPosition = pos
	return moving
}

func (d *Detector) raise(s Status, now int64, st printer.State) Fault {
	d.status = s
	return Fault{
		Status:       s,
		AtMs:         now,
		SincePulseMs: now - d.lastPulse.Load(),
		Position:     st.CurrentCoord,
		Pulses:       d.pulses.Load(),
		Filename:     st.Filename,
		AutoPaused:   d.autoPause.Load() && d.pauser != nil,
	}
}

func (d *Detector) mitigate(f Fault) {
	d.log.Warn("Filament fault detected",
		zap.String("status", string(f.Status)),
		zap.Int64("since_pulse_ms", f.SincePulseMs),
		zap.String("position", f.Position),
		zap.Uint32("pulses", f.Pulses),
	)
	if f.AutoPaused {
		if err := d.pauser.PausePrint(); err != nil {
			d.log.Error("Automatic pause failed", zap.String("status", string(f.Status)), zap.Error(err))
		} else {
			d.log.Info("Print paused automatically", zap.String("status", string(f.Status)))
		}
	}
	if d.onFault != nil {
		d.onFault(f)
	}
}

// Reset clears the error, zeroes the pulse counter, restarts the pulse timer
// and forgets the last position. Called when a print starts or resumes.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = StatusOK
	d.lastPosition = ""
	d.pulses.Store(0)
	d.lastPulse.Store(d.clock.NowMs())
	d.log.Info("Filament sensor reset")
}
