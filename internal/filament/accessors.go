package filament

// Snapshot is a point-in-time view of the sensor for API consumers.
type Snapshot struct {
	Status          Status `json:"status"`
	ErrorDetected   bool   `json:"error"`
	FilamentPresent bool   `json:"filamentPresent"`
	LastMotionPulse int64  `json:"lastMotionPulse"`
	SinceLastPulse  int64  `json:"sinceLastPulse"`
	PulseCount      uint32 `json:"pulseCount"`
	AutoPause       bool   `json:"autoPause"`
	MotionTimeoutMs uint32 `json:"motionTimeoutMs"`
}

// Status is the current classification.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// ErrorDetected reports RUNOUT or JAM.
func (d *Detector) ErrorDetected() bool { return d.Status() != StatusOK }

// LastMotionPulse is the clock time of the latest pulse, or of the last reset.
func (d *Detector) LastMotionPulse() int64 { return d.lastPulse.Load() }

// MotionPulseCount is the number of pulses since the last reset.
func (d *Detector) MotionPulseCount() uint32 { return d.pulses.Load() }

// AutoPauseEnabled reports whether a fault pauses the print.
func (d *Detector) AutoPauseEnabled() bool { return d.autoPause.Load() }

// MotionTimeout is the jam threshold in milliseconds.
func (d *Detector) MotionTimeout() uint32 { return d.motionTimeout.Load() }

// FilamentPresent reads the presence input.
func (d *Detector) FilamentPresent() bool { return d.presence.Get() }

// Snapshot reads every accessor at once. Fields may come from different
// instants since the pulse values change on the interrupt context.
func (d *Detector) Snapshot() Snapshot {
	status := d.Status()
	last := d.lastPulse.Load()
	return Snapshot{
		Status:          status,
		ErrorDetected:   status != StatusOK,
		FilamentPresent: d.presence.Get(),
		LastMotionPulse: last,
		SinceLastPulse:  d.clock.NowMs() - last,
		PulseCount:      d.pulses.Load(),
		AutoPause:       d.autoPause.Load(),
		MotionTimeoutMs: d.motionTimeout.Load(),
	}
}
