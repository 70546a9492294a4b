package model

import "time"

// FilamentFault records one entry into RUNOUT or JAM.
type FilamentFault struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Status       string    `gorm:"size:16;not null;index" json:"status"`
	ObservedAt   time.Time `gorm:"not null;index" json:"observedAt"`
	Filename     string    `gorm:"size:256" json:"filename"`
	Position     string    `gorm:"size:128" json:"position"`
	SincePulseMs int64     `json:"sincePulseMs"`
	Pulses       uint32    `json:"pulses"`
	AutoPaused   bool      `gorm:"not null" json:"autoPaused"`
}
