package model

import "time"

// PrintJob is a finished print.
type PrintJob struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Filename    string    `gorm:"size:256;not null" json:"filename"`
	StartedAt   time.Time `gorm:"not null" json:"startedAt"`
	FinishedAt  time.Time `gorm:"not null;index" json:"finishedAt"`
	DurationSec int64     `gorm:"not null" json:"durationSec"`
	TotalLayers int       `json:"totalLayers"`
}
