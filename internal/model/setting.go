package model

import "time"

// Setting is one persisted value, addressed by namespace and key.
type Setting struct {
	Namespace string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
