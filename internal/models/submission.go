package models

import "time"

// Submission journals one finished intake submission attempt.
type Submission struct {
	ID            string `gorm:"primaryKey;size:36"`
	SessionID     string `gorm:"size:36;index"`
	Outcome       string `gorm:"size:32;not null;index"`
	ClientID      string `gorm:"size:64;index"`
	ClientCreated bool   `gorm:"default:false"`
	DeviceID      string `gorm:"size:64"`
	DeviceCreated bool   `gorm:"default:false"`
	TechnicianID  string `gorm:"size:64;index"`
	JobCardID     string `gorm:"size:64"`
	EmailSent     bool   `gorm:"default:false"`
	Compensated   bool   `gorm:"default:false"`
	ClientPhone   string `gorm:"size:32;index"`
	DeviceSerial  string `gorm:"size:64;index"`
	Error         string `gorm:"type:text"`
	StartedAt     time.Time
	FinishedAt    time.Time
	CreatedAt     time.Time
}
