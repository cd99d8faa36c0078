package models

import "time"

// OrphanedClient is a client record created by a submission that failed
// afterwards and was not deleted again.
type OrphanedClient struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ClientID     string `gorm:"size:64;not null;index"`
	SubmissionID string `gorm:"size:36;index"`
	ClientName   string `gorm:"size:256"`
	ClientPhone  string `gorm:"size:32"`
	ClientEmail  string `gorm:"size:256"`
	Outcome      string `gorm:"size:32"`
	Resolved     bool   `gorm:"default:false;index"`
	ResolvedAt   *time.Time
	Note         string `gorm:"type:text"`
	CreatedAt    time.Time
}
