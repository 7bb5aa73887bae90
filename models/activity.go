package models

import "time"

// RequestActivity is one consumed unit of the referral-request quota.
// Rows are append-only and read back only as counts within a window.
type RequestActivity struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	SeekerID    string    `gorm:"index;not null" json:"seeker_id"`
	RequestedAt time.Time `gorm:"index" json:"requested_at"`
}

// DownloadActivity is one consumed unit of a resume-download quota.
// Source records which quota category the download was charged against.
type DownloadActivity struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	DownloaderID string    `gorm:"index;not null" json:"downloader_id"`
	CandidateID  string    `gorm:"index" json:"candidate_id"`
	FileName     string    `json:"file_name"`
	Source       string    `gorm:"type:varchar(32);index" json:"source"`
	DownloadedAt time.Time `gorm:"index" json:"downloaded_at"`
}
