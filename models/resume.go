package models

import "time"

// Resume points at a seeker's uploaded resume in blob storage.
// One resume per seeker; re-uploading replaces the pointer.
type Resume struct {
	SeekerID    string    `gorm:"primaryKey;type:uuid" json:"seeker_id"`
	StorageKey  string    `gorm:"not null" json:"storage_key"` // R2 object key
	FileName    string    `gorm:"not null" json:"file_name"`   // original upload name, used for Content-Disposition
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
