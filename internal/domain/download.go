package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadStatus type
type DownloadStatus string

const (
	// DownloadStatusCompleted const
	DownloadStatusCompleted DownloadStatus = "COMPLETED"
	// DownloadStatusFailed const
	DownloadStatusFailed DownloadStatus = "FAILED"
	// DownloadStatusCancelled const
	DownloadStatusCancelled DownloadStatus = "CANCELLED"
)

// DownloadRecord struct - ledger entry for one model download attempt
type DownloadRecord struct {
	ID           *uuid.UUID     `gorm:"type:uuid;primary_key;" json:"id"`
	ModelID      string         `gorm:"type:varchar(100);not null;index" json:"model_id"`
	Status       DownloadStatus `gorm:"type:varchar(10);not null;" json:"status"`
	BytesWritten int64          `json:"bytes_written"`
	TotalBytes   int64          `json:"total_bytes"`
	Error        string         `gorm:"type:TEXT" json:"error,omitempty"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName func
func (d *DownloadRecord) TableName() string {
	return "model_downloads"
}

// BeforeCreate hook - generates UUID before creating
func (d *DownloadRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID != nil {
		return nil
	}
	id, err := uuid.NewRandom() // v4
	if err != nil {
		return err
	}
	d.ID = &id
	return nil
}

// MigrateDatabase func - Auto-migrate the ledger schema
func MigrateDatabase(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	return db.AutoMigrate(&DownloadRecord{})
}
