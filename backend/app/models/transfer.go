package models

import "time"

// Session outcomes stored in TransferRecord.Status.
const (
	StatusServing   = "serving"
	StatusClosed    = "closed"
	StatusNotFound  = "not_found"
	StatusBusy      = "busy"
	StatusAbandoned = "abandoned"
	StatusFailed    = "failed"
)

// TransferRecord is one server-side download session.
type TransferRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:36;uniqueIndex"`
	FileName   string `gorm:"size:255;index"`
	ClientAddr string `gorm:"size:64"`
	DataPort   int
	FileSize   int64
	BytesSent  int64
	Chunks     int
	Status     string `gorm:"size:16;index"`
	Error      string `gorm:"size:512"`
	StartedAt  time.Time
	FinishedAt *time.Time
}
