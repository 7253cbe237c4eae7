package repo

import (
	"errors"
	"time"

	"udpfetch/backend/app/models"

	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(rec *models.TransferRecord) error {
	return r.db.Create(rec).Error
}

// Finish stores the final counters and outcome of a session.
func (r *TransferRepository) Finish(sessionID, status, errText string, bytesSent int64, chunks int, at time.Time) error {
	res := r.db.Model(&models.TransferRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":      status,
			"error":       errText,
			"bytes_sent":  bytesSent,
			"chunks":      chunks,
			"finished_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateGrant records the data port handed to the client.
func (r *TransferRepository) UpdateGrant(sessionID string, port int, size int64) error {
	return r.db.Model(&models.TransferRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"data_port": port, "file_size": size, "status": models.StatusServing}).Error
}

func (r *TransferRepository) Get(sessionID string) (*models.TransferRecord, error) {
	var rec models.TransferRecord
	err := r.db.Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns the newest records first.
func (r *TransferRepository) Recent(limit int) ([]models.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.TransferRecord
	if err := r.db.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TransferRepository) ListByFile(fileName string) ([]models.TransferRecord, error) {
	var out []models.TransferRecord
	if err := r.db.Where("file_name = ?", fileName).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
