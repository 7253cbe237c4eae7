package services

import (
	"context"
	"time"

	"udpfetch/backend/app/events"
	"udpfetch/backend/app/models"
	"udpfetch/backend/app/repo"
)

// TransferService records session lifecycles in the ledger and announces
// them to the event publisher. Either side may be absent.
type TransferService struct {
	repo *repo.TransferRepository
	pub  events.Publisher
}

func NewTransferService(r *repo.TransferRepository, pub events.Publisher) *TransferService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &TransferService{repo: r, pub: pub}
}

func (s *TransferService) Begin(ctx context.Context, rec *models.TransferRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	var err error
	if s.repo != nil {
		err = s.repo.Create(rec)
	}
	s.publish(ctx, events.SessionStarted, rec)
	return err
}

func (s *TransferService) Grant(ctx context.Context, rec *models.TransferRecord) error {
	rec.Status = models.StatusServing
	var err error
	if s.repo != nil {
		err = s.repo.UpdateGrant(rec.SessionID, rec.DataPort, rec.FileSize)
	}
	s.publish(ctx, events.SessionGranted, rec)
	return err
}

func (s *TransferService) Finish(ctx context.Context, rec *models.TransferRecord) error {
	now := time.Now()
	rec.FinishedAt = &now
	var err error
	if s.repo != nil {
		err = s.repo.Finish(rec.SessionID, rec.Status, rec.Error, rec.BytesSent, rec.Chunks, now)
	}
	s.publish(ctx, events.SessionClosed, rec)
	return err
}

// Recent lists the latest sessions, newest first.
func (s *TransferService) Recent(limit int) ([]models.TransferRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Recent(limit)
}

func (s *TransferService) publish(ctx context.Context, typ string, rec *models.TransferRecord) {
	// best effort, bounded to one second
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = s.pub.Publish(pctx, events.Event{
		Type:      typ,
		SessionID: rec.SessionID,
		FileName:  rec.FileName,
		Client:    rec.ClientAddr,
		Port:      rec.DataPort,
		Size:      rec.FileSize,
		BytesSent: rec.BytesSent,
		Status:    rec.Status,
		At:        time.Now(),
	})
}
