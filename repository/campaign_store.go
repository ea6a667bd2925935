package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// GormCampaignStore is the durable progress store the send orchestrator runs
// against. Every mutation is committed before the orchestrator moves on, so a
// crashed or paused run can resume from the persisted rows alone.
type GormCampaignStore struct {
	campaignRepo CampaignRepository
	contactRepo  CampaignContactRepository
	db           *gorm.DB
}

func NewGormCampaignStore(campaignRepo CampaignRepository, contactRepo CampaignContactRepository, db *gorm.DB) *GormCampaignStore {
	return &GormCampaignStore{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		db:           db,
	}
}

func (s *GormCampaignStore) LoadCampaign(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	return s.campaignRepo.ByID(ctx, campaignID)
}

// LoadPendingContacts returns pending recipients in insertion order, with the
// contact read model preloaded for message building.
func (s *GormCampaignStore) LoadPendingContacts(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error) {
	rows, err := s.contactRepo.ListPending(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ContactID)
	}
	var contacts []*models.Contact
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to load contacts for campaign %d: %w", campaignID, err)
	}
	byID := make(map[uint]*models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	for _, row := range rows {
		row.Contact = byID[row.ContactID]
	}
	return rows, nil
}

// ClaimContact persists the pending -> sending transition before the network
// call, so a crash mid-send leaves an accurate marker instead of a false
// pending row.
func (s *GormCampaignStore) ClaimContact(ctx context.Context, row *models.CampaignContact) error {
	if !row.Status.CanTransitionTo(models.CampaignContactStatusSending) {
		return fmt.Errorf("contact %d cannot move from %s to sending", row.ID, row.Status)
	}
	row.Status = models.CampaignContactStatusSending
	return s.contactRepo.Update(ctx, row)
}

// RequeueInterrupted re-offers recipients a previous run left mid-send. A
// crash between the claim and the outcome would otherwise strand the row in
// sending forever: it is never offered to a run again, yet it keeps counting
// as pending.
func (s *GormCampaignStore) RequeueInterrupted(ctx context.Context, campaignID uint) (int64, error) {
	return s.contactRepo.ResetSending(ctx, campaignID)
}

// FinishContact persists the terminal outcome of one send attempt
func (s *GormCampaignStore) FinishContact(ctx context.Context, row *models.CampaignContact, status models.CampaignContactStatus, errText string) error {
	if !row.Status.CanTransitionTo(status) {
		return fmt.Errorf("contact %d cannot move from %s to %s", row.ID, row.Status, status)
	}
	row.Status = status
	switch status {
	case models.CampaignContactStatusSent:
		row.SentAt = utils.UTCNowPtr()
		row.Error = nil
	case models.CampaignContactStatusFailed:
		if len(errText) > utils.MaxContactErrorLength {
			errText = errText[:utils.MaxContactErrorLength]
		}
		row.Error = &errText
	}
	return s.contactRepo.Update(ctx, row)
}

func (s *GormCampaignStore) UpdateCampaignStatus(ctx context.Context, campaignID uint, status models.CampaignStatus, completedAt *time.Time) error {
	return s.campaignRepo.UpdateStatus(ctx, campaignID, status, completedAt)
}

// ReconcileStats recomputes the campaign's aggregate counters from the
// authoritative recipient rows and persists them, instead of trusting the
// incrementally tracked counters (delivery callbacks mutate rows concurrently
// with the send loop). Rows still in the transient sending state count as
// pending. Returns the reconciled stats.
func (s *GormCampaignStore) ReconcileStats(ctx context.Context, campaignID uint) (models.CampaignStats, error) {
	var stats models.CampaignStats

	err := WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		counts, err := s.contactRepo.CountByStatus(txCtx, campaignID)
		if err != nil {
			return err
		}

		stats = models.CampaignStats{
			Pending:   counts[models.CampaignContactStatusPending] + counts[models.CampaignContactStatusSending],
			Sent:      counts[models.CampaignContactStatusSent],
			Delivered: counts[models.CampaignContactStatusDelivered],
			Failed:    counts[models.CampaignContactStatusFailed],
		}
		stats.Total = stats.Pending + stats.Sent + stats.Delivered + stats.Failed

		campaign, err := s.campaignRepo.ByID(txCtx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d not found", campaignID)
		}
		campaign.Stats = stats
		return s.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		return models.CampaignStats{}, fmt.Errorf("failed to reconcile stats for campaign %d: %w", campaignID, err)
	}
	return stats, nil
}
