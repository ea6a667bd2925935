// Package businessflow contains the core business logic and use cases for delivery confirmation workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/velozap/disparador/app/dto"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// DeliveryFlow handles asynchronous delivery confirmations from the
// automation platform
type DeliveryFlow interface {
	HandleDeliveryReceipt(ctx context.Context, req *dto.DeliveryReceiptRequest, metadata *ClientMetadata) (*dto.DeliveryReceiptResponse, error)
}

// DeliveryFlowImpl implements the delivery confirmation flow
type DeliveryFlowImpl struct {
	campaignRepo        repository.CampaignRepository
	campaignContactRepo repository.CampaignContactRepository
	db                  *gorm.DB
}

// NewDeliveryFlow creates a new delivery flow instance
func NewDeliveryFlow(
	campaignRepo repository.CampaignRepository,
	campaignContactRepo repository.CampaignContactRepository,
	db *gorm.DB,
) DeliveryFlow {
	return &DeliveryFlowImpl{
		campaignRepo:        campaignRepo,
		campaignContactRepo: campaignContactRepo,
		db:                  db,
	}
}

// HandleDeliveryReceipt marks one sent recipient as delivered and reconciles
// the campaign counters. Receipts arrive concurrently with the send loop, so
// the row update and the stats rewrite happen in one transaction.
func (s *DeliveryFlowImpl) HandleDeliveryReceipt(ctx context.Context, req *dto.DeliveryReceiptRequest, metadata *ClientMetadata) (*dto.DeliveryReceiptResponse, error) {
	trackingID, err := uuid.Parse(req.TrackingID)
	if err != nil {
		return nil, NewBusinessError("INVALID_TRACKING_ID", "Tracking ID is not a valid UUID", ErrRecipientNotFound)
	}

	var row *models.CampaignContact
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		row, err = s.campaignContactRepo.ByTrackingID(txCtx, trackingID)
		if err != nil {
			return fmt.Errorf("failed to find recipient: %w", err)
		}
		if row == nil {
			return ErrRecipientNotFound
		}
		if row.Status == models.CampaignContactStatusDelivered {
			return ErrDeliveryAlreadyConfirmed
		}
		if !row.Status.CanTransitionTo(models.CampaignContactStatusDelivered) {
			return ErrRecipientNotDeliverable
		}

		row.Status = models.CampaignContactStatusDelivered
		row.DeliveredAt = utils.UTCNowPtr()
		if err := s.campaignContactRepo.Update(txCtx, row); err != nil {
			return fmt.Errorf("failed to update recipient: %w", err)
		}

		counts, err := s.campaignContactRepo.CountByStatus(txCtx, row.CampaignID)
		if err != nil {
			return err
		}
		campaign, err := s.campaignRepo.ByID(txCtx, row.CampaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}
		campaign.Stats = statsFromCounts(counts)
		return s.campaignRepo.Update(txCtx, campaign)
	})

	if err != nil {
		if IsDeliveryAlreadyConfirmed(err) {
			// Receipts may be redelivered; confirm idempotently
			return &dto.DeliveryReceiptResponse{
				Message: "Delivery already confirmed",
				Status:  string(models.CampaignContactStatusDelivered),
			}, nil
		}
		if IsRecipientNotFound(err) {
			return nil, NewBusinessError("RECIPIENT_NOT_FOUND", "No recipient matches the tracking ID", err)
		}
		return nil, NewBusinessError("DELIVERY_CONFIRMATION_FAILED", "Failed to confirm delivery", err)
	}

	return &dto.DeliveryReceiptResponse{
		Message: "Delivery confirmed",
		Status:  string(row.Status),
	}, nil
}
