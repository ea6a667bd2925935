// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/velozap/disparador/app/dto"
	"github.com/velozap/disparador/app/scheduler"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.GetCampaignResponse, error)
	StartCampaign(ctx context.Context, req *dto.StartCampaignRequest, metadata *ClientMetadata) (*dto.StartCampaignResponse, error)
	PauseCampaign(ctx context.Context, req *dto.PauseCampaignRequest, metadata *ClientMetadata) (*dto.PauseCampaignResponse, error)
	DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error)
	RetryFailed(ctx context.Context, req *dto.RetryFailedRequest, metadata *ClientMetadata) (*dto.RetryFailedResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo        repository.CampaignRepository
	campaignContactRepo repository.CampaignContactRepository
	contactRepo         repository.ContactRepository
	customerRepo        repository.CustomerRepository
	runner              CampaignRunner
	db                  *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	campaignContactRepo repository.CampaignContactRepository,
	contactRepo repository.ContactRepository,
	customerRepo repository.CustomerRepository,
	runner CampaignRunner,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:        campaignRepo,
		campaignContactRepo: campaignContactRepo,
		contactRepo:         contactRepo,
		customerRepo:        customerRepo,
		runner:              runner,
		db:                  db,
	}
}

// CreateCampaign handles the complete campaign creation process
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	// Validate business rules
	if err := s.validateCreateCampaignRequest(req); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	customer, err := getCustomer(ctx, s.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	antiBan, err := resolveAntiBanConfig(req.AntiBan)
	if err != nil {
		return nil, NewBusinessError("ANTIBAN_CONFIG_INVALID", "Anti-ban configuration is invalid", err)
	}

	contacts, err := s.resolveContacts(ctx, &customer, req.ContactIDs)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to resolve campaign contacts", err)
	}

	status := models.CampaignStatusDraft
	if req.ScheduledAt != nil {
		if !req.ScheduledAt.After(utils.UTCNow()) {
			return nil, NewBusinessError("INVALID_SCHEDULE_TIME", "Schedule time must be in the future", ErrScheduleTimeInPast)
		}
		status = models.CampaignStatusScheduled
	}

	// Use transaction for atomicity
	var campaign *models.Campaign

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		campaign = &models.Campaign{
			CustomerID:  customer.ID,
			Name:        req.Name,
			Message:     req.Message,
			MediaURL:    req.MediaURL,
			Status:      status,
			AntiBan:     antiBan,
			ScheduledAt: req.ScheduledAt,
			Stats: models.CampaignStats{
				Total:   len(contacts),
				Pending: len(contacts),
			},
		}
		if req.MediaType != nil {
			campaign.MediaType = utils.ToPtr(models.MediaType(*req.MediaType))
		}
		if err := s.campaignRepo.Save(txCtx, campaign); err != nil {
			return fmt.Errorf("failed to save campaign: %w", err)
		}

		rows := make([]*models.CampaignContact, 0, len(contacts))
		for _, contact := range contacts {
			rows = append(rows, &models.CampaignContact{
				CampaignID: campaign.ID,
				ContactID:  contact.ID,
				Status:     models.CampaignContactStatusPending,
			})
		}
		if err := s.campaignContactRepo.SaveBatch(txCtx, rows); err != nil {
			return fmt.Errorf("failed to save campaign contacts: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:    "Campaign created successfully",
		UUID:       campaign.UUID.String(),
		Status:     string(campaign.Status),
		Recipients: len(contacts),
		AntiBan:    ToAntiBanConfigDTO(campaign.AntiBan),
		CreatedAt:  campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *CampaignFlowImpl) validateCreateCampaignRequest(req *dto.CreateCampaignRequest) error {
	if req.Name == "" {
		return ErrCampaignNameRequired
	}
	if req.Message == "" {
		return ErrCampaignMessageRequired
	}
	if len(req.ContactIDs) == 0 {
		return ErrCampaignContactsRequired
	}
	if req.MediaURL != nil && req.MediaType == nil {
		return ErrMediaTypeRequired
	}
	return nil
}

// resolveContacts loads the recipient set and enforces ownership. Duplicate
// IDs in the request collapse to a single recipient.
func (s *CampaignFlowImpl) resolveContacts(ctx context.Context, customer *models.Customer, contactIDs []uint) ([]*models.Contact, error) {
	seen := make(map[uint]struct{}, len(contactIDs))
	unique := make([]uint, 0, len(contactIDs))
	for _, id := range contactIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	contacts, err := s.contactRepo.ListByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(contacts) != len(unique) {
		return nil, ErrContactsNotFound
	}
	for _, contact := range contacts {
		if contact.CustomerID != customer.ID {
			return nil, ErrContactsNotFound
		}
	}
	return contacts, nil
}

// resolveAntiBanConfig merges the request overrides onto the selected preset
func resolveAntiBanConfig(in *dto.AntiBanConfigDTO) (models.AntiBanConfig, error) {
	level := models.ProtectionLevelModerate
	if in != nil && in.ProtectionLevel != nil {
		level = models.ProtectionLevel(*in.ProtectionLevel)
		if !level.Valid() {
			return models.AntiBanConfig{}, ErrAntiBanConfigInvalid
		}
	}
	cfg := models.AntiBanPreset(level)
	if in == nil {
		return cfg, nil
	}

	if in.MinDelaySeconds != nil {
		cfg.MinDelaySeconds = *in.MinDelaySeconds
	}
	if in.MaxDelaySeconds != nil {
		cfg.MaxDelaySeconds = *in.MaxDelaySeconds
	}
	if in.DailyLimit != nil {
		cfg.DailyLimit = *in.DailyLimit
	}
	if in.BatchSize != nil {
		cfg.BatchSize = *in.BatchSize
	}
	if in.BatchPauseMinutes != nil {
		cfg.BatchPauseMinutes = *in.BatchPauseMinutes
	}
	if in.EnableRandomVariation != nil {
		cfg.EnableRandomVariation = *in.EnableRandomVariation
	}
	if in.EnableAIVariation != nil {
		cfg.EnableAIVariation = *in.EnableAIVariation
	}

	if err := cfg.Validate(); err != nil {
		return models.AntiBanConfig{}, err
	}
	return cfg, nil
}

// ListCampaigns returns the customer's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGINATION", "Page size is out of range", ErrInvalidPageSize)
	}

	customer, err := getCustomer(ctx, s.customerRepo, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	filter := models.CampaignFilter{CustomerID: &customer.ID}
	if req.Status != nil {
		filter.Status = utils.ToPtr(models.CampaignStatus(*req.Status))
	}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	offset := (req.Page - 1) * req.PageSize
	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC", req.PageSize, offset)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignItemDTO, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, ToCampaignItemDTO(campaign))
	}

	return &dto.ListCampaignsResponse{
		Items: items,
		Pagination: dto.PaginationDTO{
			Page:       req.Page,
			PageSize:   req.PageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(req.PageSize))),
		},
	}, nil
}

// GetCampaign returns the full campaign detail including per-recipient rows
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.GetCampaignResponse, error) {
	if _, err := getCustomer(ctx, s.customerRepo, req.CustomerID); err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	rows, err := s.campaignContactRepo.ByFilter(ctx, models.CampaignContactFilter{CampaignID: &campaign.ID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign recipients", err)
	}

	contactIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		contactIDs = append(contactIDs, row.ContactID)
	}
	contacts, err := s.contactRepo.ListByIDs(ctx, contactIDs)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load contacts", err)
	}
	contactByID := make(map[uint]*models.Contact, len(contacts))
	for _, c := range contacts {
		contactByID[c.ID] = c
	}

	recipients := make([]dto.CampaignRecipientDTO, 0, len(rows))
	pending := 0
	for _, row := range rows {
		item := dto.CampaignRecipientDTO{
			TrackingID:  row.TrackingID.String(),
			Status:      string(row.Status),
			Error:       row.Error,
			SentAt:      row.SentAt,
			DeliveredAt: row.DeliveredAt,
		}
		if contact := contactByID[row.ContactID]; contact != nil {
			item.PhoneNumber = contact.PhoneNumber
			item.DisplayName = contact.DisplayName
		}
		if row.Status == models.CampaignContactStatusPending || row.Status == models.CampaignContactStatusSending {
			pending++
		}
		recipients = append(recipients, item)
	}

	resp := &dto.GetCampaignResponse{
		UUID:                      campaign.UUID.String(),
		Name:                      campaign.Name,
		Message:                   campaign.Message,
		MediaURL:                  campaign.MediaURL,
		Status:                    string(campaign.Status),
		StatusDisplay:             campaign.GetStatusDisplayName(),
		AntiBan:                   ToAntiBanConfigDTO(campaign.AntiBan),
		Stats:                     ToCampaignStatsDTO(campaign.Stats),
		EstimatedSecondsRemaining: scheduler.EstimateRemainingSeconds(campaign.AntiBan, len(rows)-pending, pending),
		Recipients:                recipients,
		ScheduledAt:               campaign.ScheduledAt,
		CompletedAt:               campaign.CompletedAt,
		CreatedAt:                 campaign.CreatedAt,
	}
	if campaign.MediaType != nil {
		resp.MediaType = utils.ToPtr(string(*campaign.MediaType))
	}
	if campaign.UpdatedAt != nil {
		resp.UpdatedAt = *campaign.UpdatedAt
	}
	return resp, nil
}

// StartCampaign transitions the campaign to running and hands it to the
// orchestrator
func (s *CampaignFlowImpl) StartCampaign(ctx context.Context, req *dto.StartCampaignRequest, metadata *ClientMetadata) (*dto.StartCampaignResponse, error) {
	if _, err := getCustomer(ctx, s.customerRepo, req.CustomerID); err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	if !campaign.Status.CanTransitionTo(models.CampaignStatusRunning) {
		return nil, NewBusinessErrorf("CAMPAIGN_START_NOT_ALLOWED", "Campaign in status %s cannot be started", ErrInvalidStatusTransition, campaign.Status)
	}

	if err := s.runner.StartCampaign(ctx, campaign.ID); err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Failed to start campaign", err)
	}

	return &dto.StartCampaignResponse{
		Message: "Campaign started",
		Status:  string(models.CampaignStatusRunning),
	}, nil
}

// PauseCampaign requests a pause; the orchestrator stops at the next recipient
// boundary
func (s *CampaignFlowImpl) PauseCampaign(ctx context.Context, req *dto.PauseCampaignRequest, metadata *ClientMetadata) (*dto.PauseCampaignResponse, error) {
	if _, err := getCustomer(ctx, s.customerRepo, req.CustomerID); err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	if !campaign.Status.CanTransitionTo(models.CampaignStatusPaused) {
		return nil, NewBusinessErrorf("CAMPAIGN_PAUSE_NOT_ALLOWED", "Campaign in status %s cannot be paused", ErrInvalidStatusTransition, campaign.Status)
	}

	if err := s.runner.PauseCampaign(ctx, campaign.ID); err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Failed to pause campaign", err)
	}

	return &dto.PauseCampaignResponse{
		Message: "Campaign pause requested",
		Status:  string(models.CampaignStatusPaused),
	}, nil
}

// DeleteCampaign removes a non-running campaign and its recipient rows
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, req *dto.DeleteCampaignRequest, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error) {
	if _, err := getCustomer(ctx, s.customerRepo, req.CustomerID); err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	if !campaign.IsDeletable() {
		return nil, NewBusinessError("CAMPAIGN_DELETE_NOT_ALLOWED", "Running campaigns cannot be deleted", ErrCampaignNotDeletable)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DELETE_FAILED", "Campaign deletion failed", err)
	}

	return &dto.DeleteCampaignResponse{
		Message: "Campaign deleted successfully",
	}, nil
}

// RetryFailed re-queues the campaign's failed recipients as pending and moves
// the campaign to paused so it can be started again. This is the explicit
// repair pass; the running loop itself never retries a failed send.
func (s *CampaignFlowImpl) RetryFailed(ctx context.Context, req *dto.RetryFailedRequest, metadata *ClientMetadata) (*dto.RetryFailedResponse, error) {
	if _, err := getCustomer(ctx, s.customerRepo, req.CustomerID); err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	if campaign.Status == models.CampaignStatusRunning {
		return nil, NewBusinessError("CAMPAIGN_RETRY_NOT_ALLOWED", "Running campaigns cannot retry failed sends", ErrCampaignNotRetryable)
	}

	var requeued int64
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		requeued, err = s.campaignContactRepo.ResetFailed(txCtx, campaign.ID)
		if err != nil {
			return err
		}
		if requeued == 0 {
			return nil
		}

		counts, err := s.campaignContactRepo.CountByStatus(txCtx, campaign.ID)
		if err != nil {
			return err
		}
		campaign.Stats = statsFromCounts(counts)
		campaign.Status = models.CampaignStatusPaused
		campaign.CompletedAt = nil
		return s.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RETRY_FAILED", "Failed to re-queue failed recipients", err)
	}

	return &dto.RetryFailedResponse{
		Message:  "Failed recipients re-queued",
		Requeued: int(requeued),
		Status:   string(campaign.Status),
	}, nil
}

// statsFromCounts folds per-status row counts into the aggregate counters.
// Rows in the transient sending state count as pending.
func statsFromCounts(counts map[models.CampaignContactStatus]int) models.CampaignStats {
	stats := models.CampaignStats{
		Pending:   counts[models.CampaignContactStatusPending] + counts[models.CampaignContactStatusSending],
		Sent:      counts[models.CampaignContactStatusSent],
		Delivered: counts[models.CampaignContactStatusDelivered],
		Failed:    counts[models.CampaignContactStatusFailed],
	}
	stats.Total = stats.Pending + stats.Sent + stats.Delivered + stats.Failed
	return stats
}
