// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/velozap/disparador/app/dto"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	"github.com/velozap/disparador/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for logging and tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// CampaignRunner is the send orchestrator surface the flows drive. The
// implementation lives in the scheduler package.
type CampaignRunner interface {
	StartCampaign(ctx context.Context, campaignID uint) error
	PauseCampaign(ctx context.Context, campaignID uint) error
}

func getCustomer(ctx context.Context, repo repository.CustomerRepository, customerID uint) (models.Customer, error) {
	customer, err := repo.ByID(ctx, customerID)
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to find customer: %w", err)
	}
	if customer == nil {
		return models.Customer{}, ErrCustomerNotFound
	}
	if !utils.IsTrue(customer.IsActive) {
		return models.Customer{}, ErrAccountInactive
	}
	return *customer, nil
}

// getCampaign resolves a campaign by UUID and enforces ownership
func getCampaign(ctx context.Context, repo repository.CampaignRepository, campaignUUID string, customerID uint) (*models.Campaign, error) {
	parsed, err := uuid.Parse(campaignUUID)
	if err != nil {
		return nil, ErrCampaignNotFound
	}
	campaign, err := repo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.CustomerID != customerID {
		return nil, ErrCampaignAccessDenied
	}
	return campaign, nil
}

// ToAntiBanConfigDTO converts the persisted pacing config for responses
func ToAntiBanConfigDTO(cfg models.AntiBanConfig) dto.AntiBanConfigDTO {
	return dto.AntiBanConfigDTO{
		ProtectionLevel:       utils.ToPtr(string(cfg.ProtectionLevel)),
		MinDelaySeconds:       utils.ToPtr(cfg.MinDelaySeconds),
		MaxDelaySeconds:       utils.ToPtr(cfg.MaxDelaySeconds),
		DailyLimit:            utils.ToPtr(cfg.DailyLimit),
		BatchSize:             utils.ToPtr(cfg.BatchSize),
		BatchPauseMinutes:     utils.ToPtr(cfg.BatchPauseMinutes),
		EnableRandomVariation: utils.ToPtr(cfg.EnableRandomVariation),
		EnableAIVariation:     utils.ToPtr(cfg.EnableAIVariation),
	}
}

// ToCampaignStatsDTO converts the persisted aggregate counters for responses
func ToCampaignStatsDTO(stats models.CampaignStats) dto.CampaignStatsDTO {
	return dto.CampaignStatsDTO{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Sent:      stats.Sent,
		Delivered: stats.Delivered,
		Failed:    stats.Failed,
	}
}

// ToCampaignItemDTO converts a campaign model for list responses
func ToCampaignItemDTO(campaign *models.Campaign) dto.CampaignItemDTO {
	return dto.CampaignItemDTO{
		UUID:          campaign.UUID.String(),
		Name:          campaign.Name,
		Status:        string(campaign.Status),
		StatusDisplay: campaign.GetStatusDisplayName(),
		Stats:         ToCampaignStatsDTO(campaign.Stats),
		ScheduledAt:   campaign.ScheduledAt,
		CompletedAt:   campaign.CompletedAt,
		CreatedAt:     campaign.CreatedAt,
	}
}
