package dto

import (
	"time"
)

// AntiBanConfigDTO carries the pacing settings on campaign requests and
// responses. All fields are optional on input; missing ones fall back to the
// selected protection level preset.
type AntiBanConfigDTO struct {
	ProtectionLevel       *string `json:"protection_level,omitempty" validate:"omitempty,oneof=safe moderate aggressive custom"`
	MinDelaySeconds       *int    `json:"min_delay_seconds,omitempty" validate:"omitempty,min=1"`
	MaxDelaySeconds       *int    `json:"max_delay_seconds,omitempty" validate:"omitempty,min=1"`
	DailyLimit            *int    `json:"daily_limit,omitempty" validate:"omitempty,min=1"`
	BatchSize             *int    `json:"batch_size,omitempty" validate:"omitempty,min=1"`
	BatchPauseMinutes     *int    `json:"batch_pause_minutes,omitempty" validate:"omitempty,min=1"`
	EnableRandomVariation *bool   `json:"enable_random_variation,omitempty"`
	EnableAIVariation     *bool   `json:"enable_ai_variation,omitempty"`
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	CustomerID  uint              `json:"-"`
	Name        string            `json:"name" validate:"required,min=1,max=255"`
	Message     string            `json:"message" validate:"required,min=1,max=4096"`
	MediaURL    *string           `json:"media_url,omitempty" validate:"omitempty,url"`
	MediaType   *string           `json:"media_type,omitempty" validate:"omitempty,oneof=image video audio"`
	ContactIDs  []uint            `json:"contact_ids" validate:"required,min=1,dive,min=1"`
	AntiBan     *AntiBanConfigDTO `json:"anti_ban,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message    string           `json:"message"`
	UUID       string           `json:"uuid"`
	Status     string           `json:"status"`
	Recipients int              `json:"recipients"`
	AntiBan    AntiBanConfigDTO `json:"anti_ban"`
	CreatedAt  string           `json:"created_at"`
}

// ListCampaignsRequest represents the request to list campaigns
type ListCampaignsRequest struct {
	CustomerID uint    `json:"-"`
	Page       int     `json:"-" validate:"omitempty,min=1"`
	PageSize   int     `json:"-" validate:"omitempty,min=1,max=100"`
	Status     *string `json:"-" validate:"omitempty,oneof=draft scheduled running paused completed"`
}

// CampaignStatsDTO mirrors the persisted aggregate counters
type CampaignStatsDTO struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// CampaignItemDTO is one campaign in a list response
type CampaignItemDTO struct {
	UUID          string           `json:"uuid"`
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	StatusDisplay string           `json:"status_display"`
	Stats         CampaignStatsDTO `json:"stats"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ListCampaignsResponse represents the response to list campaigns
type ListCampaignsResponse struct {
	Items      []CampaignItemDTO `json:"items"`
	Pagination PaginationDTO     `json:"pagination"`
}

// PaginationDTO carries paging metadata in list responses
type PaginationDTO struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// GetCampaignRequest represents the request to get an existing campaign
type GetCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// CampaignRecipientDTO is one recipient row in the campaign detail response
type CampaignRecipientDTO struct {
	TrackingID  string     `json:"tracking_id"`
	PhoneNumber string     `json:"phone_number"`
	DisplayName string     `json:"display_name,omitempty"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// GetCampaignResponse represents the campaign detail in responses
type GetCampaignResponse struct {
	UUID                      string                 `json:"uuid"`
	Name                      string                 `json:"name"`
	Message                   string                 `json:"message"`
	MediaURL                  *string                `json:"media_url,omitempty"`
	MediaType                 *string                `json:"media_type,omitempty"`
	Status                    string                 `json:"status"`
	StatusDisplay             string                 `json:"status_display"`
	AntiBan                   AntiBanConfigDTO       `json:"anti_ban"`
	Stats                     CampaignStatsDTO       `json:"stats"`
	EstimatedSecondsRemaining int64                  `json:"estimated_seconds_remaining"`
	Recipients                []CampaignRecipientDTO `json:"recipients"`
	ScheduledAt               *time.Time             `json:"scheduled_at,omitempty"`
	CompletedAt               *time.Time             `json:"completed_at,omitempty"`
	CreatedAt                 time.Time              `json:"created_at"`
	UpdatedAt                 time.Time              `json:"updated_at"`
}

// StartCampaignRequest represents the request to start sending a campaign
type StartCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// StartCampaignResponse represents the response to start sending a campaign
type StartCampaignResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// PauseCampaignRequest represents the request to pause a running campaign
type PauseCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// PauseCampaignResponse represents the response to pause a running campaign
type PauseCampaignResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// DeleteCampaignRequest represents the request to delete a campaign
type DeleteCampaignRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// DeleteCampaignResponse represents the response to delete a campaign
type DeleteCampaignResponse struct {
	Message string `json:"message"`
}

// RetryFailedRequest represents the request to re-queue failed recipients
type RetryFailedRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// RetryFailedResponse represents the response to re-queue failed recipients
type RetryFailedResponse struct {
	Message  string `json:"message"`
	Requeued int    `json:"requeued"`
	Status   string `json:"status"`
}
