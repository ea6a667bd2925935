package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// MediaType enumerates supported campaign media attachments
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// Valid checks if the media type is valid
func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio:
		return true
	default:
		return false
	}
}

// CampaignStats holds the aggregate delivery counters of a campaign.
// Invariant: Total == Pending + Sent + Delivered + Failed. Rows currently in
// the transient "sending" state are counted under Pending.
type CampaignStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Consistent reports whether the counters satisfy the stats invariant
func (st CampaignStats) Consistent() bool {
	return st.Total == st.Pending+st.Sent+st.Delivered+st.Failed
}

// Value implements the driver.Valuer interface for CampaignStats
func (st CampaignStats) Value() (driver.Value, error) {
	return json.Marshal(st)
}

// Scan implements the sql.Scanner interface for CampaignStats
func (st *CampaignStats) Scan(value any) error {
	if value == nil {
		*st = CampaignStats{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignStats", value)
	}

	return json.Unmarshal(bytes, st)
}

// Campaign represents a bulk-send job with a fixed recipient set
type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	CustomerID  uint           `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	MediaURL    *string        `gorm:"type:text" json:"media_url,omitempty"`
	MediaType   *MediaType     `gorm:"size:10" json:"media_type,omitempty"`
	Status      CampaignStatus `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	AntiBan     AntiBanConfig  `gorm:"type:jsonb;not null" json:"anti_ban"`
	Stats       CampaignStats  `gorm:"type:jsonb;not null" json:"stats"`
	ScheduledAt *time.Time     `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Customer *Customer         `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	Contacts []CampaignContact `gorm:"foreignKey:CampaignID" json:"contacts,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks if the campaign can transition to the given status
func (s CampaignStatus) CanTransitionTo(newStatus CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusRunning || newStatus == CampaignStatusScheduled
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusRunning || newStatus == CampaignStatusDraft
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused || newStatus == CampaignStatusCompleted
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning
	default:
		// completed is terminal
		return false
	}
}

// IsDeletable checks if the campaign can be deleted
func (c *Campaign) IsDeletable() bool {
	return c.Status != CampaignStatusRunning
}

// GetStatusDisplayName returns a human-readable status name
func (c *Campaign) GetStatusDisplayName() string {
	switch c.Status {
	case CampaignStatusDraft:
		return "Draft"
	case CampaignStatusScheduled:
		return "Scheduled"
	case CampaignStatusRunning:
		return "Running"
	case CampaignStatusPaused:
		return "Paused"
	case CampaignStatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	CustomerID      *uint           `json:"customer_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	Name            *string         `json:"name,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}
