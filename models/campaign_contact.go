package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// CampaignContactStatus enumerates the per-recipient delivery state
type CampaignContactStatus string

const (
	CampaignContactStatusPending   CampaignContactStatus = "pending"
	CampaignContactStatusSending   CampaignContactStatus = "sending"
	CampaignContactStatusSent      CampaignContactStatus = "sent"
	CampaignContactStatusDelivered CampaignContactStatus = "delivered"
	CampaignContactStatusFailed    CampaignContactStatus = "failed"
)

// Valid checks if the status is valid
func (s CampaignContactStatus) Valid() bool {
	switch s {
	case CampaignContactStatusPending, CampaignContactStatusSending,
		CampaignContactStatusSent, CampaignContactStatusDelivered,
		CampaignContactStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignContactStatus
func (s *CampaignContactStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignContactStatus(v)
	case []byte:
		*s = CampaignContactStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignContactStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignContactStatus
func (s CampaignContactStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignContactStatus: %s", s)
	}
	return string(s), nil
}

// CanTransitionTo checks the per-recipient state machine:
// pending -> sending -> {sent | failed}, sent -> delivered.
// A failed row may be re-offered as pending by an explicit retry pass, and a
// sending row may be re-offered when an interrupted run left it mid-send.
func (s CampaignContactStatus) CanTransitionTo(next CampaignContactStatus) bool {
	switch s {
	case CampaignContactStatusPending:
		return next == CampaignContactStatusSending
	case CampaignContactStatusSending:
		return next == CampaignContactStatusSent ||
			next == CampaignContactStatusFailed ||
			next == CampaignContactStatusPending
	case CampaignContactStatusSent:
		return next == CampaignContactStatusDelivered
	case CampaignContactStatusFailed:
		return next == CampaignContactStatusPending
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the send attempt
func (s CampaignContactStatus) IsTerminal() bool {
	return s == CampaignContactStatusSent ||
		s == CampaignContactStatusDelivered ||
		s == CampaignContactStatusFailed
}

// CampaignContact tracks one contact's delivery status within one campaign
type CampaignContact struct {
	ID          uint                  `gorm:"primaryKey" json:"id"`
	CampaignID  uint                  `gorm:"not null;index:idx_campaign_contacts_campaign_id" json:"campaign_id"`
	ContactID   uint                  `gorm:"not null;index:idx_campaign_contacts_contact_id" json:"contact_id"`
	TrackingID  uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uk_campaign_contacts_tracking_id" json:"tracking_id"`
	Status      CampaignContactStatus `gorm:"type:campaign_contact_status;not null;default:'pending';index:idx_campaign_contacts_status" json:"status"`
	Error       *string               `gorm:"size:500" json:"error,omitempty"`
	SentAt      *time.Time            `json:"sent_at,omitempty"`
	DeliveredAt *time.Time            `json:"delivered_at,omitempty"`
	CreatedAt   time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Contact  *Contact  `gorm:"foreignKey:ContactID;references:ID" json:"contact,omitempty"`
}

// TableName returns the table name for the model
func (CampaignContact) TableName() string { return "campaign_contacts" }

// BeforeCreate is called before creating a new record
func (cc *CampaignContact) BeforeCreate(tx *gorm.DB) error {
	if cc.TrackingID == uuid.Nil {
		cc.TrackingID = uuid.New()
	}
	if cc.Status == "" {
		cc.Status = CampaignContactStatusPending
	}
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (cc *CampaignContact) BeforeUpdate(tx *gorm.DB) error {
	cc.UpdatedAt = utils.UTCNow()
	return nil
}

// CampaignContactFilter provides filter fields for repository queries
type CampaignContactFilter struct {
	ID            *uint
	CampaignID    *uint
	ContactID     *uint
	TrackingID    *uuid.UUID
	Status        *CampaignContactStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
