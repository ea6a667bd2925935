package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// Customer owns contacts and campaigns. Authentication and account management
// are handled by an external identity layer; only the fields the campaign
// engine needs are modeled here.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:uk_customers_email" json:"email"`
	Name      string    `gorm:"size:200" json:"name"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:CustomerID" json:"campaigns,omitempty"`
	Contacts  []Contact  `gorm:"foreignKey:CustomerID" json:"contacts,omitempty"`
}

// TableName returns the table name for the model
func (Customer) TableName() string { return "customers" }

// BeforeCreate is called before creating a new record
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CustomerFilter represents filter criteria for customers
type CustomerFilter struct {
	ID    *uint
	UUID  *uuid.UUID
	Email *string
}
