package models

import (
	"time"

	"github.com/velozap/disparador/utils"
	"gorm.io/gorm"
)

// Contact is the minimal recipient read model the orchestrator needs.
// Contact management (groups, import, dedup) lives in the CRUD layer and is
// out of scope here.
type Contact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CustomerID  uint      `gorm:"not null;index:idx_contacts_customer_id" json:"customer_id"`
	PhoneNumber string    `gorm:"size:20;not null;index:idx_contacts_phone_number" json:"phone_number"`
	DisplayName string    `gorm:"size:200" json:"display_name"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Contact) TableName() string { return "contacts" }

// BeforeCreate is called before creating a new record
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID          *uint
	CustomerID  *uint
	PhoneNumber *string
}
