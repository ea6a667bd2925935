// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/velozap/disparador/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ListByIDs(ctx context.Context, ids []uint) ([]*models.Contact, error)
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Contact, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, campaignID uint, status models.CampaignStatus, completedAt *time.Time) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	Delete(ctx context.Context, campaignID uint) error
}

// CampaignContactRepository defines operations for per-recipient delivery rows
type CampaignContactRepository interface {
	Repository[models.CampaignContact, models.CampaignContactFilter]
	ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.CampaignContact, error)
	ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error)
	Update(ctx context.Context, row *models.CampaignContact) error
	CountByStatus(ctx context.Context, campaignID uint) (map[models.CampaignContactStatus]int, error)
	ResetFailed(ctx context.Context, campaignID uint) (int64, error)
	ResetSending(ctx context.Context, campaignID uint) (int64, error)
}

// SendCounter is the process-wide, date-bucketed counter of confirmed sends
// consulted before every send. Enforcement is best-effort: a small overshoot
// under concurrent campaigns is tolerated in a single-process deployment.
type SendCounter interface {
	CountToday(ctx context.Context) (int, error)
	Increment(ctx context.Context) (int, error)
}
