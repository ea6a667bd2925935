package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/velozap/disparador/models"
	"gorm.io/gorm"
)

// CampaignContactRepositoryImpl implements CampaignContactRepository
type CampaignContactRepositoryImpl struct {
	*BaseRepository[models.CampaignContact, models.CampaignContactFilter]
}

func NewCampaignContactRepository(db *gorm.DB) CampaignContactRepository {
	return &CampaignContactRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignContact, models.CampaignContactFilter](db)}
}

func (r *CampaignContactRepositoryImpl) ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.CampaignContact, error) {
	db := r.getDB(ctx)
	var row models.CampaignContact
	if err := db.Where("tracking_id = ?", trackingID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign contact by tracking ID %s: %w", trackingID, err)
	}
	return &row, nil
}

// ListPending returns the campaign's pending recipients in insertion order.
// Rows already sent, delivered or failed by a prior partial run are excluded,
// which is what makes pause/resume safe.
func (r *CampaignContactRepositoryImpl) ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error) {
	status := models.CampaignContactStatusPending
	filter := models.CampaignContactFilter{CampaignID: &campaignID, Status: &status}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *CampaignContactRepositoryImpl) Update(ctx context.Context, row *models.CampaignContact) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(row).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign contact %d: %w", row.ID, err)
	}
	return nil
}

// CountByStatus aggregates recipient counts per status for one campaign.
// This is the authoritative source for stats reconciliation.
func (r *CampaignContactRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.CampaignContactStatus]int, error) {
	db := r.getDB(ctx)

	var rows []struct {
		Status models.CampaignContactStatus
		Count  int
	}
	err := db.Model(&models.CampaignContact{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count campaign %d contacts by status: %w", campaignID, err)
	}

	counts := make(map[models.CampaignContactStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ResetFailed re-offers all failed recipients of a campaign as pending,
// clearing the captured error text. Returns the number of affected rows.
func (r *CampaignContactRepositoryImpl) ResetFailed(ctx context.Context, campaignID uint) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.CampaignContact{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.CampaignContactStatusFailed).
		Updates(map[string]any{"status": models.CampaignContactStatusPending, "error": nil})
	if res.Error != nil {
		err = res.Error
		return 0, fmt.Errorf("failed to reset failed contacts for campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}

// ResetSending re-offers rows an interrupted run left in the transient
// sending state, so the next run claims them again instead of stranding
// them. Returns the number of affected rows.
func (r *CampaignContactRepositoryImpl) ResetSending(ctx context.Context, campaignID uint) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.CampaignContact{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.CampaignContactStatusSending).
		Update("status", models.CampaignContactStatusPending)
	if res.Error != nil {
		err = res.Error
		return 0, fmt.Errorf("failed to reset sending contacts for campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *CampaignContactRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.ContactID != nil {
		db = db.Where("contact_id = ?", *f.ContactID)
	}
	if f.TrackingID != nil {
		db = db.Where("tracking_id = ?", *f.TrackingID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignContactRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignContactFilter, orderBy string, limit, offset int) ([]*models.CampaignContact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignContact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignContact
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignContactRepositoryImpl) Count(ctx context.Context, filter models.CampaignContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignContact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignContactRepositoryImpl) Exists(ctx context.Context, filter models.CampaignContactFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
