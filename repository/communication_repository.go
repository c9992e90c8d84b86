package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// CommunicationRepositoryImpl implements CommunicationRepository
type CommunicationRepositoryImpl struct {
	*BaseRepository[models.Communication, models.CommunicationFilter]
}

func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &CommunicationRepositoryImpl{BaseRepository: NewBaseRepository[models.Communication, models.CommunicationFilter](db)}
}

func (r *CommunicationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Communication, error) {
	db := r.getDB(ctx)

	var row models.Communication
	if err := db.Where("uuid = ?", uuid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find communication by uuid: %w", err)
	}
	return &row, nil
}

func (r *CommunicationRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from []models.CommunicationStatus, to models.CommunicationStatus, errorMessage *string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("no source status given for communication %d", id)
	}
	db := r.getDB(ctx)

	res := db.Model(&models.Communication{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":        to,
			"error_message": errorMessage,
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update communication status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CommunicationRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Communication, error) {
	db := r.getDB(ctx)

	var rows []*models.Communication
	err := db.Where("status = ? AND scheduled_send_at <= ?", models.CommunicationStatusScheduled, now).
		Order("scheduled_send_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due communications: %w", err)
	}
	return rows, nil
}

func (r *CommunicationRepositoryImpl) ListStale(ctx context.Context, statuses []models.CommunicationStatus, updatedBefore time.Time, limit int) ([]*models.Communication, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var rows []*models.Communication
	err := db.Where("status IN ? AND updated_at < ?", statuses, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale communications: %w", err)
	}
	return rows, nil
}

func (r *CommunicationRepositoryImpl) applyFilter(db *gorm.DB, f models.CommunicationFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OrganizationID != nil {
		db = db.Where("organization_id = ?", *f.OrganizationID)
	}
	if f.SenderID != nil {
		db = db.Where("sender_id = ?", *f.SenderID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.MessageType != nil {
		db = db.Where("message_type = ?", *f.MessageType)
	}
	if f.Priority != nil {
		db = db.Where("priority = ?", *f.Priority)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CommunicationRepositoryImpl) ByFilter(ctx context.Context, filter models.CommunicationFilter, orderBy string, limit, offset int) ([]*models.Communication, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Communication{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Communication
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CommunicationRepositoryImpl) Count(ctx context.Context, filter models.CommunicationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Communication{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CommunicationRepositoryImpl) Exists(ctx context.Context, filter models.CommunicationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
