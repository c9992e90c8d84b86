package repository

import (
	"context"
	"fmt"

	"github.com/rallyhq/rally/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommunicationDeliveryRepositoryImpl implements CommunicationDeliveryRepository
type CommunicationDeliveryRepositoryImpl struct {
	*BaseRepository[models.CommunicationDelivery, models.CommunicationDeliveryFilter]
}

func NewCommunicationDeliveryRepository(db *gorm.DB) CommunicationDeliveryRepository {
	return &CommunicationDeliveryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommunicationDelivery, models.CommunicationDeliveryFilter](db),
	}
}

func (r *CommunicationDeliveryRepositoryImpl) Append(ctx context.Context, delivery *models.CommunicationDelivery) error {
	db := r.getDB(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(delivery).Error; err != nil {
		return fmt.Errorf("failed to append delivery: %w", err)
	}
	return nil
}

func (r *CommunicationDeliveryRepositoryImpl) AttemptedEmails(ctx context.Context, communicationID uint, channel models.DeliveryChannel) ([]string, error) {
	db := r.getDB(ctx)

	var emails []string
	err := db.Model(&models.CommunicationDelivery{}).
		Where("communication_id = ? AND channel = ?", communicationID, channel).
		Distinct().
		Pluck("recipient_email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempted emails: %w", err)
	}
	return emails, nil
}

func (r *CommunicationDeliveryRepositoryImpl) StatsByCommunication(ctx context.Context, communicationID uint) ([]models.DeliveryStat, error) {
	db := r.getDB(ctx)

	var stats []models.DeliveryStat
	err := db.Model(&models.CommunicationDelivery{}).
		Select("channel, status, COUNT(*) AS count").
		Where("communication_id = ?", communicationID).
		Group("channel, status").
		Order("channel, status").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delivery stats: %w", err)
	}
	return stats, nil
}

func (r *CommunicationDeliveryRepositoryImpl) applyFilter(db *gorm.DB, f models.CommunicationDeliveryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CommunicationID != nil {
		db = db.Where("communication_id = ?", *f.CommunicationID)
	}
	if f.DispatchID != nil {
		db = db.Where("dispatch_id = ?", *f.DispatchID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.RecipientEmail != nil {
		db = db.Where("recipient_email = ?", *f.RecipientEmail)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CommunicationDeliveryRepositoryImpl) ByFilter(ctx context.Context, filter models.CommunicationDeliveryFilter, orderBy string, limit, offset int) ([]*models.CommunicationDelivery, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CommunicationDelivery{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CommunicationDelivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CommunicationDeliveryRepositoryImpl) Count(ctx context.Context, filter models.CommunicationDeliveryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CommunicationDelivery{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CommunicationDeliveryRepositoryImpl) Exists(ctx context.Context, filter models.CommunicationDeliveryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
