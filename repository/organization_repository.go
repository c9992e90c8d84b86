package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rallyhq/rally/models"
	"gorm.io/gorm"
)

// OrganizationRepositoryImpl implements OrganizationRepository
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, struct{}]
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{BaseRepository: NewBaseRepository[models.Organization, struct{}](db)}
}

func (r *OrganizationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Organization, error) {
	db := r.getDB(ctx)

	var org models.Organization
	if err := db.Where("uuid = ?", uuid).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organization by uuid: %w", err)
	}
	return &org, nil
}

// OrganizationMemberRepositoryImpl implements OrganizationMemberRepository
type OrganizationMemberRepositoryImpl struct {
	*BaseRepository[models.OrganizationMember, struct{}]
}

func NewOrganizationMemberRepository(db *gorm.DB) OrganizationMemberRepository {
	return &OrganizationMemberRepositoryImpl{BaseRepository: NewBaseRepository[models.OrganizationMember, struct{}](db)}
}

func (r *OrganizationMemberRepositoryImpl) ByOrganizationAndUser(ctx context.Context, organizationID, userID uint) (*models.OrganizationMember, error) {
	db := r.getDB(ctx)

	var member models.OrganizationMember
	err := db.Where("organization_id = ? AND user_id = ?", organizationID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organization member: %w", err)
	}
	return &member, nil
}
