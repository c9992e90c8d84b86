package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/models"
	"gorm.io/gorm"
)

// TeamRepositoryImpl implements TeamRepository
type TeamRepositoryImpl struct {
	*BaseRepository[models.Team, struct{}]
}

func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &TeamRepositoryImpl{BaseRepository: NewBaseRepository[models.Team, struct{}](db)}
}

func (r *TeamRepositoryImpl) ListByOrganization(ctx context.Context, organizationID uint) ([]*models.Team, error) {
	db := r.getDB(ctx)

	var teams []*models.Team
	if err := db.Where("organization_id = ?", organizationID).Order("id ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to list teams by organization: %w", err)
	}
	return teams, nil
}

func (r *TeamRepositoryImpl) ListByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Team, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var teams []*models.Team
	err := db.Where("organization_id = ? AND uuid IN ?", organizationID, uuids).
		Order("id ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list teams by uuids: %w", err)
	}
	return teams, nil
}

// PlayerRepositoryImpl implements PlayerRepository
type PlayerRepositoryImpl struct {
	*BaseRepository[models.Player, struct{}]
}

func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &PlayerRepositoryImpl{BaseRepository: NewBaseRepository[models.Player, struct{}](db)}
}

func (r *PlayerRepositoryImpl) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.Player, error) {
	db := r.getDB(ctx)

	var players []*models.Player
	err := db.Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("id ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active players by organization: %w", err)
	}
	return players, nil
}

func (r *PlayerRepositoryImpl) ListActiveByTeams(ctx context.Context, organizationID uint, teamIDs []uint) ([]*models.Player, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var players []*models.Player
	err := db.Where("organization_id = ? AND is_active = ? AND team_id IN ?", organizationID, true, teamIDs).
		Order("id ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active players by teams: %w", err)
	}
	return players, nil
}

func (r *PlayerRepositoryImpl) ListActiveByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Player, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var players []*models.Player
	err := db.Where("organization_id = ? AND is_active = ? AND uuid IN ?", organizationID, true, uuids).
		Order("id ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active players by uuids: %w", err)
	}
	return players, nil
}

// CoachRepositoryImpl implements CoachRepository
type CoachRepositoryImpl struct {
	*BaseRepository[models.Coach, struct{}]
}

func NewCoachRepository(db *gorm.DB) CoachRepository {
	return &CoachRepositoryImpl{BaseRepository: NewBaseRepository[models.Coach, struct{}](db)}
}

func (r *CoachRepositoryImpl) ListByTeams(ctx context.Context, teamIDs []uint) ([]*models.Coach, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var coaches []*models.Coach
	if err := db.Where("team_id IN ?", teamIDs).Order("id ASC").Find(&coaches).Error; err != nil {
		return nil, fmt.Errorf("failed to list coaches by teams: %w", err)
	}
	return coaches, nil
}
