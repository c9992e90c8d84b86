package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// Team groups players and coaches within an organization
type Team struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_teams_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_teams_organization_id" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Team) TableName() string { return "teams" }

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}
