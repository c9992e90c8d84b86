package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// Coach is a staff contact attached to a team
type Coach struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_coaches_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_coaches_organization_id" json:"organization_id"`
	TeamID         uint      `gorm:"not null;index:idx_coaches_team_id" json:"team_id"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Email          *string   `gorm:"size:255" json:"email,omitempty"`
	Phone          *string   `gorm:"size:32" json:"phone,omitempty"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	Team *Team `gorm:"foreignKey:TeamID;references:ID" json:"team,omitempty"`
}

func (Coach) TableName() string { return "coaches" }

func (c *Coach) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}
