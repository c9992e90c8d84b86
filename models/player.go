package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// Player is a rostered athlete, optionally with a parent contact
type Player struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_players_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_players_org_active,priority:1" json:"organization_id"`
	TeamID         *uint     `gorm:"index:idx_players_team_id" json:"team_id,omitempty"`
	FirstName      string    `gorm:"size:100;not null" json:"first_name"`
	LastName       string    `gorm:"size:100;not null" json:"last_name"`
	Email          *string   `gorm:"size:255" json:"email,omitempty"`
	Phone          *string   `gorm:"size:32" json:"phone,omitempty"`
	ParentName     *string   `gorm:"size:200" json:"parent_name,omitempty"`
	ParentEmail    *string   `gorm:"size:255" json:"parent_email,omitempty"`
	ParentPhone    *string   `gorm:"size:32" json:"parent_phone,omitempty"`
	IsActive       bool      `gorm:"not null;default:true;index:idx_players_org_active,priority:2" json:"is_active"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	Team *Team `gorm:"foreignKey:TeamID;references:ID" json:"team,omitempty"`
}

func (Player) TableName() string { return "players" }

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// FullName joins first and last name
func (p *Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
