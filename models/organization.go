// Package models contains domain entities for the communication dispatch service
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// Organization is a tenant owning teams, players, coaches and communications
type Organization struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid" json:"uuid"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Subdomain    string    `gorm:"size:63;not null;uniqueIndex:uk_organizations_subdomain" json:"subdomain"`
	PrimaryColor *string   `gorm:"size:16" json:"primary_color,omitempty"`
	ContactEmail *string   `gorm:"size:255" json:"contact_email,omitempty"`
	IsActive     bool      `gorm:"not null;default:true;index:idx_organizations_is_active" json:"is_active"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BrandColor returns the organization's primary color or the platform default
func (o *Organization) BrandColor() string {
	if o.PrimaryColor == nil || *o.PrimaryColor == "" {
		return utils.DefaultPrimaryColor
	}
	return *o.PrimaryColor
}

// MemberRole is a user's role inside an organization
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleCoach  MemberRole = "coach"
	MemberRoleParent MemberRole = "parent"
	MemberRolePlayer MemberRole = "player"
)

func (r MemberRole) String() string {
	return string(r)
}

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleCoach, MemberRoleParent, MemberRolePlayer:
		return true
	default:
		return false
	}
}

// CanSendCommunications reports whether the role may author communications
func (r MemberRole) CanSendCommunications() bool {
	return r == MemberRoleAdmin || r == MemberRoleCoach
}

// Scan implements the sql.Scanner interface for MemberRole
func (r *MemberRole) Scan(value any) error {
	if value == nil {
		*r = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*r = MemberRole(v)
	case []byte:
		*r = MemberRole(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MemberRole", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MemberRole
func (r MemberRole) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid MemberRole: %s", r)
	}
	return string(r), nil
}

// OrganizationMember links a platform user to an organization with a role
type OrganizationMember struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID uint       `gorm:"not null;uniqueIndex:uk_org_members_org_user" json:"organization_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:uk_org_members_org_user;index:idx_org_members_user_id" json:"user_id"`
	Role           MemberRole `gorm:"size:20;not null" json:"role"`
	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
}

func (OrganizationMember) TableName() string { return "organization_members" }
