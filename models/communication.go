package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// CommunicationStatus is the aggregate dispatch state of a communication
type CommunicationStatus string

const (
	CommunicationStatusScheduled  CommunicationStatus = "scheduled"
	CommunicationStatusProcessing CommunicationStatus = "processing"
	CommunicationStatusSending    CommunicationStatus = "sending"
	CommunicationStatusSent       CommunicationStatus = "sent"
	CommunicationStatusFailed     CommunicationStatus = "failed"
)

// String returns the string representation of the status
func (s CommunicationStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CommunicationStatus) Valid() bool {
	switch s {
	case CommunicationStatusScheduled, CommunicationStatusProcessing,
		CommunicationStatusSending, CommunicationStatusSent,
		CommunicationStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s CommunicationStatus) IsTerminal() bool {
	return s == CommunicationStatusSent || s == CommunicationStatusFailed
}

// Scan implements the sql.Scanner interface for CommunicationStatus
func (s *CommunicationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CommunicationStatus(v)
	case []byte:
		*s = CommunicationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CommunicationStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CommunicationStatus
func (s CommunicationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CommunicationStatus: %s", s)
	}
	return string(s), nil
}

// MessageType classifies a communication
type MessageType string

const (
	MessageTypeAnnouncement MessageType = "announcement"
	MessageTypeReminder     MessageType = "reminder"
	MessageTypeEmergency    MessageType = "emergency"
	MessageTypeUpdate       MessageType = "update"
)

func (t MessageType) String() string {
	return string(t)
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeAnnouncement, MessageTypeReminder, MessageTypeEmergency, MessageTypeUpdate:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageType
func (t *MessageType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = MessageType(v)
	case []byte:
		*t = MessageType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageType
func (t MessageType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid MessageType: %s", t)
	}
	return string(t), nil
}

// Priority is the urgency of a communication
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string {
	return string(p)
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Priority
func (p *Priority) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = Priority(v)
	case []byte:
		*p = Priority(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Priority", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Priority
func (p Priority) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid Priority: %s", p)
	}
	return string(p), nil
}

// Communication is one message authored by a sender for an organization.
// Only Status and ErrorMessage change after creation.
type Communication struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uk_communications_uuid" json:"uuid"`
	OrganizationID  uint                `gorm:"not null;index:idx_communications_organization_id" json:"organization_id"`
	SenderID        uint                `gorm:"not null;index:idx_communications_sender_id" json:"sender_id"`
	Subject         string              `gorm:"size:500;not null" json:"subject"`
	Content         string              `gorm:"type:text;not null" json:"content"`
	MessageType     MessageType         `gorm:"size:20;not null" json:"message_type"`
	Priority        Priority            `gorm:"size:20;not null" json:"priority"`
	TargetAllOrg    bool                `gorm:"not null;default:false" json:"target_all_org"`
	TargetTeams     pq.StringArray      `gorm:"type:text[]" json:"target_teams"`
	TargetGroups    pq.StringArray      `gorm:"type:text[]" json:"target_groups"`
	TargetPlayers   pq.StringArray      `gorm:"type:text[]" json:"target_players"`
	SendEmail       bool                `gorm:"not null;default:true" json:"send_email"`
	SendSMS         bool                `gorm:"column:send_sms;not null;default:false" json:"send_sms"`
	ScheduledSendAt *time.Time          `gorm:"index:idx_communications_scheduled_send_at" json:"scheduled_send_at,omitempty"`
	Status          CommunicationStatus `gorm:"size:20;not null;index:idx_communications_status" json:"status"`
	ErrorMessage    *string             `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_communications_created_at" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
}

// TableName returns the table name for the model
func (Communication) TableName() string {
	return "communications"
}

// BeforeCreate is called before creating a new record
func (c *Communication) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CommunicationStatusProcessing
	}
	now := utils.UTCNow()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	return nil
}

// CanTransitionTo checks if the communication can move to the given status
func (c *Communication) CanTransitionTo(newStatus CommunicationStatus) bool {
	return CanTransition(c.Status, newStatus)
}

// CanTransition encodes the dispatch state machine
func CanTransition(from, to CommunicationStatus) bool {
	if to == CommunicationStatusFailed {
		return !from.IsTerminal()
	}
	switch from {
	case CommunicationStatusScheduled:
		return to == CommunicationStatusProcessing
	case CommunicationStatusProcessing:
		return to == CommunicationStatusSending
	case CommunicationStatusSending:
		return to == CommunicationStatusSent
	default:
		return false
	}
}

// CommunicationFilter represents filter criteria for communications
type CommunicationFilter struct {
	ID             *uint                `json:"id,omitempty"`
	UUID           *uuid.UUID           `json:"uuid,omitempty"`
	OrganizationID *uint                `json:"organization_id,omitempty"`
	SenderID       *uint                `json:"sender_id,omitempty"`
	Status         *CommunicationStatus `json:"status,omitempty"`
	MessageType    *MessageType         `json:"message_type,omitempty"`
	Priority       *Priority            `json:"priority,omitempty"`
	CreatedAfter   *time.Time           `json:"created_after,omitempty"`
	CreatedBefore  *time.Time           `json:"created_before,omitempty"`
}
