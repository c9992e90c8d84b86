package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/utils"
	"gorm.io/gorm"
)

// DeliveryStatus is the outcome of one delivery attempt
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DeliveryStatus
func (s *DeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DeliveryStatus(v)
	case []byte:
		*s = DeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryStatus
func (s DeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DeliveryStatus: %s", s)
	}
	return string(s), nil
}

// DeliveryChannel is the transport a delivery went through
type DeliveryChannel string

const (
	DeliveryChannelEmail DeliveryChannel = "email"
	DeliveryChannelSMS   DeliveryChannel = "sms"
)

func (c DeliveryChannel) String() string {
	return string(c)
}

func (c DeliveryChannel) Valid() bool {
	return c == DeliveryChannelEmail || c == DeliveryChannelSMS
}

// Scan implements the sql.Scanner interface for DeliveryChannel
func (c *DeliveryChannel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = DeliveryChannel(v)
	case []byte:
		*c = DeliveryChannel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryChannel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryChannel
func (c DeliveryChannel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid DeliveryChannel: %s", c)
	}
	return string(c), nil
}

// RecipientRole tags where a recipient was resolved from
type RecipientRole string

const (
	RecipientRoleParent RecipientRole = "parent"
	RecipientRolePlayer RecipientRole = "player"
	RecipientRoleCoach  RecipientRole = "coach"
)

func (r RecipientRole) String() string {
	return string(r)
}

// CommunicationDelivery records one send attempt of a communication to one
// recipient over one channel. Rows are append-only.
type CommunicationDelivery struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_communication_deliveries_uuid" json:"uuid"`
	CommunicationID   uint            `gorm:"not null;index:idx_communication_deliveries_communication_id;uniqueIndex:uk_communication_deliveries_attempt,priority:1" json:"communication_id"`
	DispatchID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_communication_deliveries_attempt,priority:2" json:"dispatch_id"`
	Channel           DeliveryChannel `gorm:"size:10;not null;uniqueIndex:uk_communication_deliveries_attempt,priority:3" json:"channel"`
	RecipientEmail    string          `gorm:"size:255;not null;uniqueIndex:uk_communication_deliveries_attempt,priority:4;index:idx_communication_deliveries_recipient_email" json:"recipient_email"`
	RecipientPhone    *string         `gorm:"size:32" json:"recipient_phone,omitempty"`
	RecipientName     string          `gorm:"size:255" json:"recipient_name"`
	RecipientRole     RecipientRole   `gorm:"size:10;not null" json:"recipient_role"`
	PlayerID          *uint           `gorm:"index:idx_communication_deliveries_player_id" json:"player_id,omitempty"`
	Status            DeliveryStatus  `gorm:"size:10;not null;index:idx_communication_deliveries_status" json:"status"`
	ExternalMessageID *string         `gorm:"size:255" json:"external_message_id,omitempty"`
	ErrorMessage      *string         `gorm:"type:text" json:"error_message,omitempty"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_communication_deliveries_created_at" json:"created_at"`

	Communication *Communication `gorm:"foreignKey:CommunicationID;references:ID;constraint:OnDelete:RESTRICT" json:"communication,omitempty"`
}

func (CommunicationDelivery) TableName() string { return "communication_deliveries" }

// BeforeCreate is called before creating a new record
func (d *CommunicationDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DeliveryStatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CommunicationDeliveryFilter provides filter fields for repository queries
type CommunicationDeliveryFilter struct {
	ID              *uint
	CommunicationID *uint
	DispatchID      *uuid.UUID
	Channel         *DeliveryChannel
	Status          *DeliveryStatus
	RecipientEmail  *string
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

// DeliveryStat is one aggregated bucket of delivery rows
type DeliveryStat struct {
	Channel DeliveryChannel `json:"channel"`
	Status  DeliveryStatus  `json:"status"`
	Count   int64           `json:"count"`
}
