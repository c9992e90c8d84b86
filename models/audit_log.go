package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	OrganizationID *uint           `gorm:"index:idx_audit_organization_id" json:"organization_id,omitempty"`
	Action         string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description    *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress      *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent      *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID      *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata       json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success        *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage   *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionCommunicationCreated       = "communication_created"
	AuditActionCommunicationCreateFailed  = "communication_create_failed"
	AuditActionCommunicationStatusChanged = "communication_status_changed"
	AuditActionCommunicationAccessDenied  = "communication_access_denied"
	AuditActionDeliveriesExported         = "communication_deliveries_exported"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID             *uint
	UserID         *uint
	OrganizationID *uint
	Action         *string
	Success        *bool
	RequestID      *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
