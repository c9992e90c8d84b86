// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"

	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/rallyhq/rally/utils"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// auditEntry is the flow-level view of an audit row
type auditEntry struct {
	userID         *uint
	organizationID *uint
	action         string
	description    string
	success        bool
	errorMsg       *string
	metadata       map[string]any
}

// writeAuditLog persists an audit row, joining the transaction carried by ctx if any
func writeAuditLog(ctx context.Context, repo repository.AuditLogRepository, entry auditEntry, client *ClientMetadata) error {
	audit := &models.AuditLog{
		UserID:         entry.userID,
		OrganizationID: entry.organizationID,
		Action:         entry.action,
		Description:    &entry.description,
		Success:        utils.ToPtr(entry.success),
		ErrorMessage:   entry.errorMsg,
	}

	if client != nil {
		audit.IPAddress = &client.IPAddress
		audit.UserAgent = &client.UserAgent
		if client.RequestID != "" {
			audit.RequestID = utils.ToPtr(client.RequestID)
		}
	}

	// Extract request ID from context if available
	if audit.RequestID == nil {
		if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
			audit.RequestID = &requestID
		}
	}

	if len(entry.metadata) > 0 {
		raw, err := json.Marshal(entry.metadata)
		if err != nil {
			return err
		}
		audit.Metadata = raw
	}

	return repo.Save(ctx, audit)
}
