package dto

import "time"

// SendCommunicationRequest is the body of POST /api/v1/communications/send
type SendCommunicationRequest struct {
	OrganizationID  string     `json:"organizationId" validate:"required,uuid"`
	Subject         string     `json:"subject" validate:"required,min=1,max=500"`
	Content         string     `json:"content" validate:"required"`
	MessageType     string     `json:"messageType" validate:"omitempty,oneof=announcement reminder emergency update"`
	Priority        string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	TargetAllOrg    bool       `json:"targetAllOrg"`
	TargetTeams     []string   `json:"targetTeams,omitempty" validate:"omitempty,dive,uuid"`
	TargetGroups    []string   `json:"targetGroups,omitempty" validate:"omitempty,dive,uuid"`
	TargetPlayers   []string   `json:"targetPlayers,omitempty" validate:"omitempty,dive,uuid"`
	SendEmail       *bool      `json:"sendEmail,omitempty"`
	SendSMS         bool       `json:"sendSms"`
	ScheduledSendAt *time.Time `json:"scheduledSendAt,omitempty"`
}

// SendCommunicationResponse is returned when a communication was accepted
type SendCommunicationResponse struct {
	Success         bool   `json:"success"`
	CommunicationID string `json:"communicationId"`
	Message         string `json:"message"`
	Status          string `json:"status"`
}

// CommunicationDTO is the public view of a communication
type CommunicationDTO struct {
	UUID            string     `json:"uuid"`
	OrganizationID  uint       `json:"organization_id"`
	SenderID        uint       `json:"sender_id"`
	Subject         string     `json:"subject"`
	Content         string     `json:"content"`
	MessageType     string     `json:"message_type"`
	Priority        string     `json:"priority"`
	TargetAllOrg    bool       `json:"target_all_org"`
	TargetTeams     []string   `json:"target_teams"`
	TargetGroups    []string   `json:"target_groups"`
	TargetPlayers   []string   `json:"target_players"`
	SendEmail       bool       `json:"send_email"`
	SendSMS         bool       `json:"send_sms"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at,omitempty"`
	Status          string     `json:"status"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DeliveryStatsDTO aggregates delivery rows of one communication
type DeliveryStatsDTO struct {
	Total     int64                       `json:"total"`
	ByStatus  map[string]int64            `json:"by_status"`
	ByChannel map[string]map[string]int64 `json:"by_channel"`
}

// GetCommunicationResponse is a communication with its delivery stats
type GetCommunicationResponse struct {
	Communication CommunicationDTO `json:"communication"`
	Stats         DeliveryStatsDTO `json:"stats"`
}

// ListDeliveriesRequest pages through deliveries of a communication
type ListDeliveriesRequest struct {
	CommunicationUUID string `json:"-" validate:"required,uuid"`
	Status            string `query:"status" validate:"omitempty,oneof=pending sent failed"`
	Channel           string `query:"channel" validate:"omitempty,oneof=email sms"`
	Page              int    `query:"page" validate:"omitempty,gte=1"`
	PageSize          int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// DeliveryDTO is the public view of a delivery row
type DeliveryDTO struct {
	UUID              string     `json:"uuid"`
	DispatchID        string     `json:"dispatch_id"`
	Channel           string     `json:"channel"`
	RecipientEmail    string     `json:"recipient_email"`
	RecipientName     string     `json:"recipient_name"`
	RecipientRole     string     `json:"recipient_role"`
	Status            string     `json:"status"`
	ExternalMessageID *string    `json:"external_message_id,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ListDeliveriesResponse is one page of deliveries
type ListDeliveriesResponse struct {
	Items      []DeliveryDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// DeliveryExport is a rendered spreadsheet report
type DeliveryExport struct {
	Filename string
	Content  []byte
}
