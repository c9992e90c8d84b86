package businessflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rallyhq/rally/app/dto"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/rallyhq/rally/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const deliveriesSheet = "Deliveries"

// CommunicationReportFlow exposes delivery reporting for sent communications
type CommunicationReportFlow interface {
	GetCommunication(ctx context.Context, userID uint, communicationUUID string) (*dto.GetCommunicationResponse, error)
	ListDeliveries(ctx context.Context, userID uint, req *dto.ListDeliveriesRequest) (*dto.ListDeliveriesResponse, error)
	ExportDeliveries(ctx context.Context, userID uint, communicationUUID string, metadata *ClientMetadata) (*dto.DeliveryExport, error)
}

// CommunicationReportFlowImpl implements the communication report flow
type CommunicationReportFlowImpl struct {
	commRepo     repository.CommunicationRepository
	deliveryRepo repository.CommunicationDeliveryRepository
	memberRepo   repository.OrganizationMemberRepository
	auditRepo    repository.AuditLogRepository
	logger       *zap.Logger
}

// NewCommunicationReportFlow creates a new communication report flow instance
func NewCommunicationReportFlow(
	commRepo repository.CommunicationRepository,
	deliveryRepo repository.CommunicationDeliveryRepository,
	memberRepo repository.OrganizationMemberRepository,
	auditRepo repository.AuditLogRepository,
	logger *zap.Logger,
) CommunicationReportFlow {
	return &CommunicationReportFlowImpl{
		commRepo:     commRepo,
		deliveryRepo: deliveryRepo,
		memberRepo:   memberRepo,
		auditRepo:    auditRepo,
		logger:       logger,
	}
}

// GetCommunication returns a communication with its delivery counts
func (f *CommunicationReportFlowImpl) GetCommunication(ctx context.Context, userID uint, communicationUUID string) (*dto.GetCommunicationResponse, error) {
	comm, err := f.loadAuthorized(ctx, userID, communicationUUID, false)
	if err != nil {
		return nil, err
	}

	stats, err := f.deliveryRepo.StatsByCommunication(ctx, comm.ID)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_STATS_FAILED", "Failed to aggregate delivery stats", err)
	}

	return &dto.GetCommunicationResponse{
		Communication: ToCommunicationDTO(comm),
		Stats:         ToDeliveryStatsDTO(stats),
	}, nil
}

// ListDeliveries returns one page of delivery rows, newest first
func (f *CommunicationReportFlowImpl) ListDeliveries(ctx context.Context, userID uint, req *dto.ListDeliveriesRequest) (*dto.ListDeliveriesResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Invalid page", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Invalid page size", ErrInvalidPageSize)
	}

	comm, err := f.loadAuthorized(ctx, userID, req.CommunicationUUID, false)
	if err != nil {
		return nil, err
	}

	filter := models.CommunicationDeliveryFilter{CommunicationID: &comm.ID}
	if req.Status != "" {
		status := models.DeliveryStatus(req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("INVALID_DELIVERY_STATUS", "Invalid delivery status filter", ErrCommunicationValidation)
		}
		filter.Status = &status
	}
	if req.Channel != "" {
		channel := models.DeliveryChannel(req.Channel)
		if !channel.Valid() {
			return nil, NewBusinessError("INVALID_DELIVERY_CHANNEL", "Invalid delivery channel filter", ErrCommunicationValidation)
		}
		filter.Channel = &channel
	}

	total, err := f.deliveryRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_COUNT_FAILED", "Failed to count deliveries", err)
	}

	rows, err := f.deliveryRepo.ByFilter(ctx, filter, "id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LIST_FAILED", "Failed to list deliveries", err)
	}

	items := make([]dto.DeliveryDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToDeliveryDTO(r))
	}

	return &dto.ListDeliveriesResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      pageSize,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// ExportDeliveries renders every delivery row of a communication as an xlsx workbook
func (f *CommunicationReportFlowImpl) ExportDeliveries(ctx context.Context, userID uint, communicationUUID string, metadata *ClientMetadata) (*dto.DeliveryExport, error) {
	comm, err := f.loadAuthorized(ctx, userID, communicationUUID, true)
	if err != nil {
		return nil, err
	}

	filter := models.CommunicationDeliveryFilter{CommunicationID: &comm.ID}
	rows, err := f.deliveryRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LIST_FAILED", "Failed to list deliveries", err)
	}

	content, err := renderDeliveriesWorkbook(rows)
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	_ = writeAuditLog(ctx, f.auditRepo, auditEntry{
		userID:         &userID,
		organizationID: &comm.OrganizationID,
		action:         models.AuditActionDeliveriesExported,
		description:    fmt.Sprintf("Deliveries of communication %s exported", comm.UUID.String()),
		success:        true,
		metadata:       map[string]any{"rows": len(rows)},
	}, metadata)

	f.logger.Info("Deliveries exported",
		zap.Uint("communication_id", comm.ID),
		zap.Uint("user_id", userID),
		zap.Int("rows", len(rows)))

	return &dto.DeliveryExport{
		Filename: fmt.Sprintf("communication_%s_deliveries.xlsx", comm.UUID.String()),
		Content:  content,
	}, nil
}

// loadAuthorized fetches a communication the user may see. Non-members get not found.
func (f *CommunicationReportFlowImpl) loadAuthorized(ctx context.Context, userID uint, communicationUUID string, requireSender bool) (*models.Communication, error) {
	comm, err := f.commRepo.ByUUID(ctx, communicationUUID)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_LOOKUP_FAILED", "Failed to lookup communication", err)
	}
	if comm == nil {
		return nil, NewBusinessError("COMMUNICATION_NOT_FOUND", "Communication not found", ErrCommunicationNotFound)
	}

	member, err := f.memberRepo.ByOrganizationAndUser(ctx, comm.OrganizationID, userID)
	if err != nil {
		return nil, NewBusinessError("MEMBERSHIP_LOOKUP_FAILED", "Failed to lookup organization membership", err)
	}
	if member == nil {
		return nil, NewBusinessError("COMMUNICATION_NOT_FOUND", "Communication not found", ErrCommunicationNotFound)
	}
	if requireSender && !member.Role.CanSendCommunications() {
		return nil, NewBusinessError("ORGANIZATION_ACCESS_DENIED", "Only organization admins and coaches can export deliveries", ErrOrganizationAccessDenied)
	}

	return comm, nil
}

func renderDeliveriesWorkbook(rows []*models.CommunicationDelivery) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), deliveriesSheet); err != nil {
		return nil, err
	}

	header := []string{"uuid", "dispatch_id", "channel", "recipient_email", "recipient_name", "recipient_role", "status", "external_message_id", "error_message", "sent_at", "created_at"}
	if err := xl.SetSheetRow(deliveriesSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, r := range rows {
		sentAt := ""
		if r.SentAt != nil {
			sentAt = r.SentAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.UUID.String(),
			r.DispatchID.String(),
			r.Channel.String(),
			r.RecipientEmail,
			r.RecipientName,
			r.RecipientRole.String(),
			r.Status.String(),
			utils.StringValue(r.ExternalMessageID),
			utils.StringValue(r.ErrorMessage),
			sentAt,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(deliveriesSheet, cellRef, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToCommunicationDTO converts a communication model to its API view
func ToCommunicationDTO(c *models.Communication) dto.CommunicationDTO {
	return dto.CommunicationDTO{
		UUID:            c.UUID.String(),
		OrganizationID:  c.OrganizationID,
		SenderID:        c.SenderID,
		Subject:         c.Subject,
		Content:         c.Content,
		MessageType:     c.MessageType.String(),
		Priority:        c.Priority.String(),
		TargetAllOrg:    c.TargetAllOrg,
		TargetTeams:     append([]string{}, c.TargetTeams...),
		TargetGroups:    append([]string{}, c.TargetGroups...),
		TargetPlayers:   append([]string{}, c.TargetPlayers...),
		SendEmail:       c.SendEmail,
		SendSMS:         c.SendSMS,
		ScheduledSendAt: c.ScheduledSendAt,
		Status:          c.Status.String(),
		ErrorMessage:    c.ErrorMessage,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ToDeliveryDTO converts a delivery model to its API view
func ToDeliveryDTO(d *models.CommunicationDelivery) dto.DeliveryDTO {
	return dto.DeliveryDTO{
		UUID:              d.UUID.String(),
		DispatchID:        d.DispatchID.String(),
		Channel:           d.Channel.String(),
		RecipientEmail:    d.RecipientEmail,
		RecipientName:     d.RecipientName,
		RecipientRole:     d.RecipientRole.String(),
		Status:            d.Status.String(),
		ExternalMessageID: d.ExternalMessageID,
		ErrorMessage:      d.ErrorMessage,
		SentAt:            d.SentAt,
		CreatedAt:         d.CreatedAt,
	}
}

// ToDeliveryStatsDTO folds aggregated buckets into per-status and per-channel counts
func ToDeliveryStatsDTO(stats []models.DeliveryStat) dto.DeliveryStatsDTO {
	out := dto.DeliveryStatsDTO{
		ByStatus:  make(map[string]int64),
		ByChannel: make(map[string]map[string]int64),
	}
	for _, s := range stats {
		out.Total += s.Count
		out.ByStatus[s.Status.String()] += s.Count
		ch := s.Channel.String()
		if out.ByChannel[ch] == nil {
			out.ByChannel[ch] = make(map[string]int64)
		}
		out.ByChannel[ch][s.Status.String()] += s.Count
	}
	return out
}
