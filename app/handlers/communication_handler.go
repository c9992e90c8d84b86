package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rallyhq/rally/app/dto"
	businessflow "github.com/rallyhq/rally/business_flow"
	"github.com/rallyhq/rally/utils"
	"go.uber.org/zap"
)

// CommunicationHandlerInterface defines the contract for communication handlers
type CommunicationHandlerInterface interface {
	SendCommunication(c fiber.Ctx) error
	GetCommunication(c fiber.Ctx) error
	ListDeliveries(c fiber.Ctx) error
	ExportDeliveries(c fiber.Ctx) error
}

// CommunicationHandler handles communication dispatch and reporting requests
type CommunicationHandler struct {
	flow       businessflow.CommunicationFlow
	reportFlow businessflow.CommunicationReportFlow
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCommunicationHandler creates a new communication handler
func NewCommunicationHandler(flow businessflow.CommunicationFlow, reportFlow businessflow.CommunicationReportFlow, logger *zap.Logger) *CommunicationHandler {
	return &CommunicationHandler{
		flow:       flow,
		reportFlow: reportFlow,
		validator:  validator.New(),
		logger:     logger,
	}
}

func (h *CommunicationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CommunicationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendCommunication creates a communication and dispatches it unless it is scheduled
// @Summary Send Communication
// @Description Create a communication for an organization and deliver it by email to the resolved recipients
// @Tags Communications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SendCommunicationRequest true "Communication data"
// @Success 200 {object} dto.SendCommunicationResponse "Communication sent or scheduled"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Sender is not an admin or coach of the organization"
// @Failure 409 {object} dto.APIResponse "Communication is already being dispatched"
// @Failure 500 {object} dto.APIResponse "Processing failure"
// @Router /api/v1/communications/send [post]
func (h *CommunicationHandler) SendCommunication(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.SendCommunicationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/communications/send", utils.SendRequestTimeout)
	defer cancel()

	result, err := h.flow.SendCommunication(ctx, &req, userID, metadata)
	if err != nil {
		return h.flowError(c, err, "Failed to process communication", "COMMUNICATION_SEND_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// GetCommunication returns a communication with its delivery statistics
// @Summary Get Communication
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Communication UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetCommunicationResponse} "Communication retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Communication not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communications/{uuid} [get]
func (h *CommunicationHandler) GetCommunication(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	communicationUUID := c.Params("uuid")
	if err := h.validator.Var(communicationUUID, "required,uuid"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid communication UUID", "INVALID_COMMUNICATION_UUID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/communications/:uuid")
	defer cancel()

	result, err := h.reportFlow.GetCommunication(ctx, userID, communicationUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to get communication", "GET_COMMUNICATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Communication retrieved successfully", result)
}

// ListDeliveries returns the delivery rows of a communication
// @Summary List Communication Deliveries
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Communication UUID"
// @Param status query string false "Delivery status (pending, sent, failed)"
// @Param channel query string false "Delivery channel (email, sms)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListDeliveriesResponse} "Deliveries retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Communication not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communications/{uuid}/deliveries [get]
func (h *CommunicationHandler) ListDeliveries(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.ListDeliveriesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	req.CommunicationUUID = c.Params("uuid")

	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/communications/:uuid/deliveries")
	defer cancel()

	result, err := h.reportFlow.ListDeliveries(ctx, userID, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to list deliveries", "LIST_DELIVERIES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deliveries retrieved successfully", result)
}

// ExportDeliveries returns the delivery report as an xlsx attachment
// @Summary Export Communication Deliveries
// @Tags Communications
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param uuid path string true "Communication UUID"
// @Success 200 {file} file "Delivery report"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Only admins and coaches can export"
// @Failure 404 {object} dto.APIResponse "Communication not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communications/{uuid}/deliveries/export [get]
func (h *CommunicationHandler) ExportDeliveries(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	communicationUUID := c.Params("uuid")
	if err := h.validator.Var(communicationUUID, "required,uuid"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid communication UUID", "INVALID_COMMUNICATION_UUID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))

	ctx, cancel := h.createRequestContext(c, "/api/v1/communications/:uuid/deliveries/export")
	defer cancel()

	export, err := h.reportFlow.ExportDeliveries(ctx, userID, communicationUUID, metadata)
	if err != nil {
		return h.flowError(c, err, "Failed to export deliveries", "EXPORT_DELIVERIES_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename=\""+export.Filename+"\"")
	return c.Send(export.Content)
}

func (h *CommunicationHandler) validate(req any) []string {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

// flowError maps business errors onto HTTP responses
func (h *CommunicationHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	code, message := fallbackCode, fallbackMessage
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}

	switch {
	case businessflow.IsCommunicationValidation(err),
		businessflow.IsInvalidPage(err),
		businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, message, code, err.Error())
	case businessflow.IsOrganizationAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, message, code, nil)
	case businessflow.IsCommunicationNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, message, code, nil)
	case businessflow.IsDispatchInProgress(err), businessflow.IsInvalidStatusTransition(err):
		return h.ErrorResponse(c, fiber.StatusConflict, message, code, nil)
	}

	h.logger.Error(fallbackMessage,
		zap.String("code", code),
		zap.String("request_id", requestid.FromContext(c)),
		zap.Error(err),
	)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, err.Error())
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *CommunicationHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.RequestTimeout)
}

func (h *CommunicationHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}
