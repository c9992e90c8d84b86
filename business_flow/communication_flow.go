package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/app/dto"
	"github.com/rallyhq/rally/app/services"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/rallyhq/rally/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CommunicationFlow handles sending communications and driving their dispatch
type CommunicationFlow interface {
	SendCommunication(ctx context.Context, req *dto.SendCommunicationRequest, userID uint, metadata *ClientMetadata) (*dto.SendCommunicationResponse, error)
	DispatchScheduled(ctx context.Context, communicationID uint) error
	ResumeDispatch(ctx context.Context, communicationID uint) error
}

// CommunicationFlowImpl implements the communication business flow
type CommunicationFlowImpl struct {
	orgRepo        repository.OrganizationRepository
	memberRepo     repository.OrganizationMemberRepository
	commRepo       repository.CommunicationRepository
	deliveryRepo   repository.CommunicationDeliveryRepository
	auditRepo      repository.AuditLogRepository
	txManager      repository.TxManager
	resolver       RecipientResolver
	channels       map[models.DeliveryChannel]DeliveryChannel
	locker         services.DispatchLocker
	dispatchConfig config.DispatchConfig
	logger         *zap.Logger
	now            func() time.Time
}

// NewCommunicationFlow creates a new communication flow instance
func NewCommunicationFlow(
	orgRepo repository.OrganizationRepository,
	memberRepo repository.OrganizationMemberRepository,
	commRepo repository.CommunicationRepository,
	deliveryRepo repository.CommunicationDeliveryRepository,
	auditRepo repository.AuditLogRepository,
	txManager repository.TxManager,
	resolver RecipientResolver,
	channels []DeliveryChannel,
	locker services.DispatchLocker,
	dispatchConfig config.DispatchConfig,
	logger *zap.Logger,
) CommunicationFlow {
	if dispatchConfig.Concurrency <= 0 {
		dispatchConfig.Concurrency = utils.DefaultDispatchConcurrency
	}
	if dispatchConfig.LockTTL <= 0 {
		dispatchConfig.LockTTL = utils.DefaultDispatchLockTTL
	}
	if locker == nil {
		locker = services.NoopDispatchLocker{}
	}

	byName := make(map[models.DeliveryChannel]DeliveryChannel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}

	return &CommunicationFlowImpl{
		orgRepo:        orgRepo,
		memberRepo:     memberRepo,
		commRepo:       commRepo,
		deliveryRepo:   deliveryRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		resolver:       resolver,
		channels:       byName,
		locker:         locker,
		dispatchConfig: dispatchConfig,
		logger:         logger,
		now:            utils.UTCNow,
	}
}

// validatedCommunication is a send request after business validation
type validatedCommunication struct {
	organizationUUID uuid.UUID
	subject          string
	content          string
	messageType      models.MessageType
	priority         models.Priority
	target           TargetingConfig
	sendEmail        bool
	sendSMS          bool
	scheduledSendAt  *time.Time
}

// SendCommunication validates, authorizes and persists a communication, then
// dispatches it unless it is scheduled for later.
func (s *CommunicationFlowImpl) SendCommunication(ctx context.Context, req *dto.SendCommunicationRequest, userID uint, metadata *ClientMetadata) (*dto.SendCommunicationResponse, error) {
	// Validate business rules
	in, err := s.validateSendCommunicationRequest(req)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_VALIDATION_FAILED", "Communication validation failed", err)
	}

	org, err := s.authorizeSender(ctx, in.organizationUUID, userID, metadata)
	if err != nil {
		return nil, err
	}

	status := models.CommunicationStatusProcessing
	if in.scheduledSendAt != nil && in.scheduledSendAt.After(s.now()) {
		status = models.CommunicationStatusScheduled
	}

	comm := &models.Communication{
		OrganizationID:  org.ID,
		SenderID:        userID,
		Subject:         in.subject,
		Content:         in.content,
		MessageType:     in.messageType,
		Priority:        in.priority,
		TargetAllOrg:    in.target.AllOrg,
		TargetTeams:     uuidStrings(in.target.TeamUUIDs),
		TargetGroups:    uuidStrings(in.target.GroupUUIDs),
		TargetPlayers:   uuidStrings(in.target.PlayerUUIDs),
		SendEmail:       in.sendEmail,
		SendSMS:         in.sendSMS,
		ScheduledSendAt: in.scheduledSendAt,
		Status:          status,
	}

	// Use transaction for atomicity
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.commRepo.Save(txCtx, comm); err != nil {
			return err
		}

		return writeAuditLog(txCtx, s.auditRepo, auditEntry{
			userID:         &userID,
			organizationID: &org.ID,
			action:         models.AuditActionCommunicationCreated,
			description:    fmt.Sprintf("Communication created: %s", comm.UUID.String()),
			success:        true,
			metadata: map[string]any{
				"communication_uuid": comm.UUID.String(),
				"status":             comm.Status.String(),
			},
		}, metadata)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Communication creation failed: %s", err.Error())
		_ = writeAuditLog(ctx, s.auditRepo, auditEntry{
			userID:         &userID,
			organizationID: &org.ID,
			action:         models.AuditActionCommunicationCreateFailed,
			description:    errMsg,
			errorMsg:       &errMsg,
		}, metadata)

		return nil, NewBusinessError("COMMUNICATION_PERSIST_FAILED", "Failed to save communication", fmt.Errorf("%w: %w", ErrCommunicationPersistFailed, err))
	}

	resp := &dto.SendCommunicationResponse{
		Success:         true,
		CommunicationID: comm.UUID.String(),
	}

	if comm.Status == models.CommunicationStatusScheduled {
		s.logger.Info("Communication scheduled",
			zap.Uint("communication_id", comm.ID),
			zap.Timep("scheduled_send_at", comm.ScheduledSendAt))
		resp.Message = "Communication scheduled successfully"
		resp.Status = comm.Status.String()
		return resp, nil
	}

	dispatchCtx, cancel := detachWithDeadline(ctx)
	defer cancel()
	if err := s.dispatch(dispatchCtx, comm, org, false); err != nil {
		if IsDispatchInterrupted(err) {
			resp.Message = "Communication accepted, remaining deliveries will be resumed"
			resp.Status = comm.Status.String()
			return resp, nil
		}
		return nil, dispatchBusinessError(err)
	}

	resp.Message = "Communication sent successfully"
	resp.Status = comm.Status.String()
	return resp, nil
}

// DispatchScheduled starts a scheduled communication whose send time has come
func (s *CommunicationFlowImpl) DispatchScheduled(ctx context.Context, communicationID uint) error {
	comm, err := s.getCommunication(ctx, communicationID)
	if err != nil {
		return err
	}
	if comm.Status != models.CommunicationStatusScheduled {
		return NewBusinessErrorf("INVALID_STATUS_TRANSITION", "Communication %d is %s, not scheduled", ErrInvalidStatusTransition, comm.ID, comm.Status)
	}

	org, err := s.orgRepo.ByID(ctx, comm.OrganizationID)
	if err != nil {
		return NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil {
		s.markFailed(ctx, comm, errors.New("organization not found"))
		return NewBusinessError("ORGANIZATION_NOT_FOUND", "Organization of communication not found", ErrOrganizationAccessDenied)
	}

	if err := s.transition(ctx, comm, []models.CommunicationStatus{models.CommunicationStatusScheduled}, models.CommunicationStatusProcessing, nil); err != nil {
		return dispatchBusinessError(err)
	}

	if err := s.dispatch(ctx, comm, org, false); err != nil {
		return dispatchBusinessError(err)
	}
	return nil
}

// ResumeDispatch finishes a communication left in processing or sending. Recipients
// that already have a delivery row for a channel are not sent again.
func (s *CommunicationFlowImpl) ResumeDispatch(ctx context.Context, communicationID uint) error {
	comm, err := s.getCommunication(ctx, communicationID)
	if err != nil {
		return err
	}
	if comm.Status != models.CommunicationStatusProcessing && comm.Status != models.CommunicationStatusSending {
		return NewBusinessErrorf("INVALID_STATUS_TRANSITION", "Communication %d is %s and cannot be resumed", ErrInvalidStatusTransition, comm.ID, comm.Status)
	}

	org, err := s.orgRepo.ByID(ctx, comm.OrganizationID)
	if err != nil {
		return NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil {
		s.markFailed(ctx, comm, errors.New("organization not found"))
		return NewBusinessError("ORGANIZATION_NOT_FOUND", "Organization of communication not found", ErrOrganizationAccessDenied)
	}

	s.logger.Info("Resuming communication dispatch",
		zap.Uint("communication_id", comm.ID),
		zap.String("status", comm.Status.String()))

	if err := s.dispatch(ctx, comm, org, true); err != nil {
		return dispatchBusinessError(err)
	}
	return nil
}

// detachWithDeadline drops the caller's cancellation but keeps its deadline
func detachWithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

// dispatch runs one locked dispatch of comm. Any error or panic after the lock
// is taken leaves the communication failed, except when ctx ends first: the
// communication then stays in processing or sending for ResumeDispatch.
func (s *CommunicationFlowImpl) dispatch(ctx context.Context, comm *models.Communication, org *models.Organization, resume bool) (err error) {
	release, err := s.locker.Acquire(ctx, dispatchLockName(comm.ID), s.dispatchConfig.LockTTL)
	if err != nil {
		if errors.Is(err, services.ErrLockHeld) {
			return ErrDispatchInProgress
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDispatchInterrupted, err)
		}
		err = fmt.Errorf("failed to acquire dispatch lock: %w", err)
		s.markFailed(ctx, comm, err)
		return err
	}
	defer release()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDispatchPanicked, r)
		} else if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrDispatchInterrupted, err)
			s.logger.Warn("Dispatch interrupted, leaving communication for resume",
				zap.Uint("communication_id", comm.ID),
				zap.String("status", comm.Status.String()),
				zap.Error(err))
		}
		if err != nil && !errors.Is(err, ErrDispatchInterrupted) {
			s.markFailed(ctx, comm, err)
		}
		dispatchesTotal.WithLabelValues(comm.Status.String()).Inc()
		dispatchDuration.Observe(time.Since(start).Seconds())
	}()

	return s.run(ctx, comm, org, resume)
}

func (s *CommunicationFlowImpl) run(ctx context.Context, comm *models.Communication, org *models.Organization, resume bool) error {
	dispatchID := uuid.New()
	log := s.logger.With(
		zap.Uint("communication_id", comm.ID),
		zap.String("dispatch_id", dispatchID.String()),
	)

	recipients, err := s.resolver.Resolve(ctx, comm.OrganizationID, TargetingFromCommunication(comm))
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	dispatchRecipients.Observe(float64(len(recipients)))

	if len(recipients) == 0 {
		log.Warn("No recipients resolved")
		return ErrNoRecipients
	}

	jobs, err := s.buildJobs(ctx, comm, org, dispatchID, recipients, resume)
	if err != nil {
		return err
	}

	if comm.Status == models.CommunicationStatusProcessing {
		if err := s.transition(ctx, comm, []models.CommunicationStatus{models.CommunicationStatusProcessing}, models.CommunicationStatusSending, nil); err != nil {
			return err
		}
	}

	log.Info("Dispatching communication",
		zap.Int("recipients", len(recipients)),
		zap.Int("jobs", len(jobs)),
		zap.Bool("resume", resume))

	var g errgroup.Group
	g.SetLimit(s.dispatchConfig.Concurrency)
	for _, job := range jobs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrDispatchPanicked, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			s.deliver(ctx, log, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.transition(ctx, comm, []models.CommunicationStatus{models.CommunicationStatusSending}, models.CommunicationStatusSent, nil); err != nil {
		return err
	}

	log.Info("Communication dispatched", zap.Int("jobs", len(jobs)))
	return nil
}

// channelJob pairs a delivery job with the channel that runs it
type channelJob struct {
	channel DeliveryChannel
	job     DeliveryJob
}

func (s *CommunicationFlowImpl) buildJobs(ctx context.Context, comm *models.Communication, org *models.Organization, dispatchID uuid.UUID, recipients []Recipient, resume bool) ([]channelJob, error) {
	var enabled []DeliveryChannel
	if comm.SendEmail {
		if ch, ok := s.channels[models.DeliveryChannelEmail]; ok {
			enabled = append(enabled, ch)
		} else {
			s.logger.Warn("Email channel not registered", zap.Uint("communication_id", comm.ID))
		}
	}
	if comm.SendSMS {
		if ch, ok := s.channels[models.DeliveryChannelSMS]; ok {
			enabled = append(enabled, ch)
		} else {
			s.logger.Info("SMS channel unavailable, skipping", zap.Uint("communication_id", comm.ID))
		}
	}

	jobs := make([]channelJob, 0, len(recipients)*len(enabled))
	for _, ch := range enabled {
		var attempted map[string]struct{}
		if resume {
			emails, err := s.deliveryRepo.AttemptedEmails(ctx, comm.ID, ch.Name())
			if err != nil {
				return nil, fmt.Errorf("failed to load attempted deliveries: %w", err)
			}
			attempted = make(map[string]struct{}, len(emails))
			for _, e := range emails {
				attempted[utils.NormalizeEmail(e)] = struct{}{}
			}
		}

		for _, r := range recipients {
			if _, done := attempted[utils.NormalizeEmail(r.Email)]; done {
				continue
			}
			jobs = append(jobs, channelJob{
				channel: ch,
				job: DeliveryJob{
					Communication: comm,
					Organization:  org,
					DispatchID:    dispatchID,
					Recipient:     r,
				},
			})
		}
	}
	return jobs, nil
}

// deliver runs one job; failures stay local to the recipient
func (s *CommunicationFlowImpl) deliver(ctx context.Context, log *zap.Logger, cj channelJob) {
	channel := cj.channel.Name().String()

	delivery, err := cj.channel.Deliver(ctx, cj.job)
	if err != nil && ctx.Err() != nil {
		log.Info("Delivery interrupted",
			zap.String("channel", channel),
			zap.String("recipient", cj.job.Recipient.Email),
			zap.Error(err))
		return
	}
	if err != nil {
		deliveryBookkeepingErrors.WithLabelValues(channel).Inc()
		log.Error("Failed to record delivery",
			zap.String("channel", channel),
			zap.String("recipient", cj.job.Recipient.Email),
			zap.Error(err))
		return
	}
	if delivery != nil {
		deliveriesTotal.WithLabelValues(channel, delivery.Status.String()).Inc()
	}
}

// transition compare-and-sets the communication status and audits the change
func (s *CommunicationFlowImpl) transition(ctx context.Context, comm *models.Communication, from []models.CommunicationStatus, to models.CommunicationStatus, errorMessage *string) error {
	allowed := false
	for _, f := range from {
		if models.CanTransition(f, to) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %v -> %s", ErrInvalidStatusTransition, from, to)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := s.commRepo.UpdateStatus(txCtx, comm.ID, from, to, errorMessage)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStatusUpdateFailed, err)
		}
		if !ok {
			return fmt.Errorf("%w: %v -> %s", ErrInvalidStatusTransition, from, to)
		}

		desc := fmt.Sprintf("Communication %s moved to %s", comm.UUID.String(), to)
		return writeAuditLog(txCtx, s.auditRepo, auditEntry{
			userID:         &comm.SenderID,
			organizationID: &comm.OrganizationID,
			action:         models.AuditActionCommunicationStatusChanged,
			description:    desc,
			success:        true,
			errorMsg:       errorMessage,
			metadata: map[string]any{
				"communication_uuid": comm.UUID.String(),
				"from":               comm.Status.String(),
				"to":                 to.String(),
			},
		}, nil)
	})
	if err != nil {
		return err
	}

	comm.Status = to
	comm.ErrorMessage = errorMessage
	comm.UpdatedAt = s.now()
	return nil
}

// markFailed records cause on the communication; a failure here is only logged
func (s *CommunicationFlowImpl) markFailed(ctx context.Context, comm *models.Communication, cause error) {
	msg := cause.Error()
	from := []models.CommunicationStatus{
		models.CommunicationStatusScheduled,
		models.CommunicationStatusProcessing,
		models.CommunicationStatusSending,
	}

	if err := s.transition(context.WithoutCancel(ctx), comm, from, models.CommunicationStatusFailed, &msg); err != nil {
		s.logger.Error("Failed to mark communication as failed",
			zap.Uint("communication_id", comm.ID),
			zap.String("cause", msg),
			zap.Error(err))
		return
	}

	s.logger.Warn("Communication failed",
		zap.Uint("communication_id", comm.ID),
		zap.String("error", msg))
}

// authorizeSender loads the organization and checks the user may send on its behalf
func (s *CommunicationFlowImpl) authorizeSender(ctx context.Context, organizationUUID uuid.UUID, userID uint, metadata *ClientMetadata) (*models.Organization, error) {
	org, err := s.orgRepo.ByUUID(ctx, organizationUUID.String())
	if err != nil {
		return nil, NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil || !org.IsActive {
		s.auditAccessDenied(ctx, userID, nil, "organization not found or inactive", metadata)
		return nil, NewBusinessError("ORGANIZATION_ACCESS_DENIED", "Access to organization denied", ErrOrganizationAccessDenied)
	}

	member, err := s.memberRepo.ByOrganizationAndUser(ctx, org.ID, userID)
	if err != nil {
		return nil, NewBusinessError("MEMBERSHIP_LOOKUP_FAILED", "Failed to lookup organization membership", err)
	}
	if member == nil || !member.Role.CanSendCommunications() {
		s.auditAccessDenied(ctx, userID, &org.ID, "sender is not an admin or coach of the organization", metadata)
		return nil, NewBusinessError("ORGANIZATION_ACCESS_DENIED", "Only organization admins and coaches can send communications", ErrOrganizationAccessDenied)
	}

	return org, nil
}

func (s *CommunicationFlowImpl) auditAccessDenied(ctx context.Context, userID uint, organizationID *uint, reason string, metadata *ClientMetadata) {
	_ = writeAuditLog(ctx, s.auditRepo, auditEntry{
		userID:         &userID,
		organizationID: organizationID,
		action:         models.AuditActionCommunicationAccessDenied,
		description:    "Communication send denied",
		errorMsg:       &reason,
	}, metadata)
}

func (s *CommunicationFlowImpl) getCommunication(ctx context.Context, id uint) (*models.Communication, error) {
	comm, err := s.commRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_LOOKUP_FAILED", "Failed to lookup communication", err)
	}
	if comm == nil {
		return nil, NewBusinessError("COMMUNICATION_NOT_FOUND", "Communication not found", ErrCommunicationNotFound)
	}
	return comm, nil
}

// validateSendCommunicationRequest applies the business rules the request schema cannot express
func (s *CommunicationFlowImpl) validateSendCommunicationRequest(req *dto.SendCommunicationRequest) (*validatedCommunication, error) {
	invalid := func(err error) error {
		return fmt.Errorf("%w: %w", ErrCommunicationValidation, err)
	}

	orgUUID, err := uuid.Parse(strings.TrimSpace(req.OrganizationID))
	if err != nil {
		return nil, invalid(fmt.Errorf("organizationId: %w", ErrInvalidTargetUUID))
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, invalid(ErrSubjectRequired)
	}
	if utf8.RuneCountInString(subject) > utils.MaxSubjectLength {
		return nil, invalid(ErrSubjectTooLong)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, invalid(ErrContentRequired)
	}

	messageType := models.MessageTypeAnnouncement
	if req.MessageType != "" {
		messageType = models.MessageType(req.MessageType)
		if !messageType.Valid() {
			return nil, invalid(ErrInvalidMessageType)
		}
	}

	priority := models.PriorityNormal
	if req.Priority != "" {
		priority = models.Priority(req.Priority)
		if !priority.Valid() {
			return nil, invalid(ErrInvalidPriority)
		}
	}

	teams, err := parseTargetUUIDs("targetTeams", req.TargetTeams)
	if err != nil {
		return nil, invalid(err)
	}
	groups, err := parseTargetUUIDs("targetGroups", req.TargetGroups)
	if err != nil {
		return nil, invalid(err)
	}
	players, err := parseTargetUUIDs("targetPlayers", req.TargetPlayers)
	if err != nil {
		return nil, invalid(err)
	}

	sendEmail := true
	if req.SendEmail != nil {
		sendEmail = *req.SendEmail
	}

	var scheduledSendAt *time.Time
	if req.ScheduledSendAt != nil {
		scheduledSendAt = utils.ToPtr(req.ScheduledSendAt.UTC())
	}

	return &validatedCommunication{
		organizationUUID: orgUUID,
		subject:          subject,
		content:          req.Content,
		messageType:      messageType,
		priority:         priority,
		target: TargetingConfig{
			AllOrg:      req.TargetAllOrg,
			TeamUUIDs:   teams,
			GroupUUIDs:  groups,
			PlayerUUIDs: players,
		},
		sendEmail:       sendEmail,
		sendSMS:         req.SendSMS,
		scheduledSendAt: scheduledSendAt,
	}, nil
}

func parseTargetUUIDs(field string, values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q", field, ErrInvalidTargetUUID, v)
		}
		out = append(out, id)
	}
	return out, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func dispatchLockName(communicationID uint) string {
	return fmt.Sprintf("communication:%d", communicationID)
}

// dispatchBusinessError maps dispatch failures onto business error codes
func dispatchBusinessError(err error) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}

	switch {
	case errors.Is(err, ErrNoRecipients):
		return NewBusinessError("NO_RECIPIENTS", "No recipients found for this communication", err)
	case errors.Is(err, ErrDispatchInterrupted):
		return NewBusinessError("DISPATCH_INTERRUPTED", "Communication dispatch was interrupted and will be resumed", err)
	case errors.Is(err, ErrDispatchInProgress):
		return NewBusinessError("DISPATCH_IN_PROGRESS", "Communication is already being dispatched", err)
	case errors.Is(err, ErrInvalidStatusTransition):
		return NewBusinessError("INVALID_STATUS_TRANSITION", "Communication status changed concurrently", err)
	case errors.Is(err, ErrStatusUpdateFailed):
		return NewBusinessError("STATUS_UPDATE_FAILED", "Failed to update communication status", err)
	default:
		return NewBusinessError("COMMUNICATION_DISPATCH_FAILED", "Failed to dispatch communication", err)
	}
}
