package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/app/services"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/rallyhq/rally/utils"
	"go.uber.org/zap"
)

// DeliveryJob is one (communication, recipient) unit of work for a channel
type DeliveryJob struct {
	Communication *models.Communication
	Organization  *models.Organization
	DispatchID    uuid.UUID
	Recipient     Recipient
}

// DeliveryChannel sends a communication to one recipient and records the attempt.
// A returned error means the attempt could not be recorded; send failures are
// recorded as failed deliveries instead.
type DeliveryChannel interface {
	Name() models.DeliveryChannel
	Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error)
}

// EmailChannel delivers communications through an email provider
type EmailChannel struct {
	provider     services.EmailProvider
	template     *services.EmailTemplate
	deliveryRepo repository.CommunicationDeliveryRepository
	emailConfig  config.EmailConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewEmailChannel creates a new email delivery channel
func NewEmailChannel(
	provider services.EmailProvider,
	template *services.EmailTemplate,
	deliveryRepo repository.CommunicationDeliveryRepository,
	emailConfig config.EmailConfig,
	logger *zap.Logger,
) *EmailChannel {
	return &EmailChannel{
		provider:     provider,
		template:     template,
		deliveryRepo: deliveryRepo,
		emailConfig:  emailConfig,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

func (c *EmailChannel) Name() models.DeliveryChannel {
	return models.DeliveryChannelEmail
}

// Deliver renders and sends one email, then appends exactly one delivery row.
// With no provider configured it returns nil, nil and writes nothing. When ctx
// ends before the provider answers, no row is written so a resumed dispatch
// retries the recipient under the same idempotency key.
func (c *EmailChannel) Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error) {
	log := c.logger.With(
		zap.Uint("communication_id", job.Communication.ID),
		zap.String("dispatch_id", job.DispatchID.String()),
		zap.String("recipient", job.Recipient.Email),
	)

	if !c.provider.Configured() {
		log.Info("Email provider not configured, skipping delivery")
		return nil, nil
	}

	delivery := &models.CommunicationDelivery{
		CommunicationID: job.Communication.ID,
		DispatchID:      job.DispatchID,
		Channel:         models.DeliveryChannelEmail,
		RecipientEmail:  job.Recipient.Email,
		RecipientPhone:  job.Recipient.Phone,
		RecipientName:   job.Recipient.Name,
		RecipientRole:   job.Recipient.Role,
		PlayerID:        job.Recipient.PlayerID,
	}

	result, sendErr := c.send(ctx, job)
	if sendErr != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("email delivery interrupted: %w", sendErr)
	}
	if sendErr != nil {
		log.Warn("Email delivery failed", zap.Error(sendErr))
		delivery.Status = models.DeliveryStatusFailed
		delivery.ErrorMessage = utils.ToPtr(sendErr.Error())
	} else {
		delivery.Status = models.DeliveryStatusSent
		delivery.SentAt = utils.ToPtr(c.now())
		delivery.ExternalMessageID = utils.ToPtr(result.MessageID)
	}

	if err := c.deliveryRepo.Append(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to record email delivery: %w", err)
	}

	return delivery, nil
}

func (c *EmailChannel) send(ctx context.Context, job DeliveryJob) (*services.EmailSendResult, error) {
	org := job.Organization
	comm := job.Communication

	html, err := c.template.Render(services.EmailTemplateData{
		OrganizationName: org.Name,
		PrimaryColor:     org.BrandColor(),
		Subject:          comm.Subject,
		Content:          comm.Content,
		MessageType:      comm.MessageType.String(),
		Priority:         comm.Priority.String(),
		RecipientName:    job.Recipient.Name,
	})
	if err != nil {
		return nil, err
	}

	return c.provider.SendEmail(ctx, &services.EmailMessage{
		From:    fmt.Sprintf("%s <%s>", org.Name, c.emailConfig.FromEmail),
		To:      job.Recipient.Email,
		Subject: comm.Subject,
		HTML:    html,
		ReplyTo: c.replyTo(org),

		IdempotencyKey: idempotencyKey(comm.ID, job.Recipient.Email),
	})
}

// idempotencyKey is stable across dispatch runs of one communication
func idempotencyKey(communicationID uint, email string) string {
	return fmt.Sprintf("communication-%d/%s", communicationID, utils.NormalizeEmail(email))
}

func (c *EmailChannel) replyTo(org *models.Organization) string {
	if email := utils.StringValue(org.ContactEmail); email != "" {
		return email
	}
	return c.emailConfig.ReplyTo
}
