// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TxManager runs a unit of work inside one database transaction.
// Repositories called with the provided context join that transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// OrganizationRepository defines read operations for organizations
type OrganizationRepository interface {
	ByID(ctx context.Context, id uint) (*models.Organization, error)
	ByUUID(ctx context.Context, uuid string) (*models.Organization, error)
}

// OrganizationMemberRepository defines operations for organization memberships
type OrganizationMemberRepository interface {
	ByOrganizationAndUser(ctx context.Context, organizationID, userID uint) (*models.OrganizationMember, error)
}

// TeamRepository defines read operations for teams
type TeamRepository interface {
	ListByOrganization(ctx context.Context, organizationID uint) ([]*models.Team, error)
	ListByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Team, error)
}

// PlayerRepository defines read operations for players
type PlayerRepository interface {
	ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.Player, error)
	ListActiveByTeams(ctx context.Context, organizationID uint, teamIDs []uint) ([]*models.Player, error)
	ListActiveByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Player, error)
}

// CoachRepository defines read operations for coaches
type CoachRepository interface {
	ListByTeams(ctx context.Context, teamIDs []uint) ([]*models.Coach, error)
}

// CommunicationRepository defines operations for communications
type CommunicationRepository interface {
	Repository[models.Communication, models.CommunicationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Communication, error)
	// UpdateStatus moves a communication to status `to` only if its current
	// status is one of `from`. It reports whether a row was changed.
	UpdateStatus(ctx context.Context, id uint, from []models.CommunicationStatus, to models.CommunicationStatus, errorMessage *string) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Communication, error)
	ListStale(ctx context.Context, statuses []models.CommunicationStatus, updatedBefore time.Time, limit int) ([]*models.Communication, error)
}

// CommunicationDeliveryRepository defines operations for delivery records
type CommunicationDeliveryRepository interface {
	Repository[models.CommunicationDelivery, models.CommunicationDeliveryFilter]
	// Append inserts a delivery row; a duplicate attempt within one dispatch is ignored.
	Append(ctx context.Context, delivery *models.CommunicationDelivery) error
	AttemptedEmails(ctx context.Context, communicationID uint, channel models.DeliveryChannel) ([]string, error)
	StatsByCommunication(ctx context.Context, communicationID uint) ([]models.DeliveryStat, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Save(ctx context.Context, entity *models.AuditLog) error
	ListByOrganization(ctx context.Context, organizationID uint, limit, offset int) ([]*models.AuditLog, error)
}
