package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/rallyhq/rally/utils"
	"go.uber.org/zap"
)

// Recipient is one resolved addressee of a communication
type Recipient struct {
	Email    string
	Phone    *string
	Name     string
	Role     models.RecipientRole
	PlayerID *uint
}

// TargetingConfig selects who a communication goes to
type TargetingConfig struct {
	AllOrg      bool
	TeamUUIDs   []uuid.UUID
	GroupUUIDs  []uuid.UUID
	PlayerUUIDs []uuid.UUID
}

// TargetingFromCommunication rebuilds the targeting of a persisted communication.
// Malformed UUIDs are skipped since they were validated on the way in.
func TargetingFromCommunication(c *models.Communication) TargetingConfig {
	return TargetingConfig{
		AllOrg:      c.TargetAllOrg,
		TeamUUIDs:   parseStoredUUIDs(c.TargetTeams),
		GroupUUIDs:  parseStoredUUIDs(c.TargetGroups),
		PlayerUUIDs: parseStoredUUIDs(c.TargetPlayers),
	}
}

func parseStoredUUIDs(values []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// RecipientResolver turns a targeting configuration into a deduplicated recipient list
type RecipientResolver interface {
	Resolve(ctx context.Context, organizationID uint, target TargetingConfig) ([]Recipient, error)
}

// RecipientResolverImpl resolves recipients from roster repositories
type RecipientResolverImpl struct {
	teamRepo   repository.TeamRepository
	playerRepo repository.PlayerRepository
	coachRepo  repository.CoachRepository
	logger     *zap.Logger
}

// NewRecipientResolver creates a new recipient resolver
func NewRecipientResolver(
	teamRepo repository.TeamRepository,
	playerRepo repository.PlayerRepository,
	coachRepo repository.CoachRepository,
	logger *zap.Logger,
) RecipientResolver {
	return &RecipientResolverImpl{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		coachRepo:  coachRepo,
		logger:     logger,
	}
}

// Resolve never fails because of a single source; failed sources contribute nothing.
func (r *RecipientResolverImpl) Resolve(ctx context.Context, organizationID uint, target TargetingConfig) ([]Recipient, error) {
	log := r.logger.With(zap.Uint("organization_id", organizationID))

	var (
		players []*models.Player
		coaches []*models.Coach
	)

	switch {
	case target.AllOrg:
		players = r.activePlayersOfOrganization(ctx, log, organizationID)
		teams := r.teamsOfOrganization(ctx, log, organizationID)
		if len(teams) > 0 {
			coaches = r.coachesOfTeams(ctx, log, teamIDs(teams))
		}
	case len(target.TeamUUIDs) > 0:
		teams := r.teamsByUUIDs(ctx, log, organizationID, target.TeamUUIDs)
		if len(teams) > 0 {
			ids := teamIDs(teams)
			players = r.activePlayersOfTeams(ctx, log, organizationID, ids)
			coaches = r.coachesOfTeams(ctx, log, ids)
		}
	}

	if len(target.PlayerUUIDs) > 0 {
		players = append(players, r.activePlayersByUUIDs(ctx, log, organizationID, target.PlayerUUIDs)...)
	}

	if len(target.GroupUUIDs) > 0 {
		log.Info("Target groups are not resolvable, ignoring", zap.Int("groups", len(target.GroupUUIDs)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := newRecipientSet()
	for _, p := range players {
		playerID := p.ID
		if email := utils.StringValue(p.ParentEmail); email != "" {
			name := utils.StringValue(p.ParentName)
			if strings.TrimSpace(name) == "" {
				name = fmt.Sprintf("Parent of %s", p.FullName())
			}
			set.put(Recipient{
				Email:    email,
				Phone:    p.ParentPhone,
				Name:     name,
				Role:     models.RecipientRoleParent,
				PlayerID: &playerID,
			})
		}
		if email := utils.StringValue(p.Email); email != "" {
			set.put(Recipient{
				Email:    email,
				Phone:    p.Phone,
				Name:     p.FullName(),
				Role:     models.RecipientRolePlayer,
				PlayerID: &playerID,
			})
		}
	}
	for _, c := range coaches {
		if email := utils.StringValue(c.Email); email != "" {
			set.put(Recipient{
				Email: email,
				Phone: c.Phone,
				Name:  c.Name,
				Role:  models.RecipientRoleCoach,
			})
		}
	}

	recipients := set.values()
	log.Debug("Recipients resolved",
		zap.Int("players", len(players)),
		zap.Int("coaches", len(coaches)),
		zap.Int("recipients", len(recipients)))

	return recipients, nil
}

func (r *RecipientResolverImpl) activePlayersOfOrganization(ctx context.Context, log *zap.Logger, organizationID uint) []*models.Player {
	players, err := r.playerRepo.ListActiveByOrganization(ctx, organizationID)
	if err != nil {
		log.Error("Failed to fetch organization players", zap.Error(err))
		return nil
	}
	return players
}

func (r *RecipientResolverImpl) activePlayersOfTeams(ctx context.Context, log *zap.Logger, organizationID uint, ids []uint) []*models.Player {
	players, err := r.playerRepo.ListActiveByTeams(ctx, organizationID, ids)
	if err != nil {
		log.Error("Failed to fetch team players", zap.Error(err))
		return nil
	}
	return players
}

func (r *RecipientResolverImpl) activePlayersByUUIDs(ctx context.Context, log *zap.Logger, organizationID uint, uuids []uuid.UUID) []*models.Player {
	players, err := r.playerRepo.ListActiveByUUIDs(ctx, organizationID, uuids)
	if err != nil {
		log.Error("Failed to fetch targeted players", zap.Error(err))
		return nil
	}
	return players
}

func (r *RecipientResolverImpl) teamsOfOrganization(ctx context.Context, log *zap.Logger, organizationID uint) []*models.Team {
	teams, err := r.teamRepo.ListByOrganization(ctx, organizationID)
	if err != nil {
		log.Error("Failed to fetch organization teams", zap.Error(err))
		return nil
	}
	return teams
}

func (r *RecipientResolverImpl) teamsByUUIDs(ctx context.Context, log *zap.Logger, organizationID uint, uuids []uuid.UUID) []*models.Team {
	teams, err := r.teamRepo.ListByUUIDs(ctx, organizationID, uuids)
	if err != nil {
		log.Error("Failed to fetch targeted teams", zap.Error(err))
		return nil
	}
	return teams
}

func (r *RecipientResolverImpl) coachesOfTeams(ctx context.Context, log *zap.Logger, ids []uint) []*models.Coach {
	coaches, err := r.coachRepo.ListByTeams(ctx, ids)
	if err != nil {
		log.Error("Failed to fetch coaches", zap.Error(err))
		return nil
	}
	return coaches
}

func teamIDs(teams []*models.Team) []uint {
	ids := make([]uint, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids
}

// recipientSet is keyed by normalized email and keeps first-insertion order.
// A later put with the same key replaces the value in place.
type recipientSet struct {
	order []string
	byKey map[string]Recipient
}

func newRecipientSet() *recipientSet {
	return &recipientSet{byKey: make(map[string]Recipient)}
}

func (s *recipientSet) put(r Recipient) {
	key := utils.NormalizeEmail(r.Email)
	if key == "" {
		return
	}
	r.Email = strings.TrimSpace(r.Email)
	if _, ok := s.byKey[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byKey[key] = r
}

func (s *recipientSet) values() []Recipient {
	out := make([]Recipient, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}
