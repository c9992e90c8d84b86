package testing

import (
	"fmt"
	"math/rand"

	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates an active organization with a unique subdomain
func (tf *TestFixtures) CreateTestOrganization(name string) (*models.Organization, error) {
	org := &models.Organization{
		Name:         name,
		Subdomain:    fmt.Sprintf("org-%06d", rand.Intn(1000000)),
		ContactEmail: utils.ToPtr("office@example.com"),
		IsActive:     true,
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// AddMember grants a user a role in the organization
func (tf *TestFixtures) AddMember(orgID, userID uint, role models.MemberRole) (*models.OrganizationMember, error) {
	m := &models.OrganizationMember{OrganizationID: orgID, UserID: userID, Role: role}
	if err := tf.DB.DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return m, nil
}

// CreateTestTeam creates an active team
func (tf *TestFixtures) CreateTestTeam(orgID uint, name string) (*models.Team, error) {
	team := &models.Team{OrganizationID: orgID, Name: name, IsActive: true}
	if err := tf.DB.DB.Create(team).Error; err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// CreateTestPlayer creates an active player. Empty emails are stored as NULL.
func (tf *TestFixtures) CreateTestPlayer(orgID uint, teamID *uint, first, last, email, parentEmail string) (*models.Player, error) {
	player := &models.Player{
		OrganizationID: orgID,
		TeamID:         teamID,
		FirstName:      first,
		LastName:       last,
		IsActive:       true,
	}
	if email != "" {
		player.Email = utils.ToPtr(email)
	}
	if parentEmail != "" {
		player.ParentEmail = utils.ToPtr(parentEmail)
	}
	if err := tf.DB.DB.Create(player).Error; err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return player, nil
}

// CreateTestCoach creates a coach attached to a team
func (tf *TestFixtures) CreateTestCoach(orgID, teamID uint, name, email string) (*models.Coach, error) {
	coach := &models.Coach{OrganizationID: orgID, TeamID: teamID, Name: name}
	if email != "" {
		coach.Email = utils.ToPtr(email)
	}
	if err := tf.DB.DB.Create(coach).Error; err != nil {
		return nil, fmt.Errorf("failed to create coach: %w", err)
	}
	return coach, nil
}

// CreateExampleRoster builds one team with one coach and two players: one
// with both a parent and a player email, one with neither
func (tf *TestFixtures) CreateExampleRoster(orgID uint) (*models.Team, error) {
	team, err := tf.CreateTestTeam(orgID, "U12 Lions")
	if err != nil {
		return nil, err
	}
	if _, err := tf.CreateTestPlayer(orgID, &team.ID, "Sam", "Lee", "sam@example.com", "pat@example.com"); err != nil {
		return nil, err
	}
	if _, err := tf.CreateTestPlayer(orgID, &team.ID, "Alex", "Kim", "", ""); err != nil {
		return nil, err
	}
	if _, err := tf.CreateTestCoach(orgID, team.ID, "Coach Carter", "carter@example.com"); err != nil {
		return nil, err
	}
	return team, nil
}
