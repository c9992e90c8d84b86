package businessflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOrgID uint = 1

type roster struct {
	teams   *fakeTeamRepo
	players *fakePlayerRepo
	coaches *fakeCoachRepo
}

func newRoster() *roster {
	return &roster{
		teams:   &fakeTeamRepo{},
		players: &fakePlayerRepo{},
		coaches: &fakeCoachRepo{},
	}
}

func (r *roster) resolver() RecipientResolver {
	return NewRecipientResolver(r.teams, r.players, r.coaches, zap.NewNop())
}

func (r *roster) addTeam(id uint) *models.Team {
	t := &models.Team{ID: id, UUID: uuid.New(), OrganizationID: testOrgID, Name: "Team", IsActive: true}
	r.teams.teams = append(r.teams.teams, t)
	return t
}

func (r *roster) addPlayer(id uint, teamID *uint, first, last string, email, parentName, parentEmail *string) *models.Player {
	p := &models.Player{
		ID:             id,
		UUID:           uuid.New(),
		OrganizationID: testOrgID,
		TeamID:         teamID,
		FirstName:      first,
		LastName:       last,
		Email:          email,
		ParentName:     parentName,
		ParentEmail:    parentEmail,
		IsActive:       true,
	}
	r.players.players = append(r.players.players, p)
	return p
}

func (r *roster) addCoach(teamID uint, name string, email *string) *models.Coach {
	c := &models.Coach{ID: uint(len(r.coaches.coaches) + 1), UUID: uuid.New(), OrganizationID: testOrgID, TeamID: teamID, Name: name, Email: email}
	r.coaches.coaches = append(r.coaches.coaches, c)
	return c
}

func emails(rs []Recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Email)
	}
	return out
}

func TestResolveOrgWideExample(t *testing.T) {
	r := newRoster()
	team := r.addTeam(10)
	r.addPlayer(1, &team.ID, "Sam", "Lee", utils.ToPtr("sam@example.com"), utils.ToPtr("Pat Lee"), utils.ToPtr("pat@example.com"))
	r.addPlayer(2, &team.ID, "Alex", "Kim", nil, nil, nil)
	r.addCoach(team.ID, "Coach Carter", utils.ToPtr("carter@example.com"))

	recipients, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
	require.NoError(t, err)
	require.Len(t, recipients, 3)

	assert.Equal(t, []string{"pat@example.com", "sam@example.com", "carter@example.com"}, emails(recipients))
	assert.Equal(t, models.RecipientRoleParent, recipients[0].Role)
	assert.Equal(t, "Pat Lee", recipients[0].Name)
	require.NotNil(t, recipients[0].PlayerID)
	assert.Equal(t, uint(1), *recipients[0].PlayerID)
	assert.Equal(t, models.RecipientRolePlayer, recipients[1].Role)
	assert.Equal(t, "Sam Lee", recipients[1].Name)
	assert.Equal(t, models.RecipientRoleCoach, recipients[2].Role)
	assert.Nil(t, recipients[2].PlayerID)
}

func TestResolvePlayerCandidates(t *testing.T) {
	tests := []struct {
		name        string
		email       *string
		parentName  *string
		parentEmail *string
		want        []Recipient
	}{
		{
			name:        "parent and player",
			email:       utils.ToPtr("kid@example.com"),
			parentEmail: utils.ToPtr("mom@example.com"),
			want: []Recipient{
				{Email: "mom@example.com", Name: "Parent of Jo Park", Role: models.RecipientRoleParent},
				{Email: "kid@example.com", Name: "Jo Park", Role: models.RecipientRolePlayer},
			},
		},
		{
			name:        "parent only with name",
			parentName:  utils.ToPtr("Chris Park"),
			parentEmail: utils.ToPtr("chris@example.com"),
			want: []Recipient{
				{Email: "chris@example.com", Name: "Chris Park", Role: models.RecipientRoleParent},
			},
		},
		{
			name:  "player only",
			email: utils.ToPtr("kid@example.com"),
			want: []Recipient{
				{Email: "kid@example.com", Name: "Jo Park", Role: models.RecipientRolePlayer},
			},
		},
		{
			name: "no contact",
		},
		{
			name:        "whitespace emails are ignored",
			email:       utils.ToPtr("   "),
			parentEmail: utils.ToPtr("\t"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoster()
			r.addPlayer(1, nil, "Jo", "Park", tt.email, tt.parentName, tt.parentEmail)

			got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.Email, got[i].Email)
				assert.Equal(t, want.Name, got[i].Name)
				assert.Equal(t, want.Role, got[i].Role)
			}
		})
	}
}

func TestResolveDeduplicatesByNormalizedEmail(t *testing.T) {
	r := newRoster()
	team := r.addTeam(10)
	// Sibling players share a parent address with different casing
	r.addPlayer(1, &team.ID, "Ann", "Ray", nil, utils.ToPtr("Dana Ray"), utils.ToPtr("Dana@Example.com"))
	r.addPlayer(2, &team.ID, "Ben", "Ray", utils.ToPtr("ben@example.com"), utils.ToPtr("Dana Ray"), utils.ToPtr(" dana@example.com "))
	// The parent also coaches the team
	r.addCoach(team.ID, "Coach Dana", utils.ToPtr("DANA@example.com"))

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// First position is kept, last write wins
	assert.Equal(t, "DANA@example.com", got[0].Email)
	assert.Equal(t, models.RecipientRoleCoach, got[0].Role)
	assert.Equal(t, "Coach Dana", got[0].Name)
	assert.Equal(t, "ben@example.com", got[1].Email)

	seen := map[string]bool{}
	for _, rcpt := range got {
		key := utils.NormalizeEmail(rcpt.Email)
		assert.False(t, seen[key], "duplicate recipient %s", key)
		seen[key] = true
	}
}

func TestResolveOrgWideWithoutTeams(t *testing.T) {
	r := newRoster()
	r.addPlayer(1, nil, "Solo", "Runner", utils.ToPtr("solo@example.com"), nil, nil)

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"solo@example.com"}, emails(got))
	assert.Zero(t, r.coaches.calls, "coach query must be skipped without teams")
}

func TestResolveTeamScoped(t *testing.T) {
	r := newRoster()
	t1 := r.addTeam(10)
	t2 := r.addTeam(20)
	r.addPlayer(1, &t1.ID, "A", "One", utils.ToPtr("a@example.com"), nil, nil)
	r.addPlayer(2, &t2.ID, "B", "Two", utils.ToPtr("b@example.com"), nil, nil)
	r.addCoach(t1.ID, "Coach One", utils.ToPtr("c1@example.com"))
	r.addCoach(t2.ID, "Coach Two", utils.ToPtr("c2@example.com"))

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{TeamUUIDs: []uuid.UUID{t1.UUID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "c1@example.com"}, emails(got))
	assert.Equal(t, []uint{t1.ID}, r.players.lastTeamIn)
}

func TestResolveForeignTeamsShortCircuit(t *testing.T) {
	r := newRoster()
	r.addTeam(10)

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{TeamUUIDs: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, r.players.teamCalls)
	assert.Zero(t, r.coaches.calls)
}

func TestResolveTargetedPlayersOrdering(t *testing.T) {
	r := newRoster()
	t1 := r.addTeam(10)
	r.addPlayer(1, &t1.ID, "Team", "Player", utils.ToPtr("team@example.com"), nil, nil)
	extra := r.addPlayer(2, nil, "Extra", "Player", utils.ToPtr("extra@example.com"), nil, nil)
	r.addCoach(t1.ID, "Coach", utils.ToPtr("coach@example.com"))

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{
		TeamUUIDs:   []uuid.UUID{t1.UUID},
		PlayerUUIDs: []uuid.UUID{extra.UUID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"team@example.com", "extra@example.com", "coach@example.com"}, emails(got))
}

func TestResolveGroupsContributeNothing(t *testing.T) {
	r := newRoster()
	r.addPlayer(1, nil, "A", "B", utils.ToPtr("a@example.com"), nil, nil)

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{GroupUUIDs: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveSourceErrorsAreIsolated(t *testing.T) {
	r := newRoster()
	team := r.addTeam(10)
	r.addPlayer(1, &team.ID, "A", "B", utils.ToPtr("a@example.com"), nil, nil)
	r.addCoach(team.ID, "Coach", utils.ToPtr("coach@example.com"))
	r.players.orgErr = errFakeDB

	got, err := r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"coach@example.com"}, emails(got))

	r.players.orgErr = nil
	r.teams.err = errFakeDB
	got, err = r.resolver().Resolve(context.Background(), testOrgID, TargetingConfig{AllOrg: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, emails(got))
}

func TestResolveCancelledContext(t *testing.T) {
	r := newRoster()
	r.addPlayer(1, nil, "A", "B", utils.ToPtr("a@example.com"), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.resolver().Resolve(ctx, testOrgID, TargetingConfig{AllOrg: true})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTargetingFromCommunication(t *testing.T) {
	team := uuid.New()
	player := uuid.New()
	c := &models.Communication{
		TargetAllOrg:  true,
		TargetTeams:   []string{team.String(), "not-a-uuid"},
		TargetPlayers: []string{player.String()},
	}

	got := TargetingFromCommunication(c)
	assert.True(t, got.AllOrg)
	assert.Equal(t, []uuid.UUID{team}, got.TeamUUIDs)
	assert.Empty(t, got.GroupUUIDs)
	assert.Equal(t, []uuid.UUID{player}, got.PlayerUUIDs)
}
