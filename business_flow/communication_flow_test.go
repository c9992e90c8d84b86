package businessflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/app/dto"
	"github.com/rallyhq/rally/app/services"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminUserID  uint = 100
	coachUserID  uint = 101
	parentUserID uint = 102
)

type flowEnv struct {
	org        *models.Organization
	roster     *roster
	orgs       *fakeOrgRepo
	members    *fakeMemberRepo
	comms      *fakeCommRepo
	deliveries *fakeDeliveryRepo
	audits     *fakeAuditRepo
	provider   *services.MockEmailProvider
	channels   []DeliveryChannel
	locker     services.DispatchLocker
	dispatch   config.DispatchConfig
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	org := &models.Organization{ID: testOrgID, UUID: uuid.New(), Name: "Riverside FC", IsActive: true}
	env := &flowEnv{
		org:    org,
		roster: newRoster(),
		orgs:   &fakeOrgRepo{orgs: []*models.Organization{org}},
		members: &fakeMemberRepo{members: []*models.OrganizationMember{
			{OrganizationID: org.ID, UserID: adminUserID, Role: models.MemberRoleAdmin},
			{OrganizationID: org.ID, UserID: coachUserID, Role: models.MemberRoleCoach},
			{OrganizationID: org.ID, UserID: parentUserID, Role: models.MemberRoleParent},
		}},
		comms:      newFakeCommRepo(),
		deliveries: newFakeDeliveryRepo(),
		audits:     &fakeAuditRepo{},
		provider:   services.NewMockEmailProvider(),
		dispatch:   config.DispatchConfig{Concurrency: 3, LockTTL: time.Minute},
	}
	return env
}

// seedExample builds one team with a coach, a player with parent and player
// emails, and a player with no contact at all.
func (e *flowEnv) seedExample() {
	team := e.roster.addTeam(10)
	e.roster.addPlayer(1, &team.ID, "Sam", "Lee", utils.ToPtr("sam@example.com"), utils.ToPtr("Pat Lee"), utils.ToPtr("pat@example.com"))
	e.roster.addPlayer(2, &team.ID, "Alex", "Kim", nil, nil, nil)
	e.roster.addCoach(team.ID, "Coach Carter", utils.ToPtr("carter@example.com"))
}

func (e *flowEnv) flow(t *testing.T) *CommunicationFlowImpl {
	t.Helper()
	channels := e.channels
	if channels == nil {
		tmpl, err := services.NewEmailTemplate()
		require.NoError(t, err)
		channels = []DeliveryChannel{NewEmailChannel(e.provider, tmpl, e.deliveries, testEmailConfig, zap.NewNop())}
	}
	return NewCommunicationFlow(
		e.orgs,
		e.members,
		e.comms,
		e.deliveries,
		e.audits,
		fakeTxManager{},
		e.roster.resolver(),
		channels,
		e.locker,
		e.dispatch,
		zap.NewNop(),
	).(*CommunicationFlowImpl)
}

func (e *flowEnv) request() *dto.SendCommunicationRequest {
	return &dto.SendCommunicationRequest{
		OrganizationID: e.org.UUID.String(),
		Subject:        "Season kickoff",
		Content:        "Welcome back!\nFirst practice is Monday.",
		MessageType:    "announcement",
		Priority:       "normal",
		TargetAllOrg:   true,
	}
}

func (e *flowEnv) onlyCommunication(t *testing.T) models.Communication {
	t.Helper()
	require.Equal(t, 1, e.comms.count())
	return e.comms.get(1)
}

func TestSendCommunicationOrgWideExample(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	resp, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication sent successfully", resp.Message)
	assert.Equal(t, "sent", resp.Status)

	comm := env.onlyCommunication(t)
	assert.Equal(t, comm.UUID.String(), resp.CommunicationID)
	assert.Equal(t, models.CommunicationStatusSent, comm.Status)
	assert.Nil(t, comm.ErrorMessage)
	assert.Equal(t, adminUserID, comm.SenderID)

	rows := env.deliveries.all()
	require.Len(t, rows, 3)
	assert.Equal(t, 3, env.deliveries.countByStatus(models.DeliveryStatusSent))

	dispatchID := rows[0].DispatchID
	got := map[string]models.RecipientRole{}
	for _, r := range rows {
		assert.Equal(t, comm.ID, r.CommunicationID)
		assert.Equal(t, dispatchID, r.DispatchID)
		got[r.RecipientEmail] = r.RecipientRole
	}
	assert.Equal(t, map[string]models.RecipientRole{
		"pat@example.com":    models.RecipientRoleParent,
		"sam@example.com":    models.RecipientRolePlayer,
		"carter@example.com": models.RecipientRoleCoach,
	}, got)

	actions := env.audits.actions()
	assert.Contains(t, actions, models.AuditActionCommunicationCreated)
	assert.Contains(t, actions, models.AuditActionCommunicationStatusChanged)
}

func TestSendCommunicationZeroRecipients(t *testing.T) {
	env := newFlowEnv(t)
	env.roster.addPlayer(1, nil, "No", "Contact", nil, nil, nil)

	resp, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsNoRecipients(err))

	comm := env.onlyCommunication(t)
	assert.Equal(t, models.CommunicationStatusFailed, comm.Status)
	require.NotNil(t, comm.ErrorMessage)
	assert.Equal(t, "no recipients resolved", *comm.ErrorMessage)
	assert.Empty(t, env.deliveries.all())
	assert.Empty(t, env.provider.Sent())
}

func TestSendCommunicationUnconfiguredProvider(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.provider = services.NewUnconfiguredEmailProvider()

	resp, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", resp.Status)

	assert.Equal(t, models.CommunicationStatusSent, env.onlyCommunication(t).Status)
	assert.Empty(t, env.deliveries.all())
}

func TestSendCommunicationPartialProviderFailure(t *testing.T) {
	env := newFlowEnv(t)
	for i := 1; i <= 6; i++ {
		env.roster.addPlayer(uint(i), nil, "Player", string(rune('A'+i)), utils.ToPtr(playerEmail(i)), nil, nil)
	}
	env.provider.FailFor(playerEmail(2), errors.New("bounced"))
	env.provider.FailFor(playerEmail(5), errors.New("rejected"))

	_, err := env.flow(t).SendCommunication(context.Background(), env.request(), coachUserID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.CommunicationStatusSent, env.onlyCommunication(t).Status)
	assert.Len(t, env.deliveries.all(), 6)
	assert.Equal(t, 2, env.deliveries.countByStatus(models.DeliveryStatusFailed))
	assert.Equal(t, 4, env.deliveries.countByStatus(models.DeliveryStatusSent))
}

func playerEmail(i int) string {
	return "player" + string(rune('0'+i)) + "@example.com"
}

func TestSendCommunicationScheduled(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	req := env.request()
	req.ScheduledSendAt = utils.ToPtr(time.Now().Add(2 * time.Hour))

	resp, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Communication scheduled successfully", resp.Message)
	assert.Equal(t, "scheduled", resp.Status)

	comm := env.onlyCommunication(t)
	assert.Equal(t, models.CommunicationStatusScheduled, comm.Status)
	require.NotNil(t, comm.ScheduledSendAt)
	assert.Empty(t, env.deliveries.all())
	assert.Empty(t, env.provider.Sent())
}

func TestSendCommunicationPastScheduleSendsNow(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	req := env.request()
	req.ScheduledSendAt = utils.ToPtr(time.Now().Add(-time.Minute))

	resp, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", resp.Status)
	assert.Len(t, env.provider.Sent(), 3)
}

func TestSendCommunicationDefaults(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	req := env.request()
	req.MessageType = ""
	req.Priority = ""
	req.Subject = "  Padded subject  "
	req.TargetTeams = []string{env.roster.teams.teams[0].UUID.String()}
	req.SendSMS = true

	_, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
	require.NoError(t, err)

	comm := env.onlyCommunication(t)
	assert.Equal(t, models.MessageTypeAnnouncement, comm.MessageType)
	assert.Equal(t, models.PriorityNormal, comm.Priority)
	assert.Equal(t, "Padded subject", comm.Subject)
	assert.True(t, comm.SendEmail)
	assert.True(t, comm.SendSMS)
	assert.Equal(t, []string{req.TargetTeams[0]}, []string(comm.TargetTeams))
	// SMS is not available, so only email rows exist
	for _, d := range env.deliveries.all() {
		assert.Equal(t, models.DeliveryChannelEmail, d.Channel)
	}
}

func TestSendCommunicationEmailDisabled(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	req := env.request()
	req.SendEmail = utils.ToPtr(false)

	resp, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", resp.Status)
	assert.Empty(t, env.provider.Sent())
	assert.Empty(t, env.deliveries.all())
}

func TestSendCommunicationValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.SendCommunicationRequest)
		want   error
	}{
		{"empty subject", func(r *dto.SendCommunicationRequest) { r.Subject = "" }, ErrSubjectRequired},
		{"whitespace subject", func(r *dto.SendCommunicationRequest) { r.Subject = "   " }, ErrSubjectRequired},
		{"subject too long", func(r *dto.SendCommunicationRequest) { r.Subject = strings.Repeat("a", 501) }, ErrSubjectTooLong},
		{"empty content", func(r *dto.SendCommunicationRequest) { r.Content = " \n " }, ErrContentRequired},
		{"bad message type", func(r *dto.SendCommunicationRequest) { r.MessageType = "gossip" }, ErrInvalidMessageType},
		{"bad priority", func(r *dto.SendCommunicationRequest) { r.Priority = "critical" }, ErrInvalidPriority},
		{"bad team uuid", func(r *dto.SendCommunicationRequest) { r.TargetTeams = []string{"team-1"} }, ErrInvalidTargetUUID},
		{"bad player uuid", func(r *dto.SendCommunicationRequest) { r.TargetPlayers = []string{"x"} }, ErrInvalidTargetUUID},
		{"bad organization uuid", func(r *dto.SendCommunicationRequest) { r.OrganizationID = "org" }, ErrInvalidTargetUUID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFlowEnv(t)
			env.seedExample()
			req := env.request()
			tt.mutate(req)

			resp, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsCommunicationValidation(err))
			assert.ErrorIs(t, err, tt.want)

			var be *BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "COMMUNICATION_VALIDATION_FAILED", be.Code)

			assert.Zero(t, env.comms.count())
			assert.Empty(t, env.audits.actions())
		})
	}
}

func TestSendCommunicationSubjectAtLimit(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	req := env.request()
	req.Subject = strings.Repeat("é", utils.MaxSubjectLength)

	_, err := env.flow(t).SendCommunication(context.Background(), req, adminUserID, nil)
	require.NoError(t, err)
}

func TestSendCommunicationAccessDenied(t *testing.T) {
	tests := []struct {
		name   string
		userID uint
		setup  func(*flowEnv, *dto.SendCommunicationRequest)
	}{
		{"parent role", parentUserID, nil},
		{"not a member", 999, nil},
		{"unknown organization", adminUserID, func(e *flowEnv, r *dto.SendCommunicationRequest) { r.OrganizationID = uuid.NewString() }},
		{"inactive organization", adminUserID, func(e *flowEnv, r *dto.SendCommunicationRequest) { e.org.IsActive = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFlowEnv(t)
			env.seedExample()
			req := env.request()
			if tt.setup != nil {
				tt.setup(env, req)
			}

			_, err := env.flow(t).SendCommunication(context.Background(), req, tt.userID, nil)
			require.Error(t, err)
			assert.True(t, IsOrganizationAccessDenied(err))
			assert.Zero(t, env.comms.count())
			assert.Empty(t, env.provider.Sent())
			assert.Equal(t, []string{models.AuditActionCommunicationAccessDenied}, env.audits.actions())
		})
	}
}

func TestSendCommunicationPersistFailure(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.comms.saveErr = errFakeDB

	_, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.Error(t, err)
	assert.True(t, IsCommunicationPersistFailed(err))
	assert.ErrorIs(t, err, errFakeDB)
	assert.Empty(t, env.provider.Sent())
	assert.Contains(t, env.audits.actions(), models.AuditActionCommunicationCreateFailed)
}

func TestSendCommunicationStatusUpdateFailure(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.comms.updateErr = errFakeDB

	_, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.Error(t, err)
	assert.True(t, IsStatusUpdateFailed(err))
	// Marking failed also fails; the row is left for the stale sweep
	assert.Equal(t, models.CommunicationStatusProcessing, env.onlyCommunication(t).Status)
	assert.Empty(t, env.provider.Sent())
}

func TestSendCommunicationBookkeepingErrorsDoNotAbort(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.deliveries.appendErr = errFakeDB

	resp, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", resp.Status)
	assert.Len(t, env.provider.Sent(), 3)
	assert.Empty(t, env.deliveries.all())
}

type panickingChannel struct{}

func (panickingChannel) Name() models.DeliveryChannel { return models.DeliveryChannelEmail }

func (panickingChannel) Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error) {
	panic("template exploded")
}

func TestSendCommunicationPanicMarksFailed(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.channels = []DeliveryChannel{panickingChannel{}}

	_, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatchPanicked)

	comm := env.onlyCommunication(t)
	assert.Equal(t, models.CommunicationStatusFailed, comm.Status)
	require.NotNil(t, comm.ErrorMessage)
	assert.Contains(t, *comm.ErrorMessage, "template exploded")
}

// countingChannel records the peak number of concurrent deliveries
type countingChannel struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (c *countingChannel) Name() models.DeliveryChannel { return models.DeliveryChannelEmail }

func (c *countingChannel) Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return nil, nil
}

func TestDispatchRespectsConcurrencyLimit(t *testing.T) {
	env := newFlowEnv(t)
	for i := 1; i <= 9; i++ {
		env.roster.addPlayer(uint(i), nil, "P", "X", utils.ToPtr(playerEmail(i)), nil, nil)
	}
	ch := &countingChannel{}
	env.channels = []DeliveryChannel{ch}
	env.dispatch.Concurrency = 2

	_, err := env.flow(t).SendCommunication(context.Background(), env.request(), adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(9), ch.calls.Load())
	assert.LessOrEqual(t, ch.peak, 2)
}

func TestDispatchScheduled(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	comm := env.comms.put(models.Communication{
		OrganizationID:  env.org.ID,
		SenderID:        adminUserID,
		Subject:         "Later",
		Content:         "Body",
		MessageType:     models.MessageTypeReminder,
		Priority:        models.PriorityLow,
		TargetAllOrg:    true,
		SendEmail:       true,
		ScheduledSendAt: utils.ToPtr(time.Now().Add(-time.Minute)),
		Status:          models.CommunicationStatusScheduled,
	})

	flow := env.flow(t)
	require.NoError(t, flow.DispatchScheduled(context.Background(), comm.ID))
	assert.Equal(t, models.CommunicationStatusSent, env.comms.get(comm.ID).Status)
	assert.Len(t, env.deliveries.all(), 3)

	// A second run finds the communication already sent
	err := flow.DispatchScheduled(context.Background(), comm.ID)
	assert.True(t, IsInvalidStatusTransition(err))
	assert.Len(t, env.deliveries.all(), 3)
}

// cancellingChannel cancels the caller's context on its first delivery, the
// way a scheduler shutdown lands in the middle of a fan-out
type cancellingChannel struct {
	cancel context.CancelFunc
	calls  atomic.Int32
	seen   []time.Time
	mu     sync.Mutex
}

func (c *cancellingChannel) Name() models.DeliveryChannel { return models.DeliveryChannelEmail }

func (c *cancellingChannel) Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error) {
	c.calls.Add(1)
	c.mu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.seen = append(c.seen, deadline)
	}
	c.mu.Unlock()
	c.cancel()
	return nil, ctx.Err()
}

func TestDispatchScheduledShutdownLeavesCommunicationResumable(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.dispatch.Concurrency = 1
	comm := env.comms.put(models.Communication{
		OrganizationID:  env.org.ID,
		SenderID:        adminUserID,
		Subject:         "Later",
		Content:         "Body",
		MessageType:     models.MessageTypeReminder,
		Priority:        models.PriorityNormal,
		TargetAllOrg:    true,
		SendEmail:       true,
		ScheduledSendAt: utils.ToPtr(time.Now().Add(-time.Minute)),
		Status:          models.CommunicationStatusScheduled,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := &cancellingChannel{cancel: cancel}
	env.channels = []DeliveryChannel{ch}

	err := env.flow(t).DispatchScheduled(ctx, comm.ID)
	require.Error(t, err)
	assert.True(t, IsDispatchInterrupted(err))
	assert.Equal(t, int32(1), ch.calls.Load())

	stored := env.comms.get(comm.ID)
	assert.Equal(t, models.CommunicationStatusSending, stored.Status)
	assert.Nil(t, stored.ErrorMessage)
	assert.Empty(t, env.deliveries.all())

	// The next scheduler run picks it up and finishes every recipient
	env.channels = nil
	require.NoError(t, env.flow(t).ResumeDispatch(context.Background(), comm.ID))
	assert.Equal(t, models.CommunicationStatusSent, env.comms.get(comm.ID).Status)
	assert.Len(t, env.provider.Sent(), 3)
	assert.Equal(t, 3, env.deliveries.countByStatus(models.DeliveryStatusSent))
}

func TestSendCommunicationDispatchKeepsDeadlineNotCancellation(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()

	deadline := time.Now().Add(time.Minute)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	ch := &cancellingChannel{cancel: cancel}
	env.channels = []DeliveryChannel{ch}

	resp, err := env.flow(t).SendCommunication(ctx, env.request(), adminUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", resp.Status)
	assert.Equal(t, int32(3), ch.calls.Load())

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.seen, 3)
	for _, d := range ch.seen {
		assert.True(t, d.Equal(deadline))
	}
}

// blockingChannel holds each delivery until its context ends
type blockingChannel struct{}

func (blockingChannel) Name() models.DeliveryChannel { return models.DeliveryChannelEmail }

func (blockingChannel) Deliver(ctx context.Context, job DeliveryJob) (*models.CommunicationDelivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSendCommunicationDeadlineLeavesCommunicationResumable(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.dispatch.Concurrency = 1
	env.channels = []DeliveryChannel{blockingChannel{}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resp, err := env.flow(t).SendCommunication(ctx, env.request(), adminUserID, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "sending", resp.Status)

	comm := env.onlyCommunication(t)
	assert.Equal(t, models.CommunicationStatusSending, comm.Status)
	assert.Nil(t, comm.ErrorMessage)
}

func TestDispatchScheduledNotFound(t *testing.T) {
	env := newFlowEnv(t)
	err := env.flow(t).DispatchScheduled(context.Background(), 42)
	assert.True(t, IsCommunicationNotFound(err))
}

func TestResumeDispatchSkipsAttemptedRecipients(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	comm := env.comms.put(models.Communication{
		OrganizationID: env.org.ID,
		SenderID:       adminUserID,
		Subject:        "Crashed",
		Content:        "Body",
		MessageType:    models.MessageTypeAnnouncement,
		Priority:       models.PriorityNormal,
		TargetAllOrg:   true,
		SendEmail:      true,
		Status:         models.CommunicationStatusSending,
	})
	previous := uuid.New()
	require.NoError(t, env.deliveries.Append(context.Background(), &models.CommunicationDelivery{
		CommunicationID: comm.ID,
		DispatchID:      previous,
		Channel:         models.DeliveryChannelEmail,
		RecipientEmail:  "pat@example.com",
		RecipientRole:   models.RecipientRoleParent,
		Status:          models.DeliveryStatusSent,
	}))

	require.NoError(t, env.flow(t).ResumeDispatch(context.Background(), comm.ID))
	assert.Equal(t, models.CommunicationStatusSent, env.comms.get(comm.ID).Status)

	sent := env.provider.Sent()
	require.Len(t, sent, 2)
	for _, m := range sent {
		assert.NotEqual(t, "pat@example.com", m.To)
	}

	rows := env.deliveries.all()
	require.Len(t, rows, 3)
	assert.Equal(t, previous, rows[0].DispatchID)
	assert.NotEqual(t, previous, rows[1].DispatchID)
	assert.Equal(t, rows[1].DispatchID, rows[2].DispatchID)
}

func TestResumeDispatchFromProcessing(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	comm := env.comms.put(models.Communication{
		OrganizationID: env.org.ID,
		SenderID:       adminUserID,
		Subject:        "Stuck",
		Content:        "Body",
		MessageType:    models.MessageTypeAnnouncement,
		Priority:       models.PriorityNormal,
		TargetAllOrg:   true,
		SendEmail:      true,
		Status:         models.CommunicationStatusProcessing,
	})

	require.NoError(t, env.flow(t).ResumeDispatch(context.Background(), comm.ID))
	assert.Equal(t, models.CommunicationStatusSent, env.comms.get(comm.ID).Status)
	assert.Len(t, env.deliveries.all(), 3)
}

func TestResumeDispatchRejectsOtherStatuses(t *testing.T) {
	for _, status := range []models.CommunicationStatus{models.CommunicationStatusSent, models.CommunicationStatusFailed, models.CommunicationStatusScheduled} {
		t.Run(status.String(), func(t *testing.T) {
			env := newFlowEnv(t)
			comm := env.comms.put(models.Communication{OrganizationID: env.org.ID, Status: status})

			err := env.flow(t).ResumeDispatch(context.Background(), comm.ID)
			assert.True(t, IsInvalidStatusTransition(err))
			assert.Equal(t, status, env.comms.get(comm.ID).Status)
		})
	}
}

func TestResumeDispatchLockHeld(t *testing.T) {
	env := newFlowEnv(t)
	env.seedExample()
	env.locker = heldLocker{}
	comm := env.comms.put(models.Communication{
		OrganizationID: env.org.ID,
		TargetAllOrg:   true,
		SendEmail:      true,
		Status:         models.CommunicationStatusSending,
	})

	err := env.flow(t).ResumeDispatch(context.Background(), comm.ID)
	assert.True(t, IsDispatchInProgress(err))
	assert.Equal(t, models.CommunicationStatusSending, env.comms.get(comm.ID).Status)
	assert.Empty(t, env.provider.Sent())
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	env := newFlowEnv(t)
	flow := env.flow(t)
	comm := env.comms.put(models.Communication{OrganizationID: env.org.ID, Status: models.CommunicationStatusSent})

	err := flow.transition(context.Background(), comm, []models.CommunicationStatus{models.CommunicationStatusSent}, models.CommunicationStatusSending, nil)
	assert.True(t, IsInvalidStatusTransition(err))

	// Allowed by the state machine but the stored row is not in the expected state
	err = flow.transition(context.Background(), comm, []models.CommunicationStatus{models.CommunicationStatusProcessing}, models.CommunicationStatusSending, nil)
	assert.True(t, IsInvalidStatusTransition(err))
	assert.Equal(t, models.CommunicationStatusSent, env.comms.get(comm.ID).Status)
}
