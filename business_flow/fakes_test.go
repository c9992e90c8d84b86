package businessflow

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhq/rally/app/services"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/utils"
)

var errFakeDB = errors.New("fake database error")

type fakeOrgRepo struct {
	orgs []*models.Organization
	err  error
}

func (r *fakeOrgRepo) ByID(ctx context.Context, id uint) (*models.Organization, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, o := range r.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (r *fakeOrgRepo) ByUUID(ctx context.Context, id string) (*models.Organization, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, o := range r.orgs {
		if o.UUID.String() == id {
			return o, nil
		}
	}
	return nil, nil
}

type fakeMemberRepo struct {
	members []*models.OrganizationMember
}

func (r *fakeMemberRepo) ByOrganizationAndUser(ctx context.Context, organizationID, userID uint) (*models.OrganizationMember, error) {
	for _, m := range r.members {
		if m.OrganizationID == organizationID && m.UserID == userID {
			return m, nil
		}
	}
	return nil, nil
}

type fakeTeamRepo struct {
	teams []*models.Team
	err   error
	calls int
}

func (r *fakeTeamRepo) ListByOrganization(ctx context.Context, organizationID uint) ([]*models.Team, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.Team
	for _, t := range r.teams {
		if t.OrganizationID == organizationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) ListByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Team, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.Team
	for _, t := range r.teams {
		if t.OrganizationID == organizationID && slices.Contains(uuids, t.UUID) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePlayerRepo struct {
	players    []*models.Player
	orgErr     error
	teamErr    error
	uuidErr    error
	teamCalls  int
	uuidCalls  int
	orgCalls   int
	lastTeamIn []uint
}

func (r *fakePlayerRepo) ListActiveByOrganization(ctx context.Context, organizationID uint) ([]*models.Player, error) {
	r.orgCalls++
	if r.orgErr != nil {
		return nil, r.orgErr
	}
	var out []*models.Player
	for _, p := range r.players {
		if p.OrganizationID == organizationID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) ListActiveByTeams(ctx context.Context, organizationID uint, teamIDs []uint) ([]*models.Player, error) {
	r.teamCalls++
	r.lastTeamIn = teamIDs
	if r.teamErr != nil {
		return nil, r.teamErr
	}
	var out []*models.Player
	for _, p := range r.players {
		if p.OrganizationID == organizationID && p.IsActive && p.TeamID != nil && slices.Contains(teamIDs, *p.TeamID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) ListActiveByUUIDs(ctx context.Context, organizationID uint, uuids []uuid.UUID) ([]*models.Player, error) {
	r.uuidCalls++
	if r.uuidErr != nil {
		return nil, r.uuidErr
	}
	var out []*models.Player
	for _, p := range r.players {
		if p.OrganizationID == organizationID && p.IsActive && slices.Contains(uuids, p.UUID) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCoachRepo struct {
	coaches []*models.Coach
	err     error
	calls   int
}

func (r *fakeCoachRepo) ListByTeams(ctx context.Context, teamIDs []uint) ([]*models.Coach, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.Coach
	for _, c := range r.coaches {
		if slices.Contains(teamIDs, c.TeamID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeCommRepo stores copies so callers observe only what was persisted
type fakeCommRepo struct {
	mu        sync.Mutex
	rows      map[uint]models.Communication
	nextID    uint
	saveErr   error
	updateErr error
}

func newFakeCommRepo() *fakeCommRepo {
	return &fakeCommRepo{rows: make(map[uint]models.Communication)}
}

func (r *fakeCommRepo) put(c models.Communication) *models.Communication {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	r.rows[c.ID] = c
	return &c
}

func (r *fakeCommRepo) get(id uint) models.Communication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *fakeCommRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeCommRepo) ByID(ctx context.Context, id uint) (*models.Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *fakeCommRepo) ByUUID(ctx context.Context, id string) (*models.Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.UUID.String() == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeCommRepo) ByFilter(ctx context.Context, filter models.CommunicationFilter, orderBy string, limit, offset int) ([]*models.Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Communication
	for _, c := range r.rows {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.OrganizationID != nil && c.OrganizationID != *filter.OrganizationID {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeCommRepo) Save(ctx context.Context, c *models.Communication) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CommunicationStatusProcessing
	}
	c.CreatedAt = utils.UTCNow()
	c.UpdatedAt = c.CreatedAt
	r.rows[c.ID] = *c
	return nil
}

func (r *fakeCommRepo) Count(ctx context.Context, filter models.CommunicationFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCommRepo) Exists(ctx context.Context, filter models.CommunicationFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeCommRepo) UpdateStatus(ctx context.Context, id uint, from []models.CommunicationStatus, to models.CommunicationStatus, errorMessage *string) (bool, error) {
	if r.updateErr != nil {
		return false, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	c.ErrorMessage = errorMessage
	c.UpdatedAt = utils.UTCNow()
	r.rows[id] = c
	return true, nil
}

func (r *fakeCommRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Communication
	for _, c := range r.rows {
		if c.Status == models.CommunicationStatusScheduled && c.ScheduledSendAt != nil && !c.ScheduledSendAt.After(now) {
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeCommRepo) ListStale(ctx context.Context, statuses []models.CommunicationStatus, updatedBefore time.Time, limit int) ([]*models.Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Communication
	for _, c := range r.rows {
		if slices.Contains(statuses, c.Status) && c.UpdatedAt.Before(updatedBefore) {
			out = append(out, &c)
		}
	}
	return out, nil
}

type deliveryKey struct {
	communicationID uint
	dispatchID      uuid.UUID
	channel         models.DeliveryChannel
	email           string
}

type fakeDeliveryRepo struct {
	mu        sync.Mutex
	rows      []models.CommunicationDelivery
	keys      map[deliveryKey]struct{}
	appendErr error
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{keys: make(map[deliveryKey]struct{})}
}

func (r *fakeDeliveryRepo) all() []models.CommunicationDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CommunicationDelivery(nil), r.rows...)
}

func (r *fakeDeliveryRepo) countByStatus(status models.DeliveryStatus) int {
	n := 0
	for _, d := range r.all() {
		if d.Status == status {
			n++
		}
	}
	return n
}

func (r *fakeDeliveryRepo) Append(ctx context.Context, d *models.CommunicationDelivery) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deliveryKey{d.CommunicationID, d.DispatchID, d.Channel, d.RecipientEmail}
	if _, dup := r.keys[key]; dup {
		return nil
	}
	r.keys[key] = struct{}{}
	d.ID = uint(len(r.rows) + 1)
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	d.CreatedAt = utils.UTCNow()
	r.rows = append(r.rows, *d)
	return nil
}

func (r *fakeDeliveryRepo) AttemptedEmails(ctx context.Context, communicationID uint, channel models.DeliveryChannel) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range r.all() {
		if d.CommunicationID != communicationID || d.Channel != channel {
			continue
		}
		if _, ok := seen[d.RecipientEmail]; !ok {
			seen[d.RecipientEmail] = struct{}{}
			out = append(out, d.RecipientEmail)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) StatsByCommunication(ctx context.Context, communicationID uint) ([]models.DeliveryStat, error) {
	counts := make(map[[2]string]int64)
	for _, d := range r.all() {
		if d.CommunicationID == communicationID {
			counts[[2]string{string(d.Channel), string(d.Status)}]++
		}
	}
	var out []models.DeliveryStat
	for k, v := range counts {
		out = append(out, models.DeliveryStat{
			Channel: models.DeliveryChannel(k[0]),
			Status:  models.DeliveryStatus(k[1]),
			Count:   v,
		})
	}
	return out, nil
}

func (r *fakeDeliveryRepo) match(d models.CommunicationDelivery, f models.CommunicationDeliveryFilter) bool {
	if f.CommunicationID != nil && d.CommunicationID != *f.CommunicationID {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Channel != nil && d.Channel != *f.Channel {
		return false
	}
	return true
}

func (r *fakeDeliveryRepo) ByFilter(ctx context.Context, filter models.CommunicationDeliveryFilter, orderBy string, limit, offset int) ([]*models.CommunicationDelivery, error) {
	var out []*models.CommunicationDelivery
	for _, d := range r.all() {
		if r.match(d, filter) {
			out = append(out, &d)
		}
	}
	if orderBy == "id DESC" {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDeliveryRepo) ByID(ctx context.Context, id uint) (*models.CommunicationDelivery, error) {
	for _, d := range r.all() {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *fakeDeliveryRepo) Save(ctx context.Context, d *models.CommunicationDelivery) error {
	return r.Append(ctx, d)
}

func (r *fakeDeliveryRepo) Count(ctx context.Context, filter models.CommunicationDeliveryFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeDeliveryRepo) Exists(ctx context.Context, filter models.CommunicationDeliveryFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *fakeAuditRepo) Save(ctx context.Context, a *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, a)
	return nil
}

func (r *fakeAuditRepo) ListByOrganization(ctx context.Context, organizationID uint, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, a := range r.logs {
		if a.OrganizationID != nil && *a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, a := range r.logs {
		out = append(out, a.Action)
	}
	return out
}

// fakeTxManager runs the unit of work inline and, like a real transaction,
// refuses to start once ctx is done
type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// heldLocker reports every lock as taken
type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	return nil, services.ErrLockHeld
}
