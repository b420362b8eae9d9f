package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"inviteflow/core/config"
	"inviteflow/core/constants"
	coreEntity "inviteflow/core/entity"
	"inviteflow/core/errors"
	"inviteflow/core/params"
	bookingEntity "inviteflow/modules/booking/entity"
	"inviteflow/modules/campaign/entity"
	inboxEntity "inviteflow/modules/inbox/entity"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Friday, so the default lead window lands on the following business week.
var friday = time.Date(2026, 8, 21, 15, 0, 0, 0, time.UTC)

func testSettings() scheduleEntity.SchedulingSettings {
	return scheduleEntity.SchedulingSettings{
		MinLeadTimeDays:      2,
		MaxLeadTimeDays:      6,
		PreferredStartHour:   9,
		PreferredEndHour:     17,
		ExcludeWeekends:      true,
		AllowDoubleBooking:   false,
		FallbackPolicy:       constants.FallbackSkip,
		CooldownMinutes:      20,
		MaxErrorsBeforePause: 3,
		HealthThreshold:      40,
	}
}

// setTestConfig installs a process config matching testSettings so base
// settings resolution works without a loaded environment.
func setTestConfig() {
	config.Set(&config.Config{
		Server: config.ServerConfig{Port: constants.ServerDefaultPort},
		Scheduling: config.SchedulingConfig{
			MinLeadDays:          2,
			MaxLeadDays:          6,
			StartHour:            9,
			EndHour:              17,
			CooldownMinutes:      20,
			MaxConsecutiveErrors: 3,
			HealthThreshold:      40,
			DailyQuota:           50,
			ExcludeWeekends:      true,
			FallbackPolicy:       constants.FallbackSkip,
		},
	})
}

func testInbox(seq byte, email string, quota int) inboxEntity.Inbox {
	return inboxEntity.Inbox{
		BaseEntity:   coreEntity.BaseEntity{ID: uuid.UUID{15: seq}},
		Email:        email,
		ProviderKind: inboxEntity.ProviderAppPassword,
		Active:       true,
		DailyQuota:   quota,
		HealthScore:  constants.HealthMax,
	}
}

// fakeCampaignRepo keeps campaigns and prospects in memory.
type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*entity.Campaign
	prospects map[uuid.UUID]*entity.Prospect
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: make(map[uuid.UUID]*entity.Campaign),
		prospects: make(map[uuid.UUID]*entity.Prospect),
	}
}

func (r *fakeCampaignRepo) seedCampaign(c entity.Campaign) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.campaigns[c.ID] = &c
	return c.ID
}

func (r *fakeCampaignRepo) seedProspect(p entity.Prospect) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = entity.ProspectStatusPending
	}
	r.prospects[p.ID] = &p
	return p.ID
}

func (r *fakeCampaignRepo) prospect(id uuid.UUID) entity.Prospect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.prospects[id]
}

func (r *fakeCampaignRepo) Create(_ context.Context, campaign *entity.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	stored := *campaign
	r.campaigns[campaign.ID] = &stored
	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) GetByRef(_ context.Context, ref string) (*entity.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.Ref == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeCampaignRepo) List(_ context.Context, p params.QueryParams) (*entity.PaginatedCampaignEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []entity.Campaign
	for _, c := range r.campaigns {
		if p.Search == "" || strings.Contains(c.Name, p.Search) || strings.Contains(c.Ref, p.Search) {
			items = append(items, *c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return &entity.PaginatedCampaignEntity{
		Items:      items,
		TotalItems: len(items),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.CampaignStatus, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func (r *fakeCampaignRepo) AddProspects(_ context.Context, prospects []entity.Prospect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range prospects {
		p := prospects[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		r.prospects[p.ID] = &p
	}
	return nil
}

func (r *fakeCampaignRepo) GetProspect(_ context.Context, id uuid.UUID) (*entity.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r *fakeCampaignRepo) ListProspects(_ context.Context, campaignID uuid.UUID, p params.QueryParams) (*entity.PaginatedProspectEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []entity.Prospect
	for _, pr := range r.prospects {
		if pr.CampaignID == campaignID {
			items = append(items, *pr)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return &entity.PaginatedProspectEntity{
		Items:      items,
		TotalItems: len(items),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (r *fakeCampaignRepo) ListPendingProspects(_ context.Context, campaignID uuid.UUID) ([]entity.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []entity.Prospect
	for _, p := range r.prospects {
		if p.CampaignID == campaignID && p.Status == entity.ProspectStatusPending {
			items = append(items, *p)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items, nil
}

func (r *fakeCampaignRepo) MarkProspectAttempt(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.AttemptCount++
	p.UpdatedAt = now
	return nil
}

func (r *fakeCampaignRepo) UpdateProspectStatus(_ context.Context, id uuid.UUID, status entity.ProspectStatus, lastError *string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	p.LastError = lastError
	p.UpdatedAt = now
	return nil
}

func (r *fakeCampaignRepo) RequeueProspect(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[id]
	if !ok {
		return sql.ErrNoRows
	}
	if p.Status != entity.ProspectStatusNeedsAttention && p.Status != entity.ProspectStatusCanceled {
		return sql.ErrNoRows
	}
	p.Status = entity.ProspectStatusPending
	p.LastError = nil
	p.UpdatedAt = now
	return nil
}

func (r *fakeCampaignRepo) StatusCounts(_ context.Context, campaignID uuid.UUID) (map[entity.ProspectStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[entity.ProspectStatus]int)
	for _, p := range r.prospects {
		if p.CampaignID == campaignID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

// fakeBookingRepo mirrors the booking repository in memory, including the
// partial unique index on (inbox_id, scheduled_time_utc).
type fakeBookingRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*bookingEntity.BookedSlot
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{slots: make(map[uuid.UUID]*bookingEntity.BookedSlot)}
}

func (r *fakeBookingRepo) holdsInstant(inboxID uuid.UUID, at time.Time, selfID uuid.UUID) bool {
	for _, s := range r.slots {
		if s.ID == selfID {
			continue
		}
		if s.InboxID == inboxID && s.HoldsInstant() && !s.WasDoubleBooked && s.ScheduledTimeUTC.Equal(at) {
			return true
		}
	}
	return false
}

func (r *fakeBookingRepo) Create(_ context.Context, slot *bookingEntity.BookedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slot.WasDoubleBooked && slot.HoldsInstant() && r.holdsInstant(slot.InboxID, slot.ScheduledTimeUTC, slot.ID) {
		return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	stored := *slot
	r.slots[slot.ID] = &stored
	return nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*bookingEntity.BookedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *fakeBookingRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID, p params.QueryParams) (*bookingEntity.PaginatedBookedSlotEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []bookingEntity.BookedSlot
	for _, s := range r.slots {
		if s.CampaignID != nil && *s.CampaignID == campaignID {
			items = append(items, *s)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledTimeUTC.Before(items[j].ScheduledTimeUTC) })
	return &bookingEntity.PaginatedBookedSlotEntity{
		Items:      items,
		TotalItems: len(items),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (r *fakeBookingRepo) ListScheduledTimes(_ context.Context, inboxID uuid.UUID, from time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var times []time.Time
	for _, s := range r.slots {
		if s.InboxID == inboxID && s.HoldsInstant() && !s.ScheduledTimeUTC.Before(from) {
			times = append(times, s.ScheduledTimeUTC)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status bookingEntity.SlotStatus, reason *string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	s.StatusReason = reason
	s.UpdatedAt = now
	return nil
}

func (r *fakeBookingRepo) MarkSent(_ context.Context, id uuid.UUID, calendarEventID *string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = bookingEntity.SlotStatusSent
	s.CalendarEventID = calendarEventID
	s.StatusReason = nil
	s.UpdatedAt = now
	return nil
}

func (r *fakeBookingRepo) Reschedule(_ context.Context, id uuid.UUID, newTime time.Time, leadTimeDays int, wasDoubleBooked, needsReview bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !wasDoubleBooked && r.holdsInstant(s.InboxID, newTime, id) {
		return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	s.ScheduledTimeUTC = newTime
	s.LeadTimeDays = leadTimeDays
	s.WasDoubleBooked = wasDoubleBooked
	s.NeedsReview = needsReview
	s.Status = bookingEntity.SlotStatusPending
	s.StatusReason = nil
	s.RescheduledCount++
	s.UpdatedAt = now
	return nil
}

func (r *fakeBookingRepo) ReleasePendingByInbox(_ context.Context, inboxID uuid.UUID, reason string, now time.Time) (int, []uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := 0
	var prospects []uuid.UUID
	for _, s := range r.slots {
		if s.InboxID == inboxID && s.Status == bookingEntity.SlotStatusPending {
			s.Status = bookingEntity.SlotStatusCanceled
			rc := reason
			s.StatusReason = &rc
			s.UpdatedAt = now
			if s.ProspectID != nil {
				prospects = append(prospects, *s.ProspectID)
			}
			released++
		}
	}
	return released, prospects, nil
}

func (r *fakeBookingRepo) CountByCampaign(_ context.Context, campaignID uuid.UUID) (map[bookingEntity.SlotStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[bookingEntity.SlotStatus]int)
	for _, s := range r.slots {
		if s.CampaignID != nil && *s.CampaignID == campaignID {
			counts[s.Status]++
		}
	}
	return counts, nil
}

func (r *fakeBookingRepo) all() []bookingEntity.BookedSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bookingEntity.BookedSlot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, *s)
	}
	return out
}

// fakeInboxRepo mirrors the inbox repository's SQL semantics in memory.
type fakeInboxRepo struct {
	mu      sync.Mutex
	inboxes map[uuid.UUID]*inboxEntity.Inbox
}

func newFakeInboxRepo(inboxes ...inboxEntity.Inbox) *fakeInboxRepo {
	r := &fakeInboxRepo{inboxes: make(map[uuid.UUID]*inboxEntity.Inbox)}
	for i := range inboxes {
		in := inboxes[i]
		if in.ID == uuid.Nil {
			in.ID = uuid.New()
		}
		r.inboxes[in.ID] = &in
	}
	return r
}

func (r *fakeInboxRepo) Create(_ context.Context, inbox *inboxEntity.Inbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inbox.ID == uuid.Nil {
		inbox.ID = uuid.New()
	}
	stored := *inbox
	r.inboxes[inbox.ID] = &stored
	return nil
}

func (r *fakeInboxRepo) GetByID(_ context.Context, id uuid.UUID) (*inboxEntity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *in
	return &cp, nil
}

func (r *fakeInboxRepo) GetByEmail(_ context.Context, email string) (*inboxEntity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.inboxes {
		if in.Email == email {
			cp := *in
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeInboxRepo) List(_ context.Context, p params.QueryParams) (*inboxEntity.PaginatedInboxEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]inboxEntity.Inbox, 0, len(r.inboxes))
	for _, in := range r.inboxes {
		items = append(items, *in)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return &inboxEntity.PaginatedInboxEntity{
		Items:      items,
		TotalItems: len(items),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (r *fakeInboxRepo) ListConnected(_ context.Context) ([]inboxEntity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]inboxEntity.Inbox, 0, len(r.inboxes))
	for _, in := range r.inboxes {
		if in.Active {
			items = append(items, *in)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return items, nil
}

func (r *fakeInboxRepo) ReserveQuotaSlot(_ context.Context, id uuid.UUID, now time.Time, healthThreshold int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return false, nil
	}
	if !in.Active || in.PausedReason != nil || in.SentToday >= in.DailyQuota || in.HealthScore < healthThreshold {
		return false, nil
	}
	if in.CooldownUntil != nil && now.Before(*in.CooldownUntil) {
		return false, nil
	}
	in.SentToday++
	return true, nil
}

func (r *fakeInboxRepo) ReleaseQuotaSlot(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.inboxes[id]; ok && in.SentToday > 0 {
		in.SentToday--
	}
	return nil
}

func (r *fakeInboxRepo) MarkSent(_ context.Context, id uuid.UUID, now time.Time, cooldownUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return sql.ErrNoRows
	}
	t := now
	in.LastUsedAt = &t
	cd := cooldownUntil
	in.CooldownUntil = &cd
	in.ConsecutiveErrorCount = 0
	in.HealthScore = min(constants.HealthMax, in.HealthScore+constants.HealthRecoveryStep)
	return nil
}

func (r *fakeInboxRepo) MarkTransientError(_ context.Context, id uuid.UUID, maxErrors int, pauseReason string, _ time.Time) (*inboxEntity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	in.ConsecutiveErrorCount++
	in.HealthScore = max(constants.HealthMin, in.HealthScore-constants.HealthPenaltyStep)
	if in.ConsecutiveErrorCount >= maxErrors && in.PausedReason == nil {
		in.PausedReason = &pauseReason
	}
	cp := *in
	return &cp, nil
}

func (r *fakeInboxRepo) MarkPermanentError(_ context.Context, id uuid.UUID, reason string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return sql.ErrNoRows
	}
	in.Active = false
	in.PausedReason = &reason
	in.ConsecutiveErrorCount++
	in.HealthScore = max(constants.HealthMin, in.HealthScore-constants.HealthPenaltyStep)
	return nil
}

func (r *fakeInboxRepo) ResetDaily(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.inboxes[id]; ok {
		in.SentToday = 0
	}
	return nil
}

func (r *fakeInboxRepo) ResetDailyAll(_ context.Context, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.inboxes {
		in.SentToday = 0
	}
	return nil
}

func (r *fakeInboxRepo) Resume(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.inboxes[id]; ok {
		in.PausedReason = nil
		in.ConsecutiveErrorCount = 0
	}
	return nil
}

func (r *fakeInboxRepo) Pause(_ context.Context, id uuid.UUID, reason string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.inboxes[id]; ok {
		in.PausedReason = &reason
	}
	return nil
}

func (r *fakeInboxRepo) Disconnect(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.inboxes[id]; ok {
		in.Active = false
		reason := "disconnected"
		in.PausedReason = &reason
	}
	return nil
}

// fakeEnqueuer records enqueued campaign ids and can be told to fail.
type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	fail     *errors.AppError
}

func (f *fakeEnqueuer) EnqueueCampaign(_ context.Context, campaignID uuid.UUID) *errors.AppError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.enqueued = append(f.enqueued, campaignID)
	return nil
}

func (f *fakeEnqueuer) ids() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uuid.UUID, len(f.enqueued))
	copy(out, f.enqueued)
	return out
}

// fixedResolver returns the same settings for every campaign.
type fixedResolver struct {
	settings scheduleEntity.SchedulingSettings
}

func (f *fixedResolver) ResolveSettings(_ context.Context, _ *uuid.UUID) (scheduleEntity.SchedulingSettings, *errors.AppError) {
	return f.settings, nil
}

// recordingSleeper captures backoff delays instead of waiting them out.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}
