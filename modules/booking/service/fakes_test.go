package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"inviteflow/core/constants"
	"inviteflow/core/errors"
	"inviteflow/core/params"
	"inviteflow/modules/booking/entity"
	inboxEntity "inviteflow/modules/inbox/entity"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// fakeBookingRepo mirrors the real repository in memory, including the
// partial unique index on (inbox_id, scheduled_time_utc).
type fakeBookingRepo struct {
	mu             sync.Mutex
	slots          map[uuid.UUID]*entity.BookedSlot
	failNextCreate error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{slots: make(map[uuid.UUID]*entity.BookedSlot)}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// seed inserts a slot bypassing the unique check, for arranging fixtures.
func (r *fakeBookingRepo) seed(slot entity.BookedSlot) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	r.slots[slot.ID] = &slot
	return slot.ID
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

func (r *fakeBookingRepo) Create(_ context.Context, slot *entity.BookedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextCreate != nil {
		err := r.failNextCreate
		r.failNextCreate = nil
		return err
	}
	if !slot.WasDoubleBooked && slot.HoldsInstant() && r.holdsInstant(slot.InboxID, slot.ScheduledTimeUTC, slot.ID) {
		return uniqueViolation()
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	stored := *slot
	r.slots[slot.ID] = &stored
	return nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.BookedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *fakeBookingRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID, p params.QueryParams) (*entity.PaginatedBookedSlotEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []entity.BookedSlot
	for _, s := range r.slots {
		if s.CampaignID != nil && *s.CampaignID == campaignID {
			items = append(items, *s)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledTimeUTC.Before(items[j].ScheduledTimeUTC) })
	return &entity.PaginatedBookedSlotEntity{
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

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.SlotStatus, reason *string, now time.Time) error {
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
	s.Status = entity.SlotStatusSent
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
		return uniqueViolation()
	}
	s.ScheduledTimeUTC = newTime
	s.LeadTimeDays = leadTimeDays
	s.WasDoubleBooked = wasDoubleBooked
	s.NeedsReview = needsReview
	s.Status = entity.SlotStatusPending
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
		if s.InboxID == inboxID && s.Status == entity.SlotStatusPending {
			s.Status = entity.SlotStatusCanceled
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

func (r *fakeBookingRepo) CountByCampaign(_ context.Context, campaignID uuid.UUID) (map[entity.SlotStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[entity.SlotStatus]int)
	for _, s := range r.slots {
		if s.CampaignID != nil && *s.CampaignID == campaignID {
			counts[s.Status]++
		}
	}
	return counts, nil
}

func (r *fakeBookingRepo) all() []entity.BookedSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.BookedSlot, 0, len(r.slots))
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

// fakeResolver returns fixed settings for every campaign.
type fakeResolver struct {
	settings scheduleEntity.SchedulingSettings
}

func (f *fakeResolver) ResolveSettings(_ context.Context, _ *uuid.UUID) (scheduleEntity.SchedulingSettings, *errors.AppError) {
	return f.settings, nil
}

// fakeSyncer records prospect status syncs forwarded by the booking service.
type fakeSyncer struct {
	mu     sync.Mutex
	synced map[uuid.UUID][]string
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{synced: make(map[uuid.UUID][]string)}
}

func (f *fakeSyncer) SyncProspectStatus(_ context.Context, prospectID uuid.UUID, status string) *errors.AppError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[prospectID] = append(f.synced[prospectID], status)
	return nil
}

func (f *fakeSyncer) statuses(prospectID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synced[prospectID]
}
