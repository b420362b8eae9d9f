package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"inviteflow/core/constants"
	"inviteflow/core/params"
	"inviteflow/modules/inbox/entity"

	"github.com/google/uuid"
)

// fakeInboxRepo mirrors the SQL semantics of the real repository in memory.
type fakeInboxRepo struct {
	mu      sync.Mutex
	inboxes map[uuid.UUID]*entity.Inbox
}

func newFakeInboxRepo(inboxes ...entity.Inbox) *fakeInboxRepo {
	r := &fakeInboxRepo{inboxes: make(map[uuid.UUID]*entity.Inbox)}
	for i := range inboxes {
		in := inboxes[i]
		if in.ID == uuid.Nil {
			in.ID = uuid.New()
		}
		r.inboxes[in.ID] = &in
	}
	return r
}

func (r *fakeInboxRepo) Create(_ context.Context, inbox *entity.Inbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inbox.ID == uuid.Nil {
		inbox.ID = uuid.New()
	}
	stored := *inbox
	r.inboxes[inbox.ID] = &stored
	return nil
}

func (r *fakeInboxRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *in
	return &cp, nil
}

func (r *fakeInboxRepo) GetByEmail(_ context.Context, email string) (*entity.Inbox, error) {
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

func (r *fakeInboxRepo) List(_ context.Context, p params.QueryParams) (*entity.PaginatedInboxEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]entity.Inbox, 0, len(r.inboxes))
	for _, in := range r.inboxes {
		items = append(items, *in)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return &entity.PaginatedInboxEntity{
		Items:      items,
		TotalItems: len(items),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (r *fakeInboxRepo) ListConnected(_ context.Context) ([]entity.Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]entity.Inbox, 0, len(r.inboxes))
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

func (r *fakeInboxRepo) MarkTransientError(_ context.Context, id uuid.UUID, maxErrors int, pauseReason string, _ time.Time) (*entity.Inbox, error) {
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
