package service

import (
	"context"
	"sort"
	"time"

	"inviteflow/core/errors"
	"inviteflow/core/logger"
	"inviteflow/modules/inbox/entity"
	"inviteflow/modules/inbox/repository"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
)

// SelectorService is the load balancer: it picks the best eligible inbox for
// a send. Selection never mutates state; the pick is re-validated under the
// per-inbox lock at reservation time.
type SelectorService struct {
	repo repository.InboxRepositoryInterface
}

func NewSelectorService(repo repository.InboxRepositoryInterface) *SelectorService {
	return &SelectorService{repo: repo}
}

// SelectInbox returns the top-ranked available inbox, skipping any in the
// excluding list (inboxes that already failed for this recipient).
func (s *SelectorService) SelectInbox(ctx context.Context, settings scheduleEntity.SchedulingSettings, now time.Time, excluding ...uuid.UUID) (*entity.Inbox, *errors.AppError) {
	candidates, err := s.repo.ListConnected(ctx)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load inbox pool", err)
	}

	eligible := Rank(candidates, settings, now, excluding...)
	if len(eligible) == 0 {
		return nil, errors.NewAppError(errors.ErrNoEligibleInbox, "no eligible inbox available", nil)
	}

	top := eligible[0]
	logger.Info("SelectorService:SelectInbox:Selected",
		"inbox_id", top.ID,
		"email", top.Email,
		"sent_today", top.SentToday,
		"health_score", top.HealthScore,
	)
	return &top, nil
}

// Rank filters to available inboxes and orders them for selection:
// fewest sends today first, then healthiest, then least recently used with
// never-used inboxes ahead, with the id as the final tie-break. The ordering
// is total, so identical states always rank identically.
func Rank(inboxes []entity.Inbox, settings scheduleEntity.SchedulingSettings, now time.Time, excluding ...uuid.UUID) []entity.Inbox {
	excluded := make(map[uuid.UUID]struct{}, len(excluding))
	for _, id := range excluding {
		excluded[id] = struct{}{}
	}

	eligible := make([]entity.Inbox, 0, len(inboxes))
	for i := range inboxes {
		if _, skip := excluded[inboxes[i].ID]; skip {
			continue
		}
		if inboxes[i].IsAvailable(settings, now) {
			eligible = append(eligible, inboxes[i])
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.SentToday != b.SentToday {
			return a.SentToday < b.SentToday
		}
		if a.HealthScore != b.HealthScore {
			return a.HealthScore > b.HealthScore
		}
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt != nil:
			return true
		case a.LastUsedAt != nil && b.LastUsedAt == nil:
			return false
		case a.LastUsedAt != nil && b.LastUsedAt != nil && !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.Before(*b.LastUsedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return eligible
}
