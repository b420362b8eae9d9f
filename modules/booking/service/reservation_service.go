package service

import (
	"context"
	"database/sql"
	"math/rand"
	"sync"

	"inviteflow/core/clock"
	"inviteflow/core/config"
	coreEntity "inviteflow/core/entity"
	"inviteflow/core/errors"
	"inviteflow/core/lock"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/core/utils"
	"inviteflow/modules/booking/dto"
	"inviteflow/modules/booking/entity"
	"inviteflow/modules/booking/repository"
	inboxRepository "inviteflow/modules/inbox/repository"
	inboxService "inviteflow/modules/inbox/service"
	scheduleEntity "inviteflow/modules/schedule/entity"
	scheduleService "inviteflow/modules/schedule/service"

	"github.com/google/uuid"
)

// SettingsResolver yields the effective scheduling settings for a campaign:
// the global defaults merged with the campaign's overrides. Implemented by
// the campaign module; wired in at startup.
type SettingsResolver interface {
	ResolveSettings(ctx context.Context, campaignID *uuid.UUID) (scheduleEntity.SchedulingSettings, *errors.AppError)
}

// ProspectSyncer mirrors booking status changes onto the campaign's prospect
// so RSVP answers and cancellations show up in campaign stats. Implemented by
// the campaign module; wired in at startup.
type ProspectSyncer interface {
	SyncProspectStatus(ctx context.Context, prospectID uuid.UUID, status string) *errors.AppError
}

// ReserveRequest identifies one recipient to book a send for.
type ReserveRequest struct {
	CampaignID        *uuid.UUID
	ProspectID        *uuid.UUID
	RecipientEmail    string
	RecipientTimezone string
}

// ReservationService is the only writer of (inbox, instant) pairs. Selection
// runs lock-free; everything that mutates the chosen inbox happens inside a
// per-inbox critical section so quota and double-booking invariants hold no
// matter how many callers race.
type ReservationService struct {
	repo       repository.BookingRepositoryInterface
	inboxRepo  inboxRepository.InboxRepositoryInterface
	selector   *inboxService.SelectorService
	calculator *scheduleService.SlotCalculator
	locker     lock.Locker
	clock      clock.Clock
	resolver   SettingsResolver
	prospects  ProspectSyncer

	// rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewReservationService(
	repo repository.BookingRepositoryInterface,
	inboxRepo inboxRepository.InboxRepositoryInterface,
	selector *inboxService.SelectorService,
	calculator *scheduleService.SlotCalculator,
	locker lock.Locker,
	clk clock.Clock,
	rng *rand.Rand,
) *ReservationService {
	return &ReservationService{
		repo:       repo,
		inboxRepo:  inboxRepo,
		selector:   selector,
		calculator: calculator,
		locker:     locker,
		clock:      clk,
		rng:        rng,
	}
}

// SetSettingsResolver wires the campaign module in after both modules exist.
func (s *ReservationService) SetSettingsResolver(r SettingsResolver) {
	s.resolver = r
}

// SetProspectSyncer wires the campaign module in after both modules exist.
func (s *ReservationService) SetProspectSyncer(p ProspectSyncer) {
	s.prospects = p
}

// Reserve books a send slot on the best available inbox. Candidates that
// fail inside their critical section are excluded and selection reruns
// against the remaining pool, so one contended inbox never sinks the whole
// request. When the pool is exhausted the most specific failure wins:
// a fully booked window beats a busy lock beats an empty pool.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest, settings scheduleEntity.SchedulingSettings) (*entity.BookedSlot, *errors.AppError) {
	if appErr := settings.Validate(); appErr != nil {
		return nil, appErr
	}

	logger.Info("ReservationService:Reserve:Start",
		"recipient", req.RecipientEmail,
		"timezone", req.RecipientTimezone,
	)

	var excluding []uuid.UUID
	var sawNoSlot, sawLockTimeout bool

	for {
		candidate, appErr := s.selector.SelectInbox(ctx, settings, s.clock.Now(), excluding...)
		if appErr != nil {
			if errors.Is(appErr, errors.ErrNoEligibleInbox) {
				switch {
				case sawNoSlot:
					return nil, errors.NewAppError(errors.ErrNoSlotAvailable,
						"no conflict-free slot on any eligible inbox", nil)
				case sawLockTimeout:
					return nil, errors.NewAppError(errors.ErrLockTimeout,
						"every candidate inbox is busy, retry later", nil)
				}
			}
			return nil, appErr
		}

		slot, appErr := s.reserveOnInbox(ctx, candidate.ID, req, settings)
		if appErr == nil {
			logger.Info("ReservationService:Reserve:Booked",
				"recipient", req.RecipientEmail,
				"inbox_id", slot.InboxID,
				"scheduled_time_utc", slot.ScheduledTimeUTC,
				"lead_time_days", slot.LeadTimeDays,
				"status", slot.Status,
			)
			return slot, nil
		}

		switch {
		case errors.Is(appErr, errors.ErrInvalidConfiguration):
			return nil, appErr
		case errors.Is(appErr, errors.ErrNoSlotAvailable):
			sawNoSlot = true
		case errors.Is(appErr, errors.ErrLockTimeout):
			sawLockTimeout = true
		case errors.Is(appErr, errors.ErrNoEligibleInbox), errors.Is(appErr, errors.ErrSchedulingConflict):
			// Lost a race inside the critical section; the next candidate
			// may still have room.
		default:
			return nil, appErr
		}

		logger.Info("ReservationService:Reserve:CandidateFailed",
			"recipient", req.RecipientEmail,
			"inbox_id", candidate.ID,
			"code", appErr.Code,
		)
		excluding = append(excluding, candidate.ID)
	}
}

// reserveOnInbox runs the per-inbox critical section: re-validate, compute
// the slot against the latest bookings, consume a quota unit, persist. The
// transport send happens later, outside the lock.
func (s *ReservationService) reserveOnInbox(ctx context.Context, inboxID uuid.UUID, req ReserveRequest, settings scheduleEntity.SchedulingSettings) (*entity.BookedSlot, *errors.AppError) {
	release, err := s.locker.Acquire(ctx, inboxLockKey(inboxID))
	if err != nil {
		if ae, ok := err.(*errors.AppError); ok {
			return nil, ae
		}
		return nil, errors.NewAppError(errors.ErrLockTimeout, "inbox lock unavailable", err)
	}
	defer release()

	now := s.clock.Now()

	inbox, err := s.inboxRepo.GetByID(ctx, inboxID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNoEligibleInbox, "inbox disappeared before reservation", nil)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to reload inbox", err)
	}
	if !inbox.IsAvailable(settings, now) {
		return nil, errors.NewAppError(errors.ErrNoEligibleInbox, "inbox no longer available", nil)
	}

	existing, err := s.repo.ListScheduledTimes(ctx, inboxID, now)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load existing bookings", err)
	}

	s.rngMu.Lock()
	candidate, appErr := s.calculator.ComputeSlot(settings, req.RecipientTimezone, now, existing, s.rng)
	s.rngMu.Unlock()
	if appErr != nil {
		return nil, appErr
	}

	reserved, err := s.inboxRepo.ReserveQuotaSlot(ctx, inboxID, now, settings.HealthThreshold)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to reserve quota slot", err)
	}
	if !reserved {
		return nil, errors.NewAppError(errors.ErrNoEligibleInbox, "concurrent reservation took the last quota slot", nil)
	}

	status := entity.SlotStatusPending
	var reason *string
	if candidate.NeedsAttention {
		status = entity.SlotStatusNeedsAttention
		r := "double-booked after exhausting conflict retries"
		reason = &r
	}

	slot := &entity.BookedSlot{
		BaseEntity: coreEntity.BaseEntity{
			CreatedAt: now,
			UpdatedAt: now,
		},
		InboxID:           inboxID,
		CampaignID:        req.CampaignID,
		ProspectID:        req.ProspectID,
		RecipientEmail:    req.RecipientEmail,
		RecipientTimezone: req.RecipientTimezone,
		ScheduledTimeUTC:  candidate.TimeUTC,
		LeadTimeDays:      candidate.LeadTimeDays,
		WasDoubleBooked:   candidate.WasDoubleBooked,
		NeedsReview:       candidate.TimezoneFallback,
		Status:            status,
		StatusReason:      reason,
		InviteUID:         utils.NewInviteUID(),
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		// The quota unit was consumed but the slot was not persisted;
		// refund it so the inbox keeps its real capacity.
		if rerr := s.inboxRepo.ReleaseQuotaSlot(ctx, inboxID, now); rerr != nil {
			logger.Error("ReservationService:reserveOnInbox:Refund:Error:", rerr)
		}
		if repository.IsUniqueViolation(err) {
			return nil, errors.NewAppError(errors.ErrSchedulingConflict,
				"scheduled instant already taken on this inbox", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to persist booked slot", err)
	}

	return slot, nil
}

// Get returns one booking.
func (s *ReservationService) Get(ctx context.Context, id uuid.UUID) (*dto.BookedSlotResponse, *errors.AppError) {
	slot, appErr := s.loadSlot(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	resp := dto.ToBookedSlotResponse(slot)
	return &resp, nil
}

// ListByCampaign returns a campaign's bookings ordered by scheduled time.
func (s *ReservationService) ListByCampaign(ctx context.Context, campaignID uuid.UUID, queryParams params.QueryParams) (*dto.PaginatedBookedSlotResponse, *errors.AppError) {
	page, err := s.repo.ListByCampaign(ctx, campaignID, queryParams)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list bookings", err)
	}

	items := make([]dto.BookedSlotResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.ToBookedSlotResponse(&page.Items[i]))
	}

	return &dto.PaginatedBookedSlotResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// ApplyRSVP records the recipient's answer. Recipients change their minds,
// so a later RSVP overwrites an earlier one.
func (s *ReservationService) ApplyRSVP(ctx context.Context, id uuid.UUID, response string) (*dto.BookedSlotResponse, *errors.AppError) {
	var status entity.SlotStatus
	switch response {
	case string(entity.SlotStatusAccepted):
		status = entity.SlotStatusAccepted
	case string(entity.SlotStatusDeclined):
		status = entity.SlotStatusDeclined
	case string(entity.SlotStatusTentative):
		status = entity.SlotStatusTentative
	default:
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			"rsvp response must be accepted, declined or tentative", nil)
	}

	slot, appErr := s.loadSlot(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if !slot.CanReceiveRSVP() {
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			"invite has not been sent, there is nothing to answer", nil)
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, id, status, nil, now); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to record rsvp", err)
	}

	logger.Info("ReservationService:ApplyRSVP:Recorded", "slot_id", id, "response", status)
	s.syncProspect(ctx, slot.ProspectID, string(status))

	slot.Status = status
	slot.StatusReason = nil
	slot.UpdatedAt = now
	resp := dto.ToBookedSlotResponse(slot)
	return &resp, nil
}

// Cancel releases the slot's instant. Canceling twice is a no-op.
func (s *ReservationService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*dto.BookedSlotResponse, *errors.AppError) {
	slot, appErr := s.loadSlot(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	if slot.Status != entity.SlotStatusCanceled {
		now := s.clock.Now()
		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := s.repo.UpdateStatus(ctx, id, entity.SlotStatusCanceled, reasonPtr, now); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to cancel booking", err)
		}
		logger.Info("ReservationService:Cancel:Canceled", "slot_id", id, "reason", reason)
		s.syncProspect(ctx, slot.ProspectID, string(entity.SlotStatusCanceled))
		slot.Status = entity.SlotStatusCanceled
		slot.StatusReason = reasonPtr
		slot.UpdatedAt = now
	}

	resp := dto.ToBookedSlotResponse(slot)
	return &resp, nil
}

// Reschedule computes a fresh instant for an existing booking and puts it
// back in pending under the same invite UID, so the recipient's calendar
// updates the event instead of growing a duplicate. The current instant
// stays in the conflict set, which forces a genuinely different time.
func (s *ReservationService) Reschedule(ctx context.Context, id uuid.UUID) (*dto.BookedSlotResponse, *errors.AppError) {
	slot, appErr := s.loadSlot(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if slot.Status == entity.SlotStatusCanceled {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "canceled bookings cannot be rescheduled", nil)
	}

	settings, appErr := s.resolveSettings(ctx, slot.CampaignID)
	if appErr != nil {
		return nil, appErr
	}

	release, err := s.locker.Acquire(ctx, inboxLockKey(slot.InboxID))
	if err != nil {
		if ae, ok := err.(*errors.AppError); ok {
			return nil, ae
		}
		return nil, errors.NewAppError(errors.ErrLockTimeout, "inbox lock unavailable", err)
	}
	defer release()

	now := s.clock.Now()
	existing, err := s.repo.ListScheduledTimes(ctx, slot.InboxID, now)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load existing bookings", err)
	}

	s.rngMu.Lock()
	candidate, appErr := s.calculator.ComputeSlot(settings, slot.RecipientTimezone, now, existing, s.rng)
	s.rngMu.Unlock()
	if appErr != nil {
		return nil, appErr
	}

	if err := s.repo.Reschedule(ctx, id, candidate.TimeUTC, candidate.LeadTimeDays, candidate.WasDoubleBooked, candidate.TimezoneFallback, now); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, errors.NewAppError(errors.ErrSchedulingConflict,
				"rescheduled instant already taken on this inbox", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to reschedule booking", err)
	}

	slot.ScheduledTimeUTC = candidate.TimeUTC
	slot.LeadTimeDays = candidate.LeadTimeDays
	slot.WasDoubleBooked = candidate.WasDoubleBooked
	slot.NeedsReview = candidate.TimezoneFallback
	slot.Status = entity.SlotStatusPending
	slot.StatusReason = nil
	slot.RescheduledCount++
	slot.UpdatedAt = now

	if candidate.NeedsAttention {
		r := "double-booked after exhausting conflict retries"
		if err := s.repo.UpdateStatus(ctx, id, entity.SlotStatusNeedsAttention, &r, now); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to flag rescheduled booking", err)
		}
		slot.Status = entity.SlotStatusNeedsAttention
		slot.StatusReason = &r
	}

	logger.Info("ReservationService:Reschedule:Moved",
		"slot_id", id,
		"scheduled_time_utc", slot.ScheduledTimeUTC,
		"rescheduled_count", slot.RescheduledCount,
	)

	resp := dto.ToBookedSlotResponse(slot)
	return &resp, nil
}

// MarkDispatched flips the slot to sent after the transport accepted it.
func (s *ReservationService) MarkDispatched(ctx context.Context, id uuid.UUID, calendarEventID *string) *errors.AppError {
	if err := s.repo.MarkSent(ctx, id, calendarEventID, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark booking sent", err)
	}
	return nil
}

// MarkFailed parks or releases the slot after a send failure. Transient
// failures cancel the slot so a retry books a fresh one; permanent failures
// park it as needs_attention for an operator.
func (s *ReservationService) MarkFailed(ctx context.Context, id uuid.UUID, status entity.SlotStatus, reason string) *errors.AppError {
	if status != entity.SlotStatusCanceled && status != entity.SlotStatusNeedsAttention {
		return errors.NewAppError(errors.ErrInvalidInput, "failure status must be canceled or needs_attention", nil)
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.repo.UpdateStatus(ctx, id, status, reasonPtr, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark booking failed", err)
	}
	return nil
}

// ReleasePendingForInbox frees every pending booking the inbox holds and
// puts the affected prospects back in the queue so the next processing run
// reassigns them to another inbox. Satisfies the inbox module's SlotReleaser.
func (s *ReservationService) ReleasePendingForInbox(ctx context.Context, inboxID uuid.UUID) (int, error) {
	released, prospectIDs, err := s.repo.ReleasePendingByInbox(ctx, inboxID, "inbox disconnected", s.clock.Now())
	if err != nil {
		return 0, err
	}
	for i := range prospectIDs {
		s.syncProspect(ctx, &prospectIDs[i], string(entity.SlotStatusPending))
	}
	return released, nil
}

// CountByCampaign aggregates slot statuses for campaign stats.
func (s *ReservationService) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (map[entity.SlotStatus]int, *errors.AppError) {
	counts, err := s.repo.CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to count bookings", err)
	}
	return counts, nil
}

// syncProspect forwards a status change to the campaign module. Sync failures
// are logged, never surfaced: the booking update already committed.
func (s *ReservationService) syncProspect(ctx context.Context, prospectID *uuid.UUID, status string) {
	if s.prospects == nil || prospectID == nil {
		return
	}
	if appErr := s.prospects.SyncProspectStatus(ctx, *prospectID, status); appErr != nil {
		logger.Error("ReservationService:syncProspect:Error:", appErr)
	}
}

func (s *ReservationService) loadSlot(ctx context.Context, id uuid.UUID) (*entity.BookedSlot, *errors.AppError) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNotFound, "booking not found", nil)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
	}
	return slot, nil
}

func (s *ReservationService) resolveSettings(ctx context.Context, campaignID *uuid.UUID) (scheduleEntity.SchedulingSettings, *errors.AppError) {
	if s.resolver != nil && campaignID != nil {
		return s.resolver.ResolveSettings(ctx, campaignID)
	}

	cfg, ok := config.GetSafe()
	if !ok {
		return scheduleEntity.SchedulingSettings{}, errors.NewAppError(errors.ErrInternalServer, "Server configuration not initialized", nil)
	}
	return scheduleEntity.DefaultSettings(cfg.Scheduling), nil
}

func inboxLockKey(id uuid.UUID) string {
	return "inbox:" + id.String()
}
