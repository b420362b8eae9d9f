package service

import (
	"context"

	"github.com/google/uuid"

	"inviteflow/core/clock"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
	bookingEntity "inviteflow/modules/booking/entity"
	bookingService "inviteflow/modules/booking/service"
	"inviteflow/modules/campaign/entity"
	"inviteflow/modules/campaign/repository"
	inboxEntity "inviteflow/modules/inbox/entity"
	inboxService "inviteflow/modules/inbox/service"
	scheduleEntity "inviteflow/modules/schedule/entity"
)

// OutcomeService routes one send result to every ledger it touches: the
// booked slot, the sending inbox's health and the prospect. Each outcome
// applies the bookkeeping the engine owes for that result, nothing more; the
// retry decision stays with the caller.
type OutcomeService struct {
	repo     repository.CampaignRepositoryInterface
	registry *inboxService.RegistryService
	bookings *bookingService.ReservationService
	clock    clock.Clock
}

func NewOutcomeService(
	repo repository.CampaignRepositoryInterface,
	registry *inboxService.RegistryService,
	bookings *bookingService.ReservationService,
	clk clock.Clock,
) *OutcomeService {
	return &OutcomeService{
		repo:     repo,
		registry: registry,
		bookings: bookings,
		clock:    clk,
	}
}

// Success marks the slot sent, refreshes the inbox (cooldown, health, error
// streak) and moves the prospect to sent. The quota unit was consumed at
// reservation time.
func (s *OutcomeService) Success(ctx context.Context, slot *bookingEntity.BookedSlot, eventID string, settings scheduleEntity.SchedulingSettings) *errors.AppError {
	if appErr := s.bookings.MarkDispatched(ctx, slot.ID, &eventID); appErr != nil {
		return appErr
	}
	if appErr := s.registry.MarkSent(ctx, slot.InboxID, settings); appErr != nil {
		return appErr
	}
	if appErr := s.syncProspect(ctx, slot.ProspectID, entity.ProspectStatusSent, nil); appErr != nil {
		return appErr
	}

	logger.Info("OutcomeService:Success:Applied",
		"slot_id", slot.ID,
		"inbox_id", slot.InboxID,
		"event_id", eventID,
	)
	return nil
}

// Transient counts the failure against the inbox (auto-pausing it once the
// error bound is hit) and cancels the slot so the instant frees up for the
// rebooking a retry will do. The prospect is left alone: whether to retry or
// park is the caller's call. The consumed quota unit is not refunded, the
// provider call was made.
func (s *OutcomeService) Transient(ctx context.Context, slot *bookingEntity.BookedSlot, sendErr error, settings scheduleEntity.SchedulingSettings) (*inboxEntity.Inbox, *errors.AppError) {
	inbox, appErr := s.registry.MarkTransientError(ctx, slot.InboxID, settings, sendErr.Error())
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.bookings.MarkFailed(ctx, slot.ID, bookingEntity.SlotStatusCanceled, "transient send failure: "+sendErr.Error()); appErr != nil {
		return inbox, appErr
	}

	logger.Warn("OutcomeService:Transient:Applied",
		"code", errors.ErrTransientSend,
		"slot_id", slot.ID,
		"inbox_id", slot.InboxID,
		"consecutive_errors", inbox.ConsecutiveErrorCount,
		sendErr,
	)
	return inbox, nil
}

// Permanent disables the inbox, parks the slot for an operator and parks the
// prospect. Nothing here is worth retrying: the failure is sender-side.
func (s *OutcomeService) Permanent(ctx context.Context, slot *bookingEntity.BookedSlot, sendErr error) *errors.AppError {
	if appErr := s.registry.MarkPermanentError(ctx, slot.InboxID, sendErr.Error()); appErr != nil {
		return appErr
	}
	reason := "permanent send failure: " + sendErr.Error()
	if appErr := s.bookings.MarkFailed(ctx, slot.ID, bookingEntity.SlotStatusNeedsAttention, reason); appErr != nil {
		return appErr
	}
	if appErr := s.syncProspect(ctx, slot.ProspectID, entity.ProspectStatusNeedsAttention, &reason); appErr != nil {
		return appErr
	}

	logger.Warn("OutcomeService:Permanent:Applied",
		"code", errors.ErrPermanentSend,
		"slot_id", slot.ID,
		"inbox_id", slot.InboxID,
		sendErr,
	)
	return nil
}

func (s *OutcomeService) syncProspect(ctx context.Context, prospectID *uuid.UUID, status entity.ProspectStatus, lastError *string) *errors.AppError {
	if prospectID == nil {
		return nil
	}
	if err := s.repo.UpdateProspectStatus(ctx, *prospectID, status, lastError, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to update prospect status", err)
	}
	return nil
}
