package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"inviteflow/core/clock"
	"inviteflow/core/constants"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
	bookingEntity "inviteflow/modules/booking/entity"
	bookingService "inviteflow/modules/booking/service"
	"inviteflow/modules/campaign/entity"
	"inviteflow/modules/campaign/repository"
	inboxRepository "inviteflow/modules/inbox/repository"
	scheduleEntity "inviteflow/modules/schedule/entity"
	"inviteflow/modules/transport"
)

// Sleeper pauses between dispatch attempts. Injected so tests run without
// waiting out real backoff delays.
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultSleeper waits for the duration or until the context is done,
// whichever comes first.
func DefaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProcessReport summarizes one processing run over a campaign's queue.
type ProcessReport struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Parked    int `json:"parked"`
}

// ProcessorService drains a campaign's pending prospects: reserve an inbox
// and a slot, hand the invite to the provider transport, then apply the
// outcome. One prospect's failure never stops the rest of the queue; only a
// broken scheduling configuration aborts the whole run, because it would fail
// every prospect the same way.
type ProcessorService struct {
	repo         repository.CampaignRepositoryInterface
	reservations *bookingService.ReservationService
	outcomes     *OutcomeService
	resolver     bookingService.SettingsResolver
	transports   *transport.Registry
	inboxRepo    inboxRepository.InboxRepositoryInterface
	clock        clock.Clock
	sleep        Sleeper
}

func NewProcessorService(
	repo repository.CampaignRepositoryInterface,
	reservations *bookingService.ReservationService,
	outcomes *OutcomeService,
	resolver bookingService.SettingsResolver,
	transports *transport.Registry,
	inboxRepo inboxRepository.InboxRepositoryInterface,
	clk clock.Clock,
	sleep Sleeper,
) *ProcessorService {
	if sleep == nil {
		sleep = DefaultSleeper
	}
	return &ProcessorService{
		repo:         repo,
		reservations: reservations,
		outcomes:     outcomes,
		resolver:     resolver,
		transports:   transports,
		inboxRepo:    inboxRepo,
		clock:        clk,
		sleep:        sleep,
	}
}

// ProcessCampaign runs the dispatch loop for one campaign. Settings are
// resolved and validated once up front; a validation failure aborts before
// any prospect is touched.
func (s *ProcessorService) ProcessCampaign(ctx context.Context, campaignID uuid.UUID) (*ProcessReport, *errors.AppError) {
	campaign, appErr := s.loadCampaign(ctx, campaignID)
	if appErr != nil {
		return nil, appErr
	}

	report := &ProcessReport{}
	if campaign.Status != entity.CampaignStatusRunning {
		logger.Info("ProcessorService:ProcessCampaign:NotRunning",
			"campaign_id", campaignID,
			"status", campaign.Status,
		)
		return report, nil
	}

	settings, appErr := s.resolver.ResolveSettings(ctx, &campaignID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := settings.Validate(); appErr != nil {
		logger.Error("ProcessorService:ProcessCampaign:InvalidSettings:", appErr)
		return nil, appErr
	}

	prospects, err := s.repo.ListPendingProspects(ctx, campaignID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load pending prospects", err)
	}

	logger.Info("ProcessorService:ProcessCampaign:Begin",
		"campaign_id", campaignID,
		"pending", len(prospects),
	)

	for i := range prospects {
		if err := ctx.Err(); err != nil {
			return report, errors.NewAppError(errors.ErrInternalServer, "Processing interrupted", err)
		}
		report.Processed++

		appErr := s.dispatch(ctx, campaign, &prospects[i], settings, report)
		if appErr == nil {
			continue
		}
		if errors.Is(appErr, errors.ErrInvalidConfiguration) {
			return report, appErr
		}
		// Isolated failure: log it, move to the next prospect.
		logger.Error("ProcessorService:ProcessCampaign:ProspectError:", appErr,
			"campaign_id", campaignID,
			"prospect_id", prospects[i].ID,
		)
	}

	s.maybeComplete(ctx, campaign)

	logger.Info("ProcessorService:ProcessCampaign:Done",
		"campaign_id", campaignID,
		"processed", report.Processed,
		"sent", report.Sent,
		"parked", report.Parked,
	)
	return report, nil
}

// dispatch pushes one prospect through reserve, send and outcome. Each retry
// reserves from scratch so a different inbox can pick the prospect up after a
// transient failure.
func (s *ProcessorService) dispatch(ctx context.Context, campaign *entity.Campaign, prospect *entity.Prospect, settings scheduleEntity.SchedulingSettings, report *ProcessReport) *errors.AppError {
	req := bookingService.ReserveRequest{
		CampaignID:        &campaign.ID,
		ProspectID:        &prospect.ID,
		RecipientEmail:    prospect.Email,
		RecipientTimezone: prospect.Timezone,
	}

	var lastFailure string
	for attempt := 1; attempt <= constants.DispatchMaxAttempts; attempt++ {
		if err := s.repo.MarkProspectAttempt(ctx, prospect.ID, s.clock.Now()); err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to record dispatch attempt", err)
		}

		slot, appErr := s.reservations.Reserve(ctx, req, settings)
		if appErr != nil {
			switch {
			case errors.Is(appErr, errors.ErrInvalidConfiguration):
				return appErr
			case appErr.Retryable() && attempt < constants.DispatchMaxAttempts:
				lastFailure = appErr.Message
				if err := s.backoff(ctx, attempt); err != nil {
					return errors.NewAppError(errors.ErrInternalServer, "Processing interrupted", err)
				}
				continue
			default:
				// A rejection (no inbox, no slot) will not resolve within
				// this run. Park the prospect and keep the queue moving.
				s.parkProspect(ctx, prospect.ID, appErr.Message)
				report.Parked++
				return nil
			}
		}

		if slot.Status == bookingEntity.SlotStatusNeedsAttention {
			reason := "booking parked for review"
			if slot.StatusReason != nil {
				reason = *slot.StatusReason
			}
			s.parkProspect(ctx, prospect.ID, reason)
			report.Parked++
			return nil
		}

		if err := s.repo.UpdateProspectStatus(ctx, prospect.ID, entity.ProspectStatusScheduled, nil, s.clock.Now()); err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to update prospect status", err)
		}

		inbox, err := s.inboxRepo.GetByID(ctx, slot.InboxID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load reserved inbox", err)
		}

		tr, ok := s.transports.Get(inbox.ProviderKind)
		if !ok {
			// Deployment gap, not an inbox fault: free the instant, park the
			// prospect and leave the inbox's health alone.
			reason := "no transport registered for provider " + inbox.ProviderKind
			if appErr := s.reservations.MarkFailed(ctx, slot.ID, bookingEntity.SlotStatusCanceled, reason); appErr != nil {
				logger.Error("ProcessorService:dispatch:ReleaseSlot:Error:", appErr)
			}
			s.parkProspect(ctx, prospect.ID, reason)
			report.Parked++
			return nil
		}

		// The send happens outside any inbox lock; only bookkeeping is
		// serialized.
		eventID, sendErr := tr.SendInvite(ctx, inbox, prospect, slot, campaign)
		if sendErr == nil {
			if appErr := s.outcomes.Success(ctx, slot, eventID, settings); appErr != nil {
				return appErr
			}
			report.Sent++
			return nil
		}

		if transport.IsPermanent(sendErr) {
			if appErr := s.outcomes.Permanent(ctx, slot, sendErr); appErr != nil {
				return appErr
			}
			report.Parked++
			return nil
		}

		if _, appErr := s.outcomes.Transient(ctx, slot, sendErr, settings); appErr != nil {
			return appErr
		}
		lastFailure = sendErr.Error()
		if attempt < constants.DispatchMaxAttempts {
			if err := s.backoff(ctx, attempt); err != nil {
				return errors.NewAppError(errors.ErrInternalServer, "Processing interrupted", err)
			}
		}
	}

	s.parkProspect(ctx, prospect.ID, fmt.Sprintf("gave up after %d attempts: %s", constants.DispatchMaxAttempts, lastFailure))
	report.Parked++
	return nil
}

// backoff waits base*factor^(attempt-1) seconds before the next attempt.
func (s *ProcessorService) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(constants.DispatchBackoffBaseSecs) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= constants.DispatchBackoffFactor
	}
	logger.Debug("ProcessorService:backoff:Waiting",
		"attempt", attempt,
		"delay", delay.String(),
	)
	return s.sleep(ctx, delay)
}

func (s *ProcessorService) parkProspect(ctx context.Context, prospectID uuid.UUID, reason string) {
	if err := s.repo.UpdateProspectStatus(ctx, prospectID, entity.ProspectStatusNeedsAttention, &reason, s.clock.Now()); err != nil {
		logger.Error("ProcessorService:parkProspect:Error:", err)
		return
	}
	logger.Warn("ProcessorService:parkProspect:Parked",
		"prospect_id", prospectID,
		"reason", reason,
	)
}

// maybeComplete flips the campaign to completed once nothing is pending or
// mid-flight. Parked and answered prospects do not hold a campaign open.
func (s *ProcessorService) maybeComplete(ctx context.Context, campaign *entity.Campaign) {
	counts, err := s.repo.StatusCounts(ctx, campaign.ID)
	if err != nil {
		logger.Error("ProcessorService:maybeComplete:Error:", err)
		return
	}
	if counts[entity.ProspectStatusPending] > 0 || counts[entity.ProspectStatusScheduled] > 0 {
		return
	}
	if err := s.repo.UpdateStatus(ctx, campaign.ID, entity.CampaignStatusCompleted, s.clock.Now()); err != nil {
		logger.Error("ProcessorService:maybeComplete:UpdateStatus:Error:", err)
		return
	}
	logger.Info("ProcessorService:maybeComplete:Completed", "campaign_id", campaign.ID)
}

func (s *ProcessorService) loadCampaign(ctx context.Context, id uuid.UUID) (*entity.Campaign, *errors.AppError) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNotFound, "Campaign not found", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load campaign", err)
	}
	return campaign, nil
}
