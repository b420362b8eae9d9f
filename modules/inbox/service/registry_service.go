package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inviteflow/core/clock"
	"inviteflow/core/constants"
	"inviteflow/core/crypto"
	coreEntity "inviteflow/core/entity"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/modules/inbox/dto"
	"inviteflow/modules/inbox/entity"
	"inviteflow/modules/inbox/repository"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
)

// SlotReleaser frees the pending bookings an inbox still holds. Implemented
// by the booking module; wired in at startup.
type SlotReleaser interface {
	ReleasePendingForInbox(ctx context.Context, inboxID uuid.UUID) (int, error)
}

// RegistryService owns inbox lifecycle and the send-outcome bookkeeping:
// quota, cooldown, health and pause state.
type RegistryService struct {
	repo     repository.InboxRepositoryInterface
	clock    clock.Clock
	sealer   *crypto.Sealer
	releaser SlotReleaser
}

func NewRegistryService(repo repository.InboxRepositoryInterface, clk clock.Clock, sealer *crypto.Sealer) *RegistryService {
	return &RegistryService{
		repo:   repo,
		clock:  clk,
		sealer: sealer,
	}
}

// SetSlotReleaser wires the booking module in after both modules exist.
func (s *RegistryService) SetSlotReleaser(r SlotReleaser) {
	s.releaser = r
}

// Connect registers a new sending identity.
func (s *RegistryService) Connect(ctx context.Context, req *dto.ConnectInboxRequest) (*dto.InboxResponse, *errors.AppError) {
	logger.Info("RegistryService:Connect:Request", "email", req.Email, "provider_kind", req.ProviderKind)

	switch req.ProviderKind {
	case entity.ProviderGoogle, entity.ProviderMicrosoft:
	case entity.ProviderAppPassword:
		if req.Credential == "" || req.SMTPHost == "" || req.SMTPPort == 0 {
			return nil, errors.NewAppError(errors.ErrInvalidInput,
				"app-password inboxes require credential, smtp_host and smtp_port", nil)
		}
	default:
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("unknown provider kind %q", req.ProviderKind), nil)
	}

	if existing, err := s.repo.GetByEmail(ctx, req.Email); err != nil && err != sql.ErrNoRows {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to check existing inbox", err)
	} else if existing != nil {
		return nil, errors.NewAppError(errors.ErrAlreadyExists,
			fmt.Sprintf("inbox %s is already connected", req.Email), nil)
	}

	credential := ""
	if req.Credential != "" {
		sealed, err := s.sealer.Seal(req.Credential)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to seal credential", err)
		}
		credential = sealed
	}

	quota := req.DailyQuota
	if quota <= 0 {
		quota = constants.DefaultDailyQuota
	}

	now := s.clock.Now()
	inbox := &entity.Inbox{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		ProviderKind: req.ProviderKind,
		Active:       true,
		DailyQuota:   quota,
		SentToday:    0,
		HealthScore:  constants.HealthMax,
		Credential:   credential,
		SMTPHost:     req.SMTPHost,
		SMTPPort:     req.SMTPPort,
		BaseEntity: coreEntity.BaseEntity{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if err := s.repo.Create(ctx, inbox); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create inbox", err)
	}

	logger.Info("RegistryService:Connect:Created", "inbox_id", inbox.ID, "email", inbox.Email)
	resp := dto.ToInboxResponse(inbox, now)
	return &resp, nil
}

func (s *RegistryService) Get(ctx context.Context, id uuid.UUID) (*dto.InboxResponse, *errors.AppError) {
	inbox, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNotFound, "inbox not found", nil)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load inbox", err)
	}
	resp := dto.ToInboxResponse(inbox, s.clock.Now())
	return &resp, nil
}

func (s *RegistryService) List(ctx context.Context, queryParams params.QueryParams) (*dto.PaginatedInboxResponse, *errors.AppError) {
	page, err := s.repo.List(ctx, queryParams)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list inboxes", err)
	}

	now := s.clock.Now()
	items := make([]dto.InboxResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.ToInboxResponse(&page.Items[i], now))
	}

	return &dto.PaginatedInboxResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// MarkSent applies a successful send: refresh cooldown and last-used, clear
// the error streak, recover health. The quota unit was already consumed at
// reservation time, so sent_today is not touched here.
func (s *RegistryService) MarkSent(ctx context.Context, inboxID uuid.UUID, settings scheduleEntity.SchedulingSettings) *errors.AppError {
	now := s.clock.Now()
	cooldownUntil := now.Add(time.Duration(settings.CooldownMinutes) * time.Minute)

	if err := s.repo.MarkSent(ctx, inboxID, now, cooldownUntil); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to mark inbox sent", err)
	}

	logger.Info("RegistryService:MarkSent:Applied", "inbox_id", inboxID, "cooldown_until", cooldownUntil)
	return nil
}

// MarkTransientError bumps the consecutive error counter; crossing the
// settings bound auto-pauses the inbox.
func (s *RegistryService) MarkTransientError(ctx context.Context, inboxID uuid.UUID, settings scheduleEntity.SchedulingSettings, reason string) (*entity.Inbox, *errors.AppError) {
	pauseReason := fmt.Sprintf("auto-paused after %d consecutive errors: %s", settings.MaxErrorsBeforePause, reason)

	inbox, err := s.repo.MarkTransientError(ctx, inboxID, settings.MaxErrorsBeforePause, pauseReason, s.clock.Now())
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to mark inbox error", err)
	}

	if inbox.PausedReason != nil {
		logger.Warn("RegistryService:MarkTransientError:Paused",
			"inbox_id", inboxID,
			"consecutive_errors", inbox.ConsecutiveErrorCount,
			"reason", *inbox.PausedReason,
		)
	}
	return inbox, nil
}

// MarkPermanentError disables the inbox immediately. It stays out of the
// pool until reconnected.
func (s *RegistryService) MarkPermanentError(ctx context.Context, inboxID uuid.UUID, reason string) *errors.AppError {
	if err := s.repo.MarkPermanentError(ctx, inboxID, "disabled: "+reason, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to disable inbox", err)
	}

	logger.Warn("RegistryService:MarkPermanentError:Disabled", "inbox_id", inboxID, "reason", reason)
	return nil
}

// ResetDaily zeroes every inbox's sent counter. Idempotent: running it twice
// within one boundary leaves the counters at zero both times.
func (s *RegistryService) ResetDaily(ctx context.Context) *errors.AppError {
	if err := s.repo.ResetDailyAll(ctx, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to reset daily counters", err)
	}
	logger.Info("RegistryService:ResetDaily:Applied")
	return nil
}

func (s *RegistryService) Resume(ctx context.Context, id uuid.UUID) *errors.AppError {
	if _, appErr := s.Get(ctx, id); appErr != nil {
		return appErr
	}
	if err := s.repo.Resume(ctx, id, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to resume inbox", err)
	}
	logger.Info("RegistryService:Resume:Applied", "inbox_id", id)
	return nil
}

func (s *RegistryService) Pause(ctx context.Context, id uuid.UUID, reason string) *errors.AppError {
	if reason == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "pause reason is required", nil)
	}
	if _, appErr := s.Get(ctx, id); appErr != nil {
		return appErr
	}
	if err := s.repo.Pause(ctx, id, reason, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to pause inbox", err)
	}
	logger.Info("RegistryService:Pause:Applied", "inbox_id", id, "reason", reason)
	return nil
}

// Disconnect takes the inbox out of the pool and releases its pending
// bookings so their recipients can be rescheduled elsewhere.
func (s *RegistryService) Disconnect(ctx context.Context, id uuid.UUID) (int, *errors.AppError) {
	if _, appErr := s.Get(ctx, id); appErr != nil {
		return 0, appErr
	}

	if err := s.repo.Disconnect(ctx, id, s.clock.Now()); err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to disconnect inbox", err)
	}

	released := 0
	if s.releaser != nil {
		n, err := s.releaser.ReleasePendingForInbox(ctx, id)
		if err != nil {
			logger.Error("RegistryService:Disconnect:ReleaseSlots:Error:", err)
		} else {
			released = n
		}
	}

	logger.Info("RegistryService:Disconnect:Applied", "inbox_id", id, "released_slots", released)
	return released, nil
}

// OpenCredential unseals an inbox credential for a transport call.
func (s *RegistryService) OpenCredential(inbox *entity.Inbox) (string, *errors.AppError) {
	plain, err := s.sealer.Open(inbox.Credential)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "Failed to open inbox credential", err)
	}
	return plain, nil
}
