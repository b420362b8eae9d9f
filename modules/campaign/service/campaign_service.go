package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"inviteflow/core/clock"
	"inviteflow/core/config"
	"inviteflow/core/constants"
	coreEntity "inviteflow/core/entity"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/core/utils"
	bookingDto "inviteflow/modules/booking/dto"
	bookingService "inviteflow/modules/booking/service"
	"inviteflow/modules/campaign/dto"
	"inviteflow/modules/campaign/entity"
	"inviteflow/modules/campaign/repository"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Enqueuer hands a campaign to the background queue. Implemented by the
// worker module's client.
type Enqueuer interface {
	EnqueueCampaign(ctx context.Context, campaignID uuid.UUID) *errors.AppError
}

// CampaignService owns campaign and prospect lifecycle. It also satisfies the
// booking module's SettingsResolver and ProspectSyncer, which are wired in at
// startup.
type CampaignService struct {
	repo     repository.CampaignRepositoryInterface
	bookings *bookingService.ReservationService
	enqueuer Enqueuer
	clock    clock.Clock
}

func NewCampaignService(
	repo repository.CampaignRepositoryInterface,
	bookings *bookingService.ReservationService,
	enqueuer Enqueuer,
	clk clock.Clock,
) *CampaignService {
	return &CampaignService{
		repo:     repo,
		bookings: bookings,
		enqueuer: enqueuer,
		clock:    clk,
	}
}

// Create registers a campaign and its initial prospect list. Settings
// overrides are validated against the merged snapshot up front so a broken
// campaign never reaches the processor.
func (s *CampaignService) Create(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CampaignResponse, *errors.AppError) {
	if req.Name == "" || req.Subject == "" || req.Body == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "name, subject and body are required", nil)
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = constants.DefaultEventDurationMinutes
	}

	if req.Settings != nil {
		base, appErr := s.baseSettings()
		if appErr != nil {
			return nil, appErr
		}
		if appErr := base.Apply(req.Settings).Validate(); appErr != nil {
			return nil, appErr
		}
	}

	ref, appErr := s.uniqueRef(ctx, req.Name)
	if appErr != nil {
		return nil, appErr
	}

	now := s.clock.Now()
	campaign := &entity.Campaign{
		BaseEntity: coreEntity.BaseEntity{
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:            req.Name,
		Ref:             ref,
		Subject:         req.Subject,
		Body:            req.Body,
		Location:        req.Location,
		DurationMinutes: duration,
		Settings:        req.Settings,
		Status:          entity.CampaignStatusDraft,
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create campaign", err)
	}

	if appErr := s.addProspects(ctx, campaign.ID, req.Prospects); appErr != nil {
		return nil, appErr
	}

	logger.Info("CampaignService:Create:Created",
		"campaign_id", campaign.ID,
		"ref", campaign.Ref,
		"prospects", len(req.Prospects),
	)
	resp := dto.ToCampaignResponse(campaign)
	return &resp, nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*dto.CampaignResponse, *errors.AppError) {
	campaign, appErr := s.loadCampaign(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	resp := dto.ToCampaignResponse(campaign)
	return &resp, nil
}

func (s *CampaignService) List(ctx context.Context, queryParams params.QueryParams) (*dto.PaginatedCampaignResponse, *errors.AppError) {
	page, err := s.repo.List(ctx, queryParams)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.ToCampaignResponse(&page.Items[i]))
	}

	return &dto.PaginatedCampaignResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// AddProspects appends recipients to an existing campaign.
func (s *CampaignService) AddProspects(ctx context.Context, campaignID uuid.UUID, req *dto.AddProspectsRequest) (int, *errors.AppError) {
	if len(req.Prospects) == 0 {
		return 0, errors.NewAppError(errors.ErrInvalidInput, "at least one prospect is required", nil)
	}
	if _, appErr := s.loadCampaign(ctx, campaignID); appErr != nil {
		return 0, appErr
	}
	if appErr := s.addProspects(ctx, campaignID, req.Prospects); appErr != nil {
		return 0, appErr
	}
	return len(req.Prospects), nil
}

// Start moves the campaign to running and enqueues a processing run. The
// status flips first so the queued task sees a running campaign; a failed
// enqueue rolls it back.
func (s *CampaignService) Start(ctx context.Context, id uuid.UUID) (*dto.CampaignResponse, *errors.AppError) {
	campaign, appErr := s.loadCampaign(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if !campaign.CanStart() {
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("campaign cannot start from status %q", campaign.Status), nil)
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, id, entity.CampaignStatusRunning, now); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to start campaign", err)
	}

	if s.enqueuer != nil {
		if appErr := s.enqueuer.EnqueueCampaign(ctx, id); appErr != nil {
			if err := s.repo.UpdateStatus(ctx, id, campaign.Status, s.clock.Now()); err != nil {
				logger.Error("CampaignService:Start:Rollback:Error:", err)
			}
			return nil, appErr
		}
	}

	logger.Info("CampaignService:Start:Enqueued", "campaign_id", id)
	campaign.Status = entity.CampaignStatusRunning
	campaign.UpdatedAt = now
	resp := dto.ToCampaignResponse(campaign)
	return &resp, nil
}

// Pause stops future processing runs. In-flight prospects finish their
// current dispatch.
func (s *CampaignService) Pause(ctx context.Context, id uuid.UUID) (*dto.CampaignResponse, *errors.AppError) {
	campaign, appErr := s.loadCampaign(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if campaign.Status != entity.CampaignStatusRunning {
		return nil, errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("only running campaigns can be paused, status is %q", campaign.Status), nil)
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, id, entity.CampaignStatusPaused, now); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to pause campaign", err)
	}

	logger.Info("CampaignService:Pause:Applied", "campaign_id", id)
	campaign.Status = entity.CampaignStatusPaused
	campaign.UpdatedAt = now
	resp := dto.ToCampaignResponse(campaign)
	return &resp, nil
}

// Stats aggregates the prospect pipeline and booking statuses.
func (s *CampaignService) Stats(ctx context.Context, id uuid.UUID) (*dto.CampaignStatsResponse, *errors.AppError) {
	campaign, appErr := s.loadCampaign(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	prospectCounts, err := s.repo.StatusCounts(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to count prospects", err)
	}

	bookingCounts, appErr := s.bookings.CountByCampaign(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	stats := &dto.CampaignStatsResponse{
		CampaignID: id,
		Status:     string(campaign.Status),
		Prospects:  make(map[string]int, len(prospectCounts)),
		Bookings:   make(map[string]int, len(bookingCounts)),
	}
	for status, n := range prospectCounts {
		stats.Prospects[string(status)] = n
	}
	for status, n := range bookingCounts {
		stats.Bookings[string(status)] = n
	}
	return stats, nil
}

// Bookings lists the campaign's booked slots.
func (s *CampaignService) Bookings(ctx context.Context, id uuid.UUID, queryParams params.QueryParams) (*bookingDto.PaginatedBookedSlotResponse, *errors.AppError) {
	if _, appErr := s.loadCampaign(ctx, id); appErr != nil {
		return nil, appErr
	}
	return s.bookings.ListByCampaign(ctx, id, queryParams)
}

// ListProspects pages through a campaign's prospects.
func (s *CampaignService) ListProspects(ctx context.Context, id uuid.UUID, queryParams params.QueryParams) (*dto.PaginatedProspectResponse, *errors.AppError) {
	if _, appErr := s.loadCampaign(ctx, id); appErr != nil {
		return nil, appErr
	}

	page, err := s.repo.ListProspects(ctx, id, queryParams)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list prospects", err)
	}

	items := make([]dto.ProspectResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.ToProspectResponse(&page.Items[i]))
	}

	return &dto.PaginatedProspectResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// RequeueProspect puts a parked prospect back in the pending queue so the
// next processing run picks it up again.
func (s *CampaignService) RequeueProspect(ctx context.Context, prospectID uuid.UUID) *errors.AppError {
	if err := s.repo.RequeueProspect(ctx, prospectID, s.clock.Now()); err != nil {
		if err == sql.ErrNoRows {
			return errors.NewAppError(errors.ErrInvalidInput,
				"prospect is not in a requeueable state", nil)
		}
		return errors.NewAppError(errors.ErrInternalServer, "Failed to requeue prospect", err)
	}
	logger.Info("CampaignService:RequeueProspect:Applied", "prospect_id", prospectID)
	return nil
}

// ResolveSettings merges the global defaults with the campaign's overrides.
// Satisfies the booking module's SettingsResolver.
func (s *CampaignService) ResolveSettings(ctx context.Context, campaignID *uuid.UUID) (scheduleEntity.SchedulingSettings, *errors.AppError) {
	base, appErr := s.baseSettings()
	if appErr != nil {
		return scheduleEntity.SchedulingSettings{}, appErr
	}
	if campaignID == nil {
		return base, nil
	}

	campaign, err := s.repo.GetByID(ctx, *campaignID)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Warn("CampaignService:ResolveSettings:CampaignGone", "campaign_id", *campaignID)
			return base, nil
		}
		return scheduleEntity.SchedulingSettings{}, errors.NewAppError(errors.ErrInternalServer, "Failed to load campaign settings", err)
	}
	return base.Apply(campaign.Settings), nil
}

// SyncProspectStatus mirrors a booking status change onto the prospect.
// Satisfies the booking module's ProspectSyncer.
func (s *CampaignService) SyncProspectStatus(ctx context.Context, prospectID uuid.UUID, status string) *errors.AppError {
	if !entity.ValidProspectStatus(status) {
		return errors.NewAppError(errors.ErrInvalidInput,
			fmt.Sprintf("unknown prospect status %q", status), nil)
	}
	if err := s.repo.UpdateProspectStatus(ctx, prospectID, entity.ProspectStatus(status), nil, s.clock.Now()); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to sync prospect status", err)
	}
	return nil
}

func (s *CampaignService) addProspects(ctx context.Context, campaignID uuid.UUID, inputs []dto.ProspectInput) *errors.AppError {
	if len(inputs) == 0 {
		return nil
	}

	now := s.clock.Now()
	prospects := make([]entity.Prospect, 0, len(inputs))
	for _, in := range inputs {
		if in.Email == "" {
			return errors.NewAppError(errors.ErrInvalidInput, "prospect email is required", nil)
		}
		prospects = append(prospects, entity.Prospect{
			BaseEntity: coreEntity.BaseEntity{
				CreatedAt: now,
				UpdatedAt: now,
			},
			CampaignID: campaignID,
			Email:      in.Email,
			Name:       in.Name,
			Timezone:   in.Timezone,
			Status:     entity.ProspectStatusPending,
		})
	}

	if err := s.repo.AddProspects(ctx, prospects); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to add prospects", err)
	}
	return nil
}

// uniqueRef derives a URL-safe ref from the campaign name, suffixing a short
// id when the plain slug is already taken.
func (s *CampaignService) uniqueRef(ctx context.Context, name string) (string, *errors.AppError) {
	ref := slug.Make(name)
	if ref == "" {
		ref = strings.ToLower(utils.GenerateID())
	}

	if _, err := s.repo.GetByRef(ctx, ref); err == sql.ErrNoRows {
		return ref, nil
	} else if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "Failed to check campaign ref", err)
	}

	return ref + "-" + strings.ToLower(utils.GenerateID()), nil
}

func (s *CampaignService) baseSettings() (scheduleEntity.SchedulingSettings, *errors.AppError) {
	cfg, ok := config.GetSafe()
	if !ok {
		return scheduleEntity.SchedulingSettings{}, errors.NewAppError(errors.ErrInternalServer, "Server configuration not initialized", nil)
	}
	return scheduleEntity.DefaultSettings(cfg.Scheduling), nil
}

func (s *CampaignService) loadCampaign(ctx context.Context, id uuid.UUID) (*entity.Campaign, *errors.AppError) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNotFound, "campaign not found", nil)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load campaign", err)
	}
	return campaign, nil
}
