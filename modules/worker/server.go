package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"inviteflow/core/config"
	"inviteflow/core/constants"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
	campaignService "inviteflow/modules/campaign/service"
	inboxService "inviteflow/modules/inbox/service"
)

// CampaignProcessor runs a full processing pass over a campaign. Implemented
// by the campaign module's ProcessorService.
type CampaignProcessor interface {
	ProcessCampaign(ctx context.Context, campaignID uuid.UUID) (*campaignService.ProcessReport, *errors.AppError)
}

// Server consumes queued tasks and runs the scheduled maintenance jobs. The
// daily counter reset fires on the configured cron expression in the
// configured timezone.
type Server struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	cron     *cron.Cron
	registry *inboxService.RegistryService
}

func NewServer(cfg *config.Config, processor CampaignProcessor, registry *inboxService.RegistryService) (*Server, error) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				constants.QueueCampaigns: 6,
				constants.QueueDispatch:  4,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCampaignProcess, handleCampaignProcess(processor))

	loc, err := time.LoadLocation(cfg.Worker.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load worker timezone %q: %w", cfg.Worker.Timezone, err)
	}

	s := &Server{
		srv:      srv,
		mux:      mux,
		cron:     cron.New(cron.WithLocation(loc)),
		registry: registry,
	}

	if _, err := s.cron.AddFunc(cfg.Worker.ResetCron, s.resetDaily); err != nil {
		return nil, fmt.Errorf("schedule daily reset %q: %w", cfg.Worker.ResetCron, err)
	}

	return s, nil
}

// Start launches the cron scheduler and the task processing pool. It returns
// once both are running; Shutdown drains them.
func (s *Server) Start() error {
	s.cron.Start()
	if err := s.srv.Start(s.mux); err != nil {
		return err
	}
	logger.Info("WorkerServer:Start:Running")
	return nil
}

func (s *Server) Shutdown() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.srv.Shutdown()
	logger.Info("WorkerServer:Shutdown:Done")
}

func (s *Server) resetDaily() {
	if appErr := s.registry.ResetDaily(context.Background()); appErr != nil {
		logger.Error("WorkerServer:ResetDaily:Error:", appErr.Err, "code", appErr.Code)
		return
	}
	logger.Info("WorkerServer:ResetDaily:Applied")
}

// handleCampaignProcess adapts ProcessCampaign to an asynq handler. Malformed
// payloads and configuration errors are not retried; transient failures are
// returned as-is so asynq applies its retry policy.
func handleCampaignProcess(processor CampaignProcessor) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		campaignID, err := parseCampaignPayload(task.Payload())
		if err != nil {
			logger.Error("WorkerServer:CampaignProcess:Payload:Error:", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		report, appErr := processor.ProcessCampaign(ctx, campaignID)
		if appErr != nil {
			logger.Error("WorkerServer:CampaignProcess:Error:", appErr.Err,
				"campaign_id", campaignID,
				"code", appErr.Code,
			)
			if appErr.Code == errors.ErrInvalidConfiguration || appErr.Code == errors.ErrNotFound {
				return fmt.Errorf("%s: %w", appErr.Message, asynq.SkipRetry)
			}
			return appErr
		}

		logger.Info("WorkerServer:CampaignProcess:Done",
			"campaign_id", campaignID,
			"processed", report.Processed,
			"sent", report.Sent,
			"parked", report.Parked,
		)
		return nil
	}
}
