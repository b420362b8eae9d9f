package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"inviteflow/core/config"
	"inviteflow/core/errors"
	"inviteflow/core/logger"
)

// Client enqueues background tasks. It satisfies the campaign module's
// Enqueuer interface.
type Client struct {
	inner *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueCampaign schedules a processing run for the campaign.
func (c *Client) EnqueueCampaign(ctx context.Context, campaignID uuid.UUID) *errors.AppError {
	task, err := NewCampaignTask(campaignID)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to build campaign task", err)
	}

	info, err := c.inner.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("WorkerClient:EnqueueCampaign:Enqueue:Error:", err, "campaign_id", campaignID)
		return errors.NewAppError(errors.ErrInternalServer, "Failed to enqueue campaign run", err)
	}

	logger.Info("WorkerClient:EnqueueCampaign:Enqueued",
		"campaign_id", campaignID,
		"task_id", info.ID,
		"queue", info.Queue,
	)
	return nil
}

func (c *Client) Close() error {
	return c.inner.Close()
}
