package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"inviteflow/core/constants"
)

// TypeCampaignProcess is the task type for a full campaign processing run:
// reserve slots for every pending prospect and dispatch the invites.
const TypeCampaignProcess = "campaign:process"

type campaignPayload struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

// NewCampaignTask builds the asynq task that triggers a processing run for
// the given campaign. Runs are idempotent, so enqueuing the same campaign
// twice is harmless: the second run finds no pending prospects.
func NewCampaignTask(campaignID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(campaignPayload{CampaignID: campaignID})
	if err != nil {
		return nil, fmt.Errorf("marshal campaign payload: %w", err)
	}
	return asynq.NewTask(TypeCampaignProcess, payload, asynq.Queue(constants.QueueCampaigns)), nil
}

func parseCampaignPayload(data []byte) (uuid.UUID, error) {
	var p campaignPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal campaign payload: %w", err)
	}
	if p.CampaignID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("campaign payload missing campaign_id")
	}
	return p.CampaignID, nil
}
