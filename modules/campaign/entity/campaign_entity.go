package entity

import (
	"inviteflow/core/entity"
	scheduleEntity "inviteflow/modules/schedule/entity"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign groups prospects under one invite template. Settings holds the
// campaign's partial override of the global scheduling defaults; nil means
// the defaults apply untouched.
type Campaign struct {
	entity.BaseEntity
	Name            string                            `db:"name" json:"name"`
	Ref             string                            `db:"ref" json:"ref"`
	Subject         string                            `db:"subject" json:"subject"`
	Body            string                            `db:"body" json:"body"`
	Location        string                            `db:"location" json:"location,omitempty"`
	DurationMinutes int                               `db:"duration_minutes" json:"duration_minutes"`
	Settings        *scheduleEntity.SettingsOverrides `db:"settings" json:"settings,omitempty"`
	Status          CampaignStatus                    `db:"status" json:"status"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// CanStart reports whether a start request is valid from the current status.
func (c *Campaign) CanStart() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPaused
}

type PaginatedCampaignEntity = entity.Pagination[Campaign]
