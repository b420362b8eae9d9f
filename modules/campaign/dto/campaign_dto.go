package dto

import (
	"time"

	"inviteflow/core/entity"
	campaignEntity "inviteflow/modules/campaign/entity"
	scheduleEntity "inviteflow/modules/schedule/entity"

	"github.com/google/uuid"
)

type ProspectInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type CreateCampaignRequest struct {
	Name            string                            `json:"name" validate:"required"`
	Subject         string                            `json:"subject" validate:"required"`
	Body            string                            `json:"body" validate:"required"`
	Location        string                            `json:"location"`
	DurationMinutes int                               `json:"duration_minutes" validate:"min=15,max=480"`
	Settings        *scheduleEntity.SettingsOverrides `json:"settings,omitempty"`
	Prospects       []ProspectInput                   `json:"prospects"`
}

type AddProspectsRequest struct {
	Prospects []ProspectInput `json:"prospects" validate:"required,min=1"`
}

type CampaignResponse struct {
	ID              uuid.UUID                         `json:"id"`
	Name            string                            `json:"name"`
	Ref             string                            `json:"ref"`
	Subject         string                            `json:"subject"`
	Body            string                            `json:"body"`
	Location        string                            `json:"location,omitempty"`
	DurationMinutes int                               `json:"duration_minutes"`
	Settings        *scheduleEntity.SettingsOverrides `json:"settings,omitempty"`
	Status          string                            `json:"status"`
	CreatedAt       time.Time                         `json:"created_at"`
	UpdatedAt       time.Time                         `json:"updated_at"`
}

type ProspectResponse struct {
	ID           uuid.UUID `json:"id"`
	CampaignID   uuid.UUID `json:"campaign_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	Status       string    `json:"status"`
	AttemptCount int       `json:"attempt_count"`
	LastError    *string   `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CampaignStatsResponse aggregates the prospect pipeline and the booking
// statuses (RSVP splits included) for one campaign.
type CampaignStatsResponse struct {
	CampaignID uuid.UUID      `json:"campaign_id"`
	Status     string         `json:"status"`
	Prospects  map[string]int `json:"prospects"`
	Bookings   map[string]int `json:"bookings"`
}

type PaginatedCampaignResponse = entity.Pagination[CampaignResponse]

type PaginatedProspectResponse = entity.Pagination[ProspectResponse]

func ToCampaignResponse(c *campaignEntity.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:              c.ID,
		Name:            c.Name,
		Ref:             c.Ref,
		Subject:         c.Subject,
		Body:            c.Body,
		Location:        c.Location,
		DurationMinutes: c.DurationMinutes,
		Settings:        c.Settings,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func ToProspectResponse(p *campaignEntity.Prospect) ProspectResponse {
	return ProspectResponse{
		ID:           p.ID,
		CampaignID:   p.CampaignID,
		Email:        p.Email,
		Name:         p.Name,
		Timezone:     p.Timezone,
		Status:       string(p.Status),
		AttemptCount: p.AttemptCount,
		LastError:    p.LastError,
		UpdatedAt:    p.UpdatedAt,
	}
}
