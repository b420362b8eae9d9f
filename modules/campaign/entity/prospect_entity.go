package entity

import (
	"inviteflow/core/entity"

	"github.com/google/uuid"
)

type ProspectStatus string

const (
	ProspectStatusPending        ProspectStatus = "pending"
	ProspectStatusScheduled      ProspectStatus = "scheduled"
	ProspectStatusSent           ProspectStatus = "sent"
	ProspectStatusAccepted       ProspectStatus = "accepted"
	ProspectStatusDeclined       ProspectStatus = "declined"
	ProspectStatusTentative      ProspectStatus = "tentative"
	ProspectStatusNeedsAttention ProspectStatus = "needs_attention"
	ProspectStatusCanceled       ProspectStatus = "canceled"
)

// Prospect is one recipient inside a campaign. Status follows the send
// pipeline first (pending, scheduled, sent) and the recipient's RSVP after.
type Prospect struct {
	entity.BaseEntity
	CampaignID   uuid.UUID      `db:"campaign_id" json:"campaign_id"`
	Email        string         `db:"email" json:"email"`
	Name         string         `db:"name" json:"name,omitempty"`
	Timezone     string         `db:"timezone" json:"timezone,omitempty"`
	Status       ProspectStatus `db:"status" json:"status"`
	AttemptCount int            `db:"attempt_count" json:"attempt_count"`
	LastError    *string        `db:"last_error" json:"last_error,omitempty"`
}

func (Prospect) TableName() string {
	return "prospects"
}

type PaginatedProspectEntity = entity.Pagination[Prospect]

// ValidProspectStatus reports whether s is one of the known statuses.
func ValidProspectStatus(s string) bool {
	switch ProspectStatus(s) {
	case ProspectStatusPending, ProspectStatusScheduled, ProspectStatusSent,
		ProspectStatusAccepted, ProspectStatusDeclined, ProspectStatusTentative,
		ProspectStatusNeedsAttention, ProspectStatusCanceled:
		return true
	}
	return false
}
