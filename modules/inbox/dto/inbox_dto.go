package dto

import (
	"time"

	"inviteflow/core/entity"
	inboxEntity "inviteflow/modules/inbox/entity"

	"github.com/google/uuid"
)

type ConnectInboxRequest struct {
	Email        string `json:"email" validate:"required,email"`
	DisplayName  string `json:"display_name"`
	ProviderKind string `json:"provider_kind" validate:"required"`
	// Credential is the app password or provider token reference. Sealed
	// before it reaches storage, never returned.
	Credential string `json:"credential"`
	SMTPHost   string `json:"smtp_host"`
	SMTPPort   int    `json:"smtp_port"`
	DailyQuota int    `json:"daily_quota"`
}

type PauseInboxRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type InboxResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	DisplayName           string     `json:"display_name,omitempty"`
	ProviderKind          string     `json:"provider_kind"`
	Status                string     `json:"status"`
	Active                bool       `json:"active"`
	DailyQuota            int        `json:"daily_quota"`
	SentToday             int        `json:"sent_today"`
	LastUsedAt            *time.Time `json:"last_used_at,omitempty"`
	CooldownUntil         *time.Time `json:"cooldown_until,omitempty"`
	HealthScore           int        `json:"health_score"`
	ConsecutiveErrorCount int        `json:"consecutive_error_count"`
	PausedReason          *string    `json:"paused_reason,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type PaginatedInboxResponse = entity.Pagination[InboxResponse]

func ToInboxResponse(inbox *inboxEntity.Inbox, now time.Time) InboxResponse {
	return InboxResponse{
		ID:                    inbox.ID,
		Email:                 inbox.Email,
		DisplayName:           inbox.DisplayName,
		ProviderKind:          inbox.ProviderKind,
		Status:                inbox.Status(now),
		Active:                inbox.Active,
		DailyQuota:            inbox.DailyQuota,
		SentToday:             inbox.SentToday,
		LastUsedAt:            inbox.LastUsedAt,
		CooldownUntil:         inbox.CooldownUntil,
		HealthScore:           inbox.HealthScore,
		ConsecutiveErrorCount: inbox.ConsecutiveErrorCount,
		PausedReason:          inbox.PausedReason,
		CreatedAt:             inbox.CreatedAt,
	}
}
