package entity

import (
	"time"

	"inviteflow/core/entity"
	scheduleEntity "inviteflow/modules/schedule/entity"
)

// Provider kinds an inbox can be connected through.
const (
	ProviderGoogle      = "google"
	ProviderMicrosoft   = "microsoft"
	ProviderAppPassword = "app-password"
)

// Derived availability states, computed from the stored fields at read time.
const (
	StatusActive         = "active"
	StatusCooldown       = "cooldown"
	StatusPaused         = "paused"
	StatusQuotaExhausted = "quota_exhausted"
	StatusDisabled       = "disabled"
)

// Inbox is a connected sending identity. The stored fields are the single
// source of truth; pause and quota exhaustion are derived views, never
// persisted as separate states.
type Inbox struct {
	entity.BaseEntity
	Email                 string     `db:"email" json:"email"`
	DisplayName           string     `db:"display_name" json:"display_name,omitempty"`
	ProviderKind          string     `db:"provider_kind" json:"provider_kind"` // "google" | "microsoft" | "app-password"
	Active                bool       `db:"active" json:"active"`
	DailyQuota            int        `db:"daily_quota" json:"daily_quota"`
	SentToday             int        `db:"sent_today" json:"sent_today"`
	LastUsedAt            *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CooldownUntil         *time.Time `db:"cooldown_until" json:"cooldown_until,omitempty"`
	HealthScore           int        `db:"health_score" json:"health_score"`
	ConsecutiveErrorCount int        `db:"consecutive_error_count" json:"consecutive_error_count"`
	PausedReason          *string    `db:"paused_reason" json:"paused_reason,omitempty"`
	Credential            string     `db:"credential" json:"-"`
	SMTPHost              string     `db:"smtp_host" json:"smtp_host,omitempty"`
	SMTPPort              int        `db:"smtp_port" json:"smtp_port,omitempty"`
}

func (Inbox) TableName() string {
	return "inboxes"
}

// IsAvailable is the selection predicate: active, not paused, cooled down,
// under quota and healthy enough for the given settings.
func (i *Inbox) IsAvailable(settings scheduleEntity.SchedulingSettings, now time.Time) bool {
	if !i.Active || i.PausedReason != nil {
		return false
	}
	if i.CooldownUntil != nil && now.Before(*i.CooldownUntil) {
		return false
	}
	if i.SentToday >= i.DailyQuota {
		return false
	}
	return i.HealthScore >= settings.HealthThreshold
}

// Status derives the read-only state for operators.
func (i *Inbox) Status(now time.Time) string {
	switch {
	case !i.Active:
		return StatusDisabled
	case i.PausedReason != nil:
		return StatusPaused
	case i.CooldownUntil != nil && now.Before(*i.CooldownUntil):
		return StatusCooldown
	case i.SentToday >= i.DailyQuota:
		return StatusQuotaExhausted
	default:
		return StatusActive
	}
}

type PaginatedInboxEntity = entity.Pagination[Inbox]
