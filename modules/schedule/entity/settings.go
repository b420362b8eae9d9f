package entity

import (
	"database/sql/driver"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"inviteflow/core/config"
	"inviteflow/core/constants"
	"inviteflow/core/errors"
)

// SchedulingSettings is the immutable snapshot every engine call receives.
// Values come from the global config, optionally overridden per campaign.
type SchedulingSettings struct {
	MinLeadTimeDays      int    `json:"min_lead_time_days"`
	MaxLeadTimeDays      int    `json:"max_lead_time_days"`
	PreferredStartHour   int    `json:"preferred_start_hour"`
	PreferredEndHour     int    `json:"preferred_end_hour"`
	ExcludeWeekends      bool   `json:"exclude_weekends"`
	AllowDoubleBooking   bool   `json:"allow_double_booking"`
	FallbackPolicy       string `json:"fallback_policy"`
	CooldownMinutes      int    `json:"cooldown_minutes"`
	MaxErrorsBeforePause int    `json:"max_errors_before_pause"`
	HealthThreshold      int    `json:"health_threshold"`
}

// Validate fails fast on settings that can never produce a slot.
func (s SchedulingSettings) Validate() *errors.AppError {
	if s.MinLeadTimeDays < 0 {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("min lead time must not be negative, got %d", s.MinLeadTimeDays), nil)
	}
	if s.MinLeadTimeDays > s.MaxLeadTimeDays {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("min lead time %d exceeds max lead time %d", s.MinLeadTimeDays, s.MaxLeadTimeDays), nil)
	}
	if s.PreferredStartHour < 0 || s.PreferredEndHour > 24 || s.PreferredStartHour >= s.PreferredEndHour {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("invalid sending hour window %d-%d", s.PreferredStartHour, s.PreferredEndHour), nil)
	}
	if s.CooldownMinutes < 0 {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("cooldown minutes must not be negative, got %d", s.CooldownMinutes), nil)
	}
	if s.MaxErrorsBeforePause < 1 {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("max errors before pause must be positive, got %d", s.MaxErrorsBeforePause), nil)
	}
	if s.HealthThreshold < constants.HealthMin || s.HealthThreshold > constants.HealthMax {
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("health threshold must be within %d-%d, got %d", constants.HealthMin, constants.HealthMax, s.HealthThreshold), nil)
	}
	switch s.FallbackPolicy {
	case constants.FallbackSkip, constants.FallbackForce, constants.FallbackNeedsAttention:
	default:
		return errors.NewAppError(errors.ErrInvalidConfiguration,
			fmt.Sprintf("unknown fallback policy %q", s.FallbackPolicy), nil)
	}
	return nil
}

// DefaultSettings builds the global snapshot from config.
func DefaultSettings(cfg config.SchedulingConfig) SchedulingSettings {
	return SchedulingSettings{
		MinLeadTimeDays:      cfg.MinLeadDays,
		MaxLeadTimeDays:      cfg.MaxLeadDays,
		PreferredStartHour:   cfg.StartHour,
		PreferredEndHour:     cfg.EndHour,
		ExcludeWeekends:      cfg.ExcludeWeekends,
		AllowDoubleBooking:   cfg.AllowDoubleBooking,
		FallbackPolicy:       cfg.FallbackPolicy,
		CooldownMinutes:      cfg.CooldownMinutes,
		MaxErrorsBeforePause: cfg.MaxConsecutiveErrors,
		HealthThreshold:      cfg.HealthThreshold,
	}
}

// SettingsOverrides is the per-campaign partial override, stored as JSONB.
// Nil fields inherit the global value.
type SettingsOverrides struct {
	MinLeadTimeDays      *int    `json:"min_lead_time_days,omitempty"`
	MaxLeadTimeDays      *int    `json:"max_lead_time_days,omitempty"`
	PreferredStartHour   *int    `json:"preferred_start_hour,omitempty"`
	PreferredEndHour     *int    `json:"preferred_end_hour,omitempty"`
	ExcludeWeekends      *bool   `json:"exclude_weekends,omitempty"`
	AllowDoubleBooking   *bool   `json:"allow_double_booking,omitempty"`
	FallbackPolicy       *string `json:"fallback_policy,omitempty"`
	CooldownMinutes      *int    `json:"cooldown_minutes,omitempty"`
	MaxErrorsBeforePause *int    `json:"max_errors_before_pause,omitempty"`
	HealthThreshold      *int    `json:"health_threshold,omitempty"`
}

func (o SettingsOverrides) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *SettingsOverrides) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return stderrors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &o)
}

// Apply merges the overrides onto a base snapshot.
func (s SchedulingSettings) Apply(o *SettingsOverrides) SchedulingSettings {
	if o == nil {
		return s
	}
	if o.MinLeadTimeDays != nil {
		s.MinLeadTimeDays = *o.MinLeadTimeDays
	}
	if o.MaxLeadTimeDays != nil {
		s.MaxLeadTimeDays = *o.MaxLeadTimeDays
	}
	if o.PreferredStartHour != nil {
		s.PreferredStartHour = *o.PreferredStartHour
	}
	if o.PreferredEndHour != nil {
		s.PreferredEndHour = *o.PreferredEndHour
	}
	if o.ExcludeWeekends != nil {
		s.ExcludeWeekends = *o.ExcludeWeekends
	}
	if o.AllowDoubleBooking != nil {
		s.AllowDoubleBooking = *o.AllowDoubleBooking
	}
	if o.FallbackPolicy != nil {
		s.FallbackPolicy = *o.FallbackPolicy
	}
	if o.CooldownMinutes != nil {
		s.CooldownMinutes = *o.CooldownMinutes
	}
	if o.MaxErrorsBeforePause != nil {
		s.MaxErrorsBeforePause = *o.MaxErrorsBeforePause
	}
	if o.HealthThreshold != nil {
		s.HealthThreshold = *o.HealthThreshold
	}
	return s
}
