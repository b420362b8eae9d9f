package entity

import (
	"time"

	"inviteflow/core/entity"

	"github.com/google/uuid"
)

// SlotStatus is the lifecycle state of a booked slot.
type SlotStatus string

const (
	// SlotStatusPending means the slot is reserved but the invite has not gone out yet.
	SlotStatusPending SlotStatus = "pending"
	// SlotStatusSent means the invite was delivered to the provider.
	SlotStatusSent SlotStatus = "sent"
	// RSVP outcomes reported back by the recipient's calendar client.
	SlotStatusAccepted  SlotStatus = "accepted"
	SlotStatusDeclined  SlotStatus = "declined"
	SlotStatusTentative SlotStatus = "tentative"
	// SlotStatusNeedsAttention flags the slot for operator review.
	SlotStatusNeedsAttention SlotStatus = "needs_attention"
	// SlotStatusCanceled releases the scheduled instant.
	SlotStatusCanceled SlotStatus = "canceled"
)

// BookedSlot is one reserved send: an inbox committed to mail one recipient
// a calendar invite at a specific UTC instant. A pending or sent slot holds
// the instant; canceled and needs_attention slots release it.
type BookedSlot struct {
	entity.BaseEntity
	InboxID           uuid.UUID  `db:"inbox_id" json:"inbox_id"`
	CampaignID        *uuid.UUID `db:"campaign_id" json:"campaign_id,omitempty"`
	ProspectID        *uuid.UUID `db:"prospect_id" json:"prospect_id,omitempty"`
	RecipientEmail    string     `db:"recipient_email" json:"recipient_email"`
	RecipientTimezone string     `db:"recipient_timezone" json:"recipient_timezone"`
	ScheduledTimeUTC  time.Time  `db:"scheduled_time_utc" json:"scheduled_time_utc"`
	LeadTimeDays      int        `db:"lead_time_days" json:"lead_time_days"`
	WasDoubleBooked   bool       `db:"was_double_booked" json:"was_double_booked"`
	NeedsReview       bool       `db:"needs_review" json:"needs_review"`
	Status            SlotStatus `db:"status" json:"status"`
	StatusReason      *string    `db:"status_reason" json:"status_reason,omitempty"`
	RescheduledCount  int        `db:"rescheduled_count" json:"rescheduled_count"`
	InviteUID         string     `db:"invite_uid" json:"invite_uid"`
	CalendarEventID   *string    `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
}

func (BookedSlot) TableName() string {
	return "booked_slots"
}

// HoldsInstant reports whether the slot still occupies its scheduled time
// for double-booking purposes.
func (s *BookedSlot) HoldsInstant() bool {
	return s.Status == SlotStatusPending || s.Status == SlotStatusSent
}

// CanReceiveRSVP reports whether an RSVP update is meaningful for the slot.
// Invites answer after they were sent; a second RSVP may overwrite the first
// because recipients change their minds.
func (s *BookedSlot) CanReceiveRSVP() bool {
	switch s.Status {
	case SlotStatusSent, SlotStatusAccepted, SlotStatusDeclined, SlotStatusTentative:
		return true
	default:
		return false
	}
}

type PaginatedBookedSlotEntity = entity.Pagination[BookedSlot]
