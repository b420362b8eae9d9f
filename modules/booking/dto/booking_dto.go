package dto

import (
	"time"

	"inviteflow/core/entity"
	bookingEntity "inviteflow/modules/booking/entity"

	"github.com/google/uuid"
)

type RSVPRequest struct {
	Response string `json:"response" validate:"required,oneof=accepted declined tentative"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type BookedSlotResponse struct {
	ID                uuid.UUID  `json:"id"`
	InboxID           uuid.UUID  `json:"inbox_id"`
	CampaignID        *uuid.UUID `json:"campaign_id,omitempty"`
	ProspectID        *uuid.UUID `json:"prospect_id,omitempty"`
	RecipientEmail    string     `json:"recipient_email"`
	RecipientTimezone string     `json:"recipient_timezone"`
	ScheduledTimeUTC  time.Time  `json:"scheduled_time_utc"`
	LeadTimeDays      int        `json:"lead_time_days"`
	WasDoubleBooked   bool       `json:"was_double_booked"`
	NeedsReview       bool       `json:"needs_review"`
	Status            string     `json:"status"`
	StatusReason      *string    `json:"status_reason,omitempty"`
	RescheduledCount  int        `json:"rescheduled_count"`
	InviteUID         string     `json:"invite_uid"`
	CalendarEventID   *string    `json:"calendar_event_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type PaginatedBookedSlotResponse = entity.Pagination[BookedSlotResponse]

func ToBookedSlotResponse(slot *bookingEntity.BookedSlot) BookedSlotResponse {
	return BookedSlotResponse{
		ID:                slot.ID,
		InboxID:           slot.InboxID,
		CampaignID:        slot.CampaignID,
		ProspectID:        slot.ProspectID,
		RecipientEmail:    slot.RecipientEmail,
		RecipientTimezone: slot.RecipientTimezone,
		ScheduledTimeUTC:  slot.ScheduledTimeUTC,
		LeadTimeDays:      slot.LeadTimeDays,
		WasDoubleBooked:   slot.WasDoubleBooked,
		NeedsReview:       slot.NeedsReview,
		Status:            string(slot.Status),
		StatusReason:      slot.StatusReason,
		RescheduledCount:  slot.RescheduledCount,
		InviteUID:         slot.InviteUID,
		CalendarEventID:   slot.CalendarEventID,
		CreatedAt:         slot.CreatedAt,
		UpdatedAt:         slot.UpdatedAt,
	}
}
