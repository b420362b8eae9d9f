package entity

import "time"

// CandidateSlot is the outcome of one slot computation.
type CandidateSlot struct {
	// TimeUTC is the send instant, converted from the recipient's local time.
	TimeUTC time.Time
	// LeadTimeDays is the business-day distance from now actually used.
	LeadTimeDays int
	// WasDoubleBooked marks a deliberate collision (double booking allowed,
	// or fallback policy force).
	WasDoubleBooked bool
	// NeedsAttention marks a slot produced by the needs_attention fallback;
	// the booking keeps that status instead of pending.
	NeedsAttention bool
	// TimezoneFallback marks that the recipient timezone was unknown and the
	// slot was computed in UTC. The booking is flagged for review.
	TimezoneFallback bool
}
