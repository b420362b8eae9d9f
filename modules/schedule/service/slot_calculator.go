package service

import (
	"math/rand"
	"time"

	"inviteflow/core/constants"
	"inviteflow/core/errors"
	"inviteflow/modules/schedule/entity"
)

// SlotCalculator computes candidate send times. It is pure: every call works
// only from its arguments, so identical inputs (including the rng state)
// produce identical slots.
type SlotCalculator struct{}

// NewSlotCalculator creates a new slot calculator
func NewSlotCalculator() *SlotCalculator {
	return &SlotCalculator{}
}

// ComputeSlot picks a send instant for one recipient.
// The candidate date starts at the minimum lead time in business days and
// advances one business day per conflict retry, never past the maximum lead
// time. Only the time of day is randomized: an hour uniform in the preferred
// window and a minute snapped to the 15-minute grid, both interpreted in the
// recipient's timezone.
func (c *SlotCalculator) ComputeSlot(
	settings entity.SchedulingSettings,
	recipientTimezone string,
	now time.Time,
	existingBookings []time.Time,
	rng *rand.Rand,
) (*entity.CandidateSlot, *errors.AppError) {

	// 1. Reject settings that can never produce a slot
	if appErr := settings.Validate(); appErr != nil {
		return nil, appErr
	}

	// 2. Resolve the recipient's calendar; unknown zones fall back to UTC
	loc, tzFallback := c.loadLocation(recipientTimezone)
	local := now.In(loc)

	booked := make(map[int64]struct{}, len(existingBookings))
	for _, t := range existingBookings {
		booked[t.Unix()] = struct{}{}
	}

	// 3. Walk the lead-time window, one business day per retry
	lead := settings.MinLeadTimeDays
	day := c.addBusinessDays(local, lead, settings.ExcludeWeekends)

	var lastCandidate time.Time
	var lastLead int

	for attempt := 0; attempt <= constants.SlotConflictRetries; attempt++ {
		candidate := c.randomTimeOn(day, settings, rng).UTC()
		lastCandidate = candidate
		lastLead = lead

		if _, conflict := booked[candidate.Unix()]; !conflict {
			return &entity.CandidateSlot{
				TimeUTC:          candidate,
				LeadTimeDays:     lead,
				TimezoneFallback: tzFallback,
			}, nil
		}

		if settings.AllowDoubleBooking {
			return &entity.CandidateSlot{
				TimeUTC:          candidate,
				LeadTimeDays:     lead,
				WasDoubleBooked:  true,
				TimezoneFallback: tzFallback,
			}, nil
		}

		if lead < settings.MaxLeadTimeDays {
			lead++
			day = c.addBusinessDays(day, 1, settings.ExcludeWeekends)
		}
	}

	// 4. Retries exhausted, apply the fallback policy
	switch settings.FallbackPolicy {
	case constants.FallbackForce:
		return &entity.CandidateSlot{
			TimeUTC:          lastCandidate,
			LeadTimeDays:     lastLead,
			WasDoubleBooked:  true,
			TimezoneFallback: tzFallback,
		}, nil
	case constants.FallbackNeedsAttention:
		return &entity.CandidateSlot{
			TimeUTC:          lastCandidate,
			LeadTimeDays:     lastLead,
			WasDoubleBooked:  true,
			NeedsAttention:   true,
			TimezoneFallback: tzFallback,
		}, nil
	default:
		return nil, errors.NewAppError(errors.ErrNoSlotAvailable,
			"no conflict-free slot within the lead-time window", nil)
	}
}

// loadLocation resolves an IANA zone name, falling back to UTC when the zone
// is empty or unknown.
func (c *SlotCalculator) loadLocation(name string) (*time.Location, bool) {
	if name == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}

// randomTimeOn places a random grid time on the given local day.
func (c *SlotCalculator) randomTimeOn(day time.Time, settings entity.SchedulingSettings, rng *rand.Rand) time.Time {
	hour := settings.PreferredStartHour + rng.Intn(settings.PreferredEndHour-settings.PreferredStartHour)
	minute := constants.SlotMinuteGrid * rng.Intn(60/constants.SlotMinuteGrid)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// addBusinessDays advances t by n days, not counting Saturdays and Sundays
// when weekends are excluded. A zero-day addition still rolls a weekend start
// forward to the next business day.
func (c *SlotCalculator) addBusinessDays(t time.Time, days int, excludeWeekends bool) time.Time {
	if !excludeWeekends {
		return t.AddDate(0, 0, days)
	}
	for days > 0 {
		t = t.AddDate(0, 0, 1)
		if c.isWeekend(t) {
			continue
		}
		days--
	}
	for c.isWeekend(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func (c *SlotCalculator) isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
