package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"inviteflow/core/database"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/modules/booking/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BookingRepositoryInterface interface {
	Create(ctx context.Context, slot *entity.BookedSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BookedSlot, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, params params.QueryParams) (*entity.PaginatedBookedSlotEntity, error)
	ListScheduledTimes(ctx context.Context, inboxID uuid.UUID, from time.Time) ([]time.Time, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.SlotStatus, reason *string, now time.Time) error
	MarkSent(ctx context.Context, id uuid.UUID, calendarEventID *string, now time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time, leadTimeDays int, wasDoubleBooked, needsReview bool, now time.Time) error
	ReleasePendingByInbox(ctx context.Context, inboxID uuid.UUID, reason string, now time.Time) (int, []uuid.UUID, error)
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (map[entity.SlotStatus]int, error)
}

type BookingRepository struct {
	db database.Database
}

func NewBookingRepository(db database.Database) *BookingRepository {
	return &BookingRepository{db: db}
}

// IsUniqueViolation reports whether err is the partial unique index on
// (inbox_id, scheduled_time_utc) rejecting a concurrent insert for the
// same instant.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

func (r *BookingRepository) Create(ctx context.Context, slot *entity.BookedSlot) error {
	query := `
		INSERT INTO booked_slots (inbox_id, campaign_id, prospect_id, recipient_email,
			recipient_timezone, scheduled_time_utc, lead_time_days, was_double_booked,
			needs_review, status, status_reason, rescheduled_count, invite_uid,
			calendar_event_id, created_at, updated_at)
		VALUES (:inbox_id, :campaign_id, :prospect_id, :recipient_email,
			:recipient_timezone, :scheduled_time_utc, :lead_time_days, :was_double_booked,
			:needs_review, :status, :status_reason, :rescheduled_count, :invite_uid,
			:calendar_event_id, :created_at, :updated_at)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, slot)
	if err != nil {
		if !IsUniqueViolation(err) {
			logger.Error("BookingRepository:Create:Error:", err)
		}
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&slot.ID)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.BookedSlot, error) {
	var slot entity.BookedSlot
	query := `SELECT * FROM booked_slots WHERE id = $1`
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("BookingRepository:GetByID:Error:", err)
		}
		return nil, err
	}
	return &slot, nil
}

func (r *BookingRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, params params.QueryParams) (*entity.PaginatedBookedSlotEntity, error) {
	offset := (params.PageNumber - 1) * params.PageSize

	baseQuery := `FROM booked_slots`

	whereClause := " WHERE campaign_id = $1"
	args := []interface{}{campaignID}
	argIndex := 2

	if params.Search != "" {
		whereClause += fmt.Sprintf(" AND recipient_email ILIKE $%d", argIndex)
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery+whereClause, args...); err != nil {
		logger.Error("BookingRepository:ListByCampaign:Count:Error:", err)
		return nil, err
	}

	dataQuery := `
		SELECT * ` + baseQuery + whereClause + `
		ORDER BY scheduled_time_utc ASC
		LIMIT $` + fmt.Sprintf("%d", argIndex) + ` OFFSET $` + fmt.Sprintf("%d", argIndex+1)
	args = append(args, params.PageSize, offset)

	var slots []entity.BookedSlot
	if err := r.db.SelectContext(ctx, &slots, dataQuery, args...); err != nil {
		logger.Error("BookingRepository:ListByCampaign:Select:Error:", err)
		return nil, err
	}

	return &entity.PaginatedBookedSlotEntity{
		Items:      slots,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

// ListScheduledTimes returns the instants an inbox still holds from `from`
// onward. Only pending and sent slots occupy their instant; canceled and
// needs_attention slots have released it.
func (r *BookingRepository) ListScheduledTimes(ctx context.Context, inboxID uuid.UUID, from time.Time) ([]time.Time, error) {
	var times []time.Time
	query := `
		SELECT scheduled_time_utc FROM booked_slots
		WHERE inbox_id = $1
		  AND status IN ('pending', 'sent')
		  AND scheduled_time_utc >= $2
		ORDER BY scheduled_time_utc ASC
	`
	if err := r.db.SelectContext(ctx, &times, query, inboxID, from); err != nil {
		logger.Error("BookingRepository:ListScheduledTimes:Error:", err)
		return nil, err
	}
	return times, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.SlotStatus, reason *string, now time.Time) error {
	query := `
		UPDATE booked_slots
		SET status = $2, status_reason = $3, updated_at = $4
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, status, reason, now); err != nil {
		logger.Error("BookingRepository:UpdateStatus:Error:", err)
		return err
	}
	return nil
}

func (r *BookingRepository) MarkSent(ctx context.Context, id uuid.UUID, calendarEventID *string, now time.Time) error {
	query := `
		UPDATE booked_slots
		SET status = 'sent', calendar_event_id = $2, status_reason = NULL, updated_at = $3
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, calendarEventID, now); err != nil {
		logger.Error("BookingRepository:MarkSent:Error:", err)
		return err
	}
	return nil
}

// Reschedule moves the slot to a fresh instant and puts it back in pending so
// the updated invite goes out again under the same invite UID.
func (r *BookingRepository) Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time, leadTimeDays int, wasDoubleBooked, needsReview bool, now time.Time) error {
	query := `
		UPDATE booked_slots
		SET scheduled_time_utc = $2,
		    lead_time_days = $3,
		    was_double_booked = $4,
		    needs_review = $5,
		    status = 'pending',
		    status_reason = NULL,
		    rescheduled_count = rescheduled_count + 1,
		    updated_at = $6
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, newTime, leadTimeDays, wasDoubleBooked, needsReview, now); err != nil {
		if !IsUniqueViolation(err) {
			logger.Error("BookingRepository:Reschedule:Error:", err)
		}
		return err
	}
	return nil
}

// ReleasePendingByInbox cancels every pending slot held by the inbox and
// returns how many were released plus the prospects those slots served, so
// the caller can put them back in the queue. Sent invites are left alone,
// the recipient already has them on their calendar.
func (r *BookingRepository) ReleasePendingByInbox(ctx context.Context, inboxID uuid.UUID, reason string, now time.Time) (int, []uuid.UUID, error) {
	query := `
		UPDATE booked_slots
		SET status = 'canceled', status_reason = $2, updated_at = $3
		WHERE inbox_id = $1 AND status = 'pending'
		RETURNING prospect_id
	`
	rows, err := r.db.QueryContext(ctx, query, inboxID, reason, now)
	if err != nil {
		logger.Error("BookingRepository:ReleasePendingByInbox:Error:", err)
		return 0, nil, err
	}
	defer rows.Close()

	released := 0
	var prospects []uuid.UUID
	for rows.Next() {
		var prospectID *uuid.UUID
		if err := rows.Scan(&prospectID); err != nil {
			logger.Error("BookingRepository:ReleasePendingByInbox:Scan:Error:", err)
			return released, prospects, err
		}
		if prospectID != nil {
			prospects = append(prospects, *prospectID)
		}
		released++
	}
	return released, prospects, rows.Err()
}

func (r *BookingRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (map[entity.SlotStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM booked_slots
		WHERE campaign_id = $1
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		logger.Error("BookingRepository:CountByCampaign:Error:", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.SlotStatus]int)
	for rows.Next() {
		var status entity.SlotStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			logger.Error("BookingRepository:CountByCampaign:Scan:Error:", err)
			return nil, err
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
