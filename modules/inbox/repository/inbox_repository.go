package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inviteflow/core/constants"
	"inviteflow/core/database"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/modules/inbox/entity"

	"github.com/google/uuid"
)

type InboxRepositoryInterface interface {
	Create(ctx context.Context, inbox *entity.Inbox) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Inbox, error)
	GetByEmail(ctx context.Context, email string) (*entity.Inbox, error)
	List(ctx context.Context, params params.QueryParams) (*entity.PaginatedInboxEntity, error)
	ListConnected(ctx context.Context) ([]entity.Inbox, error)
	ReserveQuotaSlot(ctx context.Context, id uuid.UUID, now time.Time, healthThreshold int) (bool, error)
	ReleaseQuotaSlot(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkSent(ctx context.Context, id uuid.UUID, now time.Time, cooldownUntil time.Time) error
	MarkTransientError(ctx context.Context, id uuid.UUID, maxErrors int, pauseReason string, now time.Time) (*entity.Inbox, error)
	MarkPermanentError(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	ResetDaily(ctx context.Context, id uuid.UUID, now time.Time) error
	ResetDailyAll(ctx context.Context, now time.Time) error
	Resume(ctx context.Context, id uuid.UUID, now time.Time) error
	Pause(ctx context.Context, id uuid.UUID, reason string, now time.Time) error
	Disconnect(ctx context.Context, id uuid.UUID, now time.Time) error
}

type InboxRepository struct {
	db database.Database
}

func NewInboxRepository(db database.Database) *InboxRepository {
	return &InboxRepository{db: db}
}

func (r *InboxRepository) Create(ctx context.Context, inbox *entity.Inbox) error {
	query := `
		INSERT INTO inboxes (email, display_name, provider_kind, active, daily_quota, sent_today,
			health_score, consecutive_error_count, credential, smtp_host, smtp_port, created_at, updated_at)
		VALUES (:email, :display_name, :provider_kind, :active, :daily_quota, :sent_today,
			:health_score, :consecutive_error_count, :credential, :smtp_host, :smtp_port, :created_at, :updated_at)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, inbox)
	if err != nil {
		logger.Error("InboxRepository:Create:Error:", err)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&inbox.ID)
	}
	return nil
}

func (r *InboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Inbox, error) {
	var inbox entity.Inbox
	query := `SELECT * FROM inboxes WHERE id = $1`
	if err := r.db.GetContext(ctx, &inbox, query, id); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("InboxRepository:GetByID:Error:", err)
		}
		return nil, err
	}
	return &inbox, nil
}

func (r *InboxRepository) GetByEmail(ctx context.Context, email string) (*entity.Inbox, error) {
	var inbox entity.Inbox
	query := `SELECT * FROM inboxes WHERE email = $1`
	if err := r.db.GetContext(ctx, &inbox, query, email); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("InboxRepository:GetByEmail:Error:", err)
		}
		return nil, err
	}
	return &inbox, nil
}

func (r *InboxRepository) List(ctx context.Context, params params.QueryParams) (*entity.PaginatedInboxEntity, error) {
	offset := (params.PageNumber - 1) * params.PageSize

	baseQuery := `FROM inboxes`

	var whereClause string
	var args []interface{}
	argIndex := 1

	if params.Search != "" {
		whereClause = fmt.Sprintf(" WHERE email ILIKE $%d", argIndex)
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery+whereClause, args...); err != nil {
		logger.Error("InboxRepository:List:Count:Error:", err)
		return nil, err
	}

	dataQuery := `
		SELECT * ` + baseQuery + whereClause + `
		ORDER BY created_at DESC
		LIMIT $` + fmt.Sprintf("%d", argIndex) + ` OFFSET $` + fmt.Sprintf("%d", argIndex+1)
	args = append(args, params.PageSize, offset)

	var inboxes []entity.Inbox
	if err := r.db.SelectContext(ctx, &inboxes, dataQuery, args...); err != nil {
		logger.Error("InboxRepository:List:Select:Error:", err)
		return nil, err
	}

	return &entity.PaginatedInboxEntity{
		Items:      inboxes,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

func (r *InboxRepository) ListConnected(ctx context.Context) ([]entity.Inbox, error) {
	var inboxes []entity.Inbox
	query := `SELECT * FROM inboxes WHERE active = true ORDER BY id`
	if err := r.db.SelectContext(ctx, &inboxes, query); err != nil {
		logger.Error("InboxRepository:ListConnected:Error:", err)
		return nil, err
	}
	return inboxes, nil
}

// ReserveQuotaSlot consumes one quota unit if and only if the inbox is still
// available. The conditional UPDATE is what keeps sent_today under the quota
// no matter how many instances race on the same row.
func (r *InboxRepository) ReserveQuotaSlot(ctx context.Context, id uuid.UUID, now time.Time, healthThreshold int) (bool, error) {
	query := `
		UPDATE inboxes
		SET sent_today = sent_today + 1, updated_at = $2
		WHERE id = $1
		  AND active = true
		  AND paused_reason IS NULL
		  AND (cooldown_until IS NULL OR cooldown_until <= $2)
		  AND sent_today < daily_quota
		  AND health_score >= $3
		RETURNING sent_today
	`
	var sentToday int
	err := r.db.GetContext(ctx, &sentToday, query, id, now, healthThreshold)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logger.Error("InboxRepository:ReserveQuotaSlot:Error:", err)
		return false, err
	}
	return true, nil
}

// ReleaseQuotaSlot refunds a unit consumed by ReserveQuotaSlot when the
// reservation could not be completed.
func (r *InboxRepository) ReleaseQuotaSlot(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE inboxes
		SET sent_today = GREATEST(0, sent_today - 1), updated_at = $2
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, now); err != nil {
		logger.Error("InboxRepository:ReleaseQuotaSlot:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) MarkSent(ctx context.Context, id uuid.UUID, now time.Time, cooldownUntil time.Time) error {
	query := `
		UPDATE inboxes
		SET last_used_at = $2,
		    cooldown_until = $3,
		    consecutive_error_count = 0,
		    health_score = LEAST($4, health_score + $5),
		    updated_at = $2
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, now, cooldownUntil, constants.HealthMax, constants.HealthRecoveryStep); err != nil {
		logger.Error("InboxRepository:MarkSent:Error:", err)
		return err
	}
	return nil
}

// MarkTransientError bumps the error counter and pauses the inbox once the
// counter reaches maxErrors. Returns the row after the update so the caller
// can see whether the pause fired.
func (r *InboxRepository) MarkTransientError(ctx context.Context, id uuid.UUID, maxErrors int, pauseReason string, now time.Time) (*entity.Inbox, error) {
	query := `
		UPDATE inboxes
		SET consecutive_error_count = consecutive_error_count + 1,
		    health_score = GREATEST($2, health_score - $3),
		    paused_reason = CASE
		        WHEN consecutive_error_count + 1 >= $4 AND paused_reason IS NULL THEN $5
		        ELSE paused_reason
		    END,
		    updated_at = $6
		WHERE id = $1
		RETURNING *
	`
	var inbox entity.Inbox
	err := r.db.GetContext(ctx, &inbox, query, id, constants.HealthMin, constants.HealthPenaltyStep, maxErrors, pauseReason, now)
	if err != nil {
		logger.Error("InboxRepository:MarkTransientError:Error:", err)
		return nil, err
	}
	return &inbox, nil
}

func (r *InboxRepository) MarkPermanentError(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	query := `
		UPDATE inboxes
		SET active = false,
		    paused_reason = $2,
		    consecutive_error_count = consecutive_error_count + 1,
		    health_score = GREATEST($3, health_score - $4),
		    updated_at = $5
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, reason, constants.HealthMin, constants.HealthPenaltyStep, now); err != nil {
		logger.Error("InboxRepository:MarkPermanentError:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) ResetDaily(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE inboxes SET sent_today = 0, updated_at = $2 WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, now); err != nil {
		logger.Error("InboxRepository:ResetDaily:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) ResetDailyAll(ctx context.Context, now time.Time) error {
	query := `UPDATE inboxes SET sent_today = 0, updated_at = $1`
	if err := r.db.ExecContext(ctx, query, now); err != nil {
		logger.Error("InboxRepository:ResetDailyAll:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) Resume(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE inboxes
		SET paused_reason = NULL, consecutive_error_count = 0, updated_at = $2
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, now); err != nil {
		logger.Error("InboxRepository:Resume:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) Pause(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	query := `UPDATE inboxes SET paused_reason = $2, updated_at = $3 WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, reason, now); err != nil {
		logger.Error("InboxRepository:Pause:Error:", err)
		return err
	}
	return nil
}

func (r *InboxRepository) Disconnect(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE inboxes
		SET active = false, paused_reason = 'disconnected', updated_at = $2
		WHERE id = $1
	`
	if err := r.db.ExecContext(ctx, query, id, now); err != nil {
		logger.Error("InboxRepository:Disconnect:Error:", err)
		return err
	}
	return nil
}
