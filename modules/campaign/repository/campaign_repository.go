package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inviteflow/core/database"
	"inviteflow/core/logger"
	"inviteflow/core/params"
	"inviteflow/modules/campaign/entity"

	"github.com/google/uuid"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, campaign *entity.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Campaign, error)
	GetByRef(ctx context.Context, ref string) (*entity.Campaign, error)
	List(ctx context.Context, params params.QueryParams) (*entity.PaginatedCampaignEntity, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.CampaignStatus, now time.Time) error
	AddProspects(ctx context.Context, prospects []entity.Prospect) error
	GetProspect(ctx context.Context, id uuid.UUID) (*entity.Prospect, error)
	ListProspects(ctx context.Context, campaignID uuid.UUID, params params.QueryParams) (*entity.PaginatedProspectEntity, error)
	ListPendingProspects(ctx context.Context, campaignID uuid.UUID) ([]entity.Prospect, error)
	MarkProspectAttempt(ctx context.Context, id uuid.UUID, now time.Time) error
	UpdateProspectStatus(ctx context.Context, id uuid.UUID, status entity.ProspectStatus, lastError *string, now time.Time) error
	RequeueProspect(ctx context.Context, id uuid.UUID, now time.Time) error
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[entity.ProspectStatus]int, error)
}

type CampaignRepository struct {
	db database.Database
}

func NewCampaignRepository(db database.Database) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, campaign *entity.Campaign) error {
	query := `
		INSERT INTO campaigns (name, ref, subject, body, location, duration_minutes,
			settings, status, created_at, updated_at)
		VALUES (:name, :ref, :subject, :body, :location, :duration_minutes,
			:settings, :status, :created_at, :updated_at)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, campaign)
	if err != nil {
		logger.Error("CampaignRepository:Create:Error:", err)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&campaign.ID)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Campaign, error) {
	var campaign entity.Campaign
	query := `SELECT * FROM campaigns WHERE id = $1`
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("CampaignRepository:GetByID:Error:", err)
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) GetByRef(ctx context.Context, ref string) (*entity.Campaign, error) {
	var campaign entity.Campaign
	query := `SELECT * FROM campaigns WHERE ref = $1`
	if err := r.db.GetContext(ctx, &campaign, query, ref); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("CampaignRepository:GetByRef:Error:", err)
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) List(ctx context.Context, params params.QueryParams) (*entity.PaginatedCampaignEntity, error) {
	offset := (params.PageNumber - 1) * params.PageSize

	baseQuery := `FROM campaigns`

	var whereClause string
	var args []interface{}
	argIndex := 1

	if params.Search != "" {
		whereClause = fmt.Sprintf(" WHERE name ILIKE $%d OR ref ILIKE $%d", argIndex, argIndex)
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery+whereClause, args...); err != nil {
		logger.Error("CampaignRepository:List:Count:Error:", err)
		return nil, err
	}

	dataQuery := `
		SELECT * ` + baseQuery + whereClause + `
		ORDER BY created_at DESC
		LIMIT $` + fmt.Sprintf("%d", argIndex) + ` OFFSET $` + fmt.Sprintf("%d", argIndex+1)
	args = append(args, params.PageSize, offset)

	var campaigns []entity.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, dataQuery, args...); err != nil {
		logger.Error("CampaignRepository:List:Select:Error:", err)
		return nil, err
	}

	return &entity.PaginatedCampaignEntity{
		Items:      campaigns,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.CampaignStatus, now time.Time) error {
	query := `UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, status, now); err != nil {
		logger.Error("CampaignRepository:UpdateStatus:Error:", err)
		return err
	}
	return nil
}

// AddProspects bulk-inserts prospects in one round trip.
func (r *CampaignRepository) AddProspects(ctx context.Context, prospects []entity.Prospect) error {
	if len(prospects) == 0 {
		return nil
	}
	query := `
		INSERT INTO prospects (campaign_id, email, name, timezone, status, attempt_count,
			created_at, updated_at)
		VALUES (:campaign_id, :email, :name, :timezone, :status, :attempt_count,
			:created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, prospects); err != nil {
		logger.Error("CampaignRepository:AddProspects:Error:", err)
		return err
	}
	return nil
}

func (r *CampaignRepository) GetProspect(ctx context.Context, id uuid.UUID) (*entity.Prospect, error) {
	var prospect entity.Prospect
	query := `SELECT * FROM prospects WHERE id = $1`
	if err := r.db.GetContext(ctx, &prospect, query, id); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("CampaignRepository:GetProspect:Error:", err)
		}
		return nil, err
	}
	return &prospect, nil
}

func (r *CampaignRepository) ListProspects(ctx context.Context, campaignID uuid.UUID, params params.QueryParams) (*entity.PaginatedProspectEntity, error) {
	offset := (params.PageNumber - 1) * params.PageSize

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems,
		`SELECT COUNT(*) FROM prospects WHERE campaign_id = $1`, campaignID); err != nil {
		logger.Error("CampaignRepository:ListProspects:Count:Error:", err)
		return nil, err
	}

	query := `
		SELECT * FROM prospects
		WHERE campaign_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`
	var prospects []entity.Prospect
	if err := r.db.SelectContext(ctx, &prospects, query, campaignID, params.PageSize, offset); err != nil {
		logger.Error("CampaignRepository:ListProspects:Select:Error:", err)
		return nil, err
	}

	return &entity.PaginatedProspectEntity{
		Items:      prospects,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

// ListPendingProspects returns the queue for one processing run in insertion
// order.
func (r *CampaignRepository) ListPendingProspects(ctx context.Context, campaignID uuid.UUID) ([]entity.Prospect, error) {
	var prospects []entity.Prospect
	query := `
		SELECT * FROM prospects
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &prospects, query, campaignID); err != nil {
		logger.Error("CampaignRepository:ListPendingProspects:Error:", err)
		return nil, err
	}
	return prospects, nil
}

func (r *CampaignRepository) MarkProspectAttempt(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE prospects SET attempt_count = attempt_count + 1, updated_at = $2 WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, now); err != nil {
		logger.Error("CampaignRepository:MarkProspectAttempt:Error:", err)
		return err
	}
	return nil
}

func (r *CampaignRepository) UpdateProspectStatus(ctx context.Context, id uuid.UUID, status entity.ProspectStatus, lastError *string, now time.Time) error {
	query := `UPDATE prospects SET status = $2, last_error = $3, updated_at = $4 WHERE id = $1`
	if err := r.db.ExecContext(ctx, query, id, status, lastError, now); err != nil {
		logger.Error("CampaignRepository:UpdateProspectStatus:Error:", err)
		return err
	}
	return nil
}

// RequeueProspect puts a parked prospect back in the pending queue. Only
// needs_attention and canceled prospects can be requeued; anything else
// reports sql.ErrNoRows.
func (r *CampaignRepository) RequeueProspect(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE prospects
		SET status = 'pending', last_error = NULL, updated_at = $2
		WHERE id = $1 AND status IN ('needs_attention', 'canceled')
		RETURNING id
	`
	var requeued uuid.UUID
	if err := r.db.GetContext(ctx, &requeued, query, id, now); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("CampaignRepository:RequeueProspect:Error:", err)
		}
		return err
	}
	return nil
}

func (r *CampaignRepository) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[entity.ProspectStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM prospects
		WHERE campaign_id = $1
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		logger.Error("CampaignRepository:StatusCounts:Error:", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.ProspectStatus]int)
	for rows.Next() {
		var status entity.ProspectStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			logger.Error("CampaignRepository:StatusCounts:Scan:Error:", err)
			return nil, err
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
