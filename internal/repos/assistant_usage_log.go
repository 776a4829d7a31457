package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/types"
)

type UsageFilter struct {
	UserID *uuid.UUID
	Since  *time.Time
}

type AssistantUsageLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.AssistantUsageLog) (*types.AssistantUsageLog, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.AssistantUsageLog, error)
	SetFeedback(ctx context.Context, tx *gorm.DB, id int64, userID uuid.UUID, helpful bool) error
	Summary(ctx context.Context, tx *gorm.DB, filter UsageFilter) (types.UsageSummary, error)
}

type assistantUsageLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssistantUsageLogRepo(db *gorm.DB, baseLog *logger.Logger) AssistantUsageLogRepo {
	repoLog := baseLog.With("repo", "AssistantUsageLogRepo")
	return &assistantUsageLogRepo{db: db, log: repoLog}
}

func (r *assistantUsageLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AssistantUsageLog) (*types.AssistantUsageLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, domainerr.ErrInvalidArgument
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *assistantUsageLogRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.AssistantUsageLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.AssistantUsageLog
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// SetFeedback updates the only mutable column of a usage row. Only the user
// who owns the row may vote; any other caller sees ErrNotFound.
func (r *assistantUsageLogRepo) SetFeedback(ctx context.Context, tx *gorm.DB, id int64, userID uuid.UUID, helpful bool) error {
	if userID == uuid.Nil {
		return domainerr.ErrNotFound
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.AssistantUsageLog{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("feedback", helpful)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerr.ErrNotFound
	}
	return nil
}

func (r *assistantUsageLogRepo) Summary(ctx context.Context, tx *gorm.DB, filter UsageFilter) (types.UsageSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.AssistantUsageLog{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", filter.Since.UTC())
	}
	var out types.UsageSummary
	err := q.Select(`
		COUNT(*) AS turns,
		COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful_turns,
		COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
		COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
		COALESCE(SUM(seconds_saved), 0) AS seconds_saved,
		COALESCE(SUM(CASE WHEN feedback = ? THEN 1 ELSE 0 END), 0) AS helpful_votes,
		COALESCE(SUM(CASE WHEN feedback = ? THEN 1 ELSE 0 END), 0) AS unhelpful_votes`, true, false).
		Scan(&out).Error
	if err != nil {
		return types.UsageSummary{}, err
	}
	return out, nil
}
