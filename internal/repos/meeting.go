package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/types"
)

type MeetingFilter struct {
	Query string
	From  *time.Time
	To    *time.Time
	Limit int
}

type MeetingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Meeting) ([]*types.Meeting, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Meeting, error)
	GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*types.Meeting, error)
	Search(ctx context.Context, tx *gorm.DB, filter MeetingFilter) ([]*types.Meeting, error)
}

type meetingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMeetingRepo(db *gorm.DB, baseLog *logger.Logger) MeetingRepo {
	repoLog := baseLog.With("repo", "MeetingRepo")
	return &meetingRepo{db: db, log: repoLog}
}

func (r *meetingRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Meeting) ([]*types.Meeting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Meeting{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *meetingRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Meeting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Meeting
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *meetingRepo) GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*types.Meeting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Meeting
	if err := transaction.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *meetingRepo) Search(ctx context.Context, tx *gorm.DB, filter MeetingFilter) ([]*types.Meeting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Meeting{})
	if s := strings.ToLower(strings.TrimSpace(filter.Query)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ? OR LOWER(attendees) LIKE ? OR LOWER(notes) LIKE ?", like, like, like, like)
	}
	if filter.From != nil {
		q = q.Where("starts_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("starts_at <= ?", filter.To.UTC())
	}
	var rows []*types.Meeting
	if err := q.Order("starts_at DESC, id DESC").Limit(clampLimit(filter.Limit, 20, 100)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
