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

type CorrespondenceFilter struct {
	Query     string
	Entity    string
	Direction types.Direction
	Status    string
	From      *time.Time
	To        *time.Time
	// NoReplySince keeps only items transferred at or before this instant
	// that have not been answered.
	NoReplySince *time.Time
	Limit        int
}

type CorrespondenceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Correspondence) ([]*types.Correspondence, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Correspondence, error)
	GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*types.Correspondence, error)
	Search(ctx context.Context, tx *gorm.DB, filter CorrespondenceFilter) ([]*types.Correspondence, error)
	AwaitingReview(ctx context.Context, tx *gorm.DB, limit int) (int64, []int64, error)
	MissingAttachment(ctx context.Context, tx *gorm.DB, limit int) (int64, []int64, error)
	StaleTransfers(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) (int64, []int64, error)
}

type correspondenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrespondenceRepo(db *gorm.DB, baseLog *logger.Logger) CorrespondenceRepo {
	repoLog := baseLog.With("repo", "CorrespondenceRepo")
	return &correspondenceRepo{db: db, log: repoLog}
}

func (r *correspondenceRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Correspondence) ([]*types.Correspondence, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Correspondence{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *correspondenceRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Correspondence, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Correspondence
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *correspondenceRepo) GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*types.Correspondence, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Correspondence
	if err := transaction.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *correspondenceRepo) Search(ctx context.Context, tx *gorm.DB, filter CorrespondenceFilter) ([]*types.Correspondence, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Correspondence{})
	if s := strings.ToLower(strings.TrimSpace(filter.Query)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(subject) LIKE ? OR LOWER(code) LIKE ? OR LOWER(from_entity) LIKE ? OR LOWER(to_entity) LIKE ?", like, like, like, like)
	}
	if s := strings.ToLower(strings.TrimSpace(filter.Entity)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(from_entity) LIKE ? OR LOWER(to_entity) LIKE ?", like, like)
	}
	if filter.Direction != "" {
		q = q.Where("direction = ?", filter.Direction)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", filter.To.UTC())
	}
	if filter.NoReplySince != nil {
		q = q.Where("transferred_at IS NOT NULL AND transferred_at <= ? AND replied_at IS NULL", filter.NoReplySince.UTC())
	}

	var rows []*types.Correspondence
	if err := q.Order("created_at DESC, id DESC").Limit(clampLimit(filter.Limit, 20, 100)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *correspondenceRepo) AwaitingReview(ctx context.Context, tx *gorm.DB, limit int) (int64, []int64, error) {
	return r.countAndIDs(ctx, tx, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("direction = ? AND reviewed_at IS NULL", types.DirectionInbound)
	})
}

func (r *correspondenceRepo) MissingAttachment(ctx context.Context, tx *gorm.DB, limit int) (int64, []int64, error) {
	return r.countAndIDs(ctx, tx, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("requires_attachment = ? AND (attachment_link IS NULL OR attachment_link = '')", true)
	})
}

func (r *correspondenceRepo) StaleTransfers(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) (int64, []int64, error) {
	return r.countAndIDs(ctx, tx, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("transferred_at IS NOT NULL AND transferred_at < ? AND replied_at IS NULL", olderThan.UTC())
	})
}

// countAndIDs returns the full match count plus the oldest `limit` ids.
func (r *correspondenceRepo) countAndIDs(ctx context.Context, tx *gorm.DB, limit int, scope func(*gorm.DB) *gorm.DB) (int64, []int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := scope(transaction.WithContext(ctx).Model(&types.Correspondence{})).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	ids := []int64{}
	if count == 0 || limit <= 0 {
		return count, ids, nil
	}
	if err := scope(transaction.WithContext(ctx).Model(&types.Correspondence{})).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, nil, err
	}
	return count, ids, nil
}
