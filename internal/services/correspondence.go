package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/repos"
	"github.com/yungbote/correspondence-backend/internal/types"
)

type CorrespondenceSearch struct {
	Query     string
	Entity    string
	Direction types.Direction
	Status    string
	From      *time.Time
	To        *time.Time
	// DelayedDays > 0 keeps only items transferred at least that many days
	// ago that are still waiting for a reply.
	DelayedDays int
	Limit       int
}

type NewInbound struct {
	Subject        string
	Code           string
	FromEntity     string
	Engineer       string
	IdempotencyKey string
	CreatedBy      *uuid.UUID
}

type NewOutbound struct {
	Subject        string
	Code           string
	ToEntity       string
	IdempotencyKey string
	CreatedBy      *uuid.UUID
}

type CorrespondenceService interface {
	Search(ctx context.Context, q CorrespondenceSearch) ([]*types.Correspondence, error)
	GetByID(ctx context.Context, id int64, direction types.Direction) (*types.Correspondence, error)
	CreateInbound(ctx context.Context, in NewInbound) (int64, error)
	CreateOutbound(ctx context.Context, in NewOutbound) (int64, error)
}

type correspondenceService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.CorrespondenceRepo
	now  func() time.Time
}

func NewCorrespondenceService(db *gorm.DB, log *logger.Logger, repo repos.CorrespondenceRepo) CorrespondenceService {
	serviceLog := log.With("service", "CorrespondenceService")
	return &correspondenceService{
		db:   db,
		log:  serviceLog,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *correspondenceService) Search(ctx context.Context, q CorrespondenceSearch) ([]*types.Correspondence, error) {
	if q.Direction != "" && !q.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction %q", domainerr.ErrInvalidArgument, q.Direction)
	}
	filter := repos.CorrespondenceFilter{
		Query:     q.Query,
		Entity:    q.Entity,
		Direction: q.Direction,
		Status:    q.Status,
		From:      q.From,
		To:        q.To,
		Limit:     q.Limit,
	}
	if q.DelayedDays > 0 {
		cutoff := s.now().AddDate(0, 0, -q.DelayedDays)
		filter.NoReplySince = &cutoff
	}
	return s.repo.Search(ctx, nil, filter)
}

// GetByID returns ErrNotFound when the record exists under the other
// direction, so inbound and outbound ids cannot be confused.
func (s *correspondenceService) GetByID(ctx context.Context, id int64, direction types.Direction) (*types.Correspondence, error) {
	if id <= 0 {
		return nil, domainerr.ErrNotFound
	}
	row, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if direction != "" && row.Direction != direction {
		return nil, domainerr.ErrNotFound
	}
	return row, nil
}

func (s *correspondenceService) CreateInbound(ctx context.Context, in NewInbound) (int64, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return 0, fmt.Errorf("%w: subject is required", domainerr.ErrInvalidArgument)
	}
	row := &types.Correspondence{
		Direction:  types.DirectionInbound,
		Code:       strings.TrimSpace(in.Code),
		Subject:    subject,
		FromEntity: strings.TrimSpace(in.FromEntity),
		Engineer:   strings.TrimSpace(in.Engineer),
		Status:     "open",
		CreatedBy:  in.CreatedBy,
	}
	return s.create(ctx, row, in.IdempotencyKey)
}

func (s *correspondenceService) CreateOutbound(ctx context.Context, in NewOutbound) (int64, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return 0, fmt.Errorf("%w: subject is required", domainerr.ErrInvalidArgument)
	}
	row := &types.Correspondence{
		Direction: types.DirectionOutbound,
		Code:      strings.TrimSpace(in.Code),
		Subject:   subject,
		ToEntity:  strings.TrimSpace(in.ToEntity),
		Status:    "open",
		CreatedBy: in.CreatedBy,
	}
	return s.create(ctx, row, in.IdempotencyKey)
}

// create inserts row once per idempotency key; a repeated key yields the id
// of the record created the first time.
func (s *correspondenceService) create(ctx context.Context, row *types.Correspondence, key string) (int64, error) {
	key = strings.TrimSpace(key)
	if key != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, nil, key)
		if err == nil {
			s.log.Info("Duplicate creation merged", "id", existing.ID, "idempotency_key", key)
			return existing.ID, nil
		}
		if !errors.Is(err, domainerr.ErrNotFound) {
			return 0, err
		}
		row.IdempotencyKey = &key
	}
	if row.Code == "" {
		row.Code = s.generateCode(row.Direction)
	}

	if _, err := s.repo.Create(ctx, nil, []*types.Correspondence{row}); err != nil {
		if key != "" && repos.IsUniqueViolation(err) {
			existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, nil, key)
			if lookupErr == nil {
				return existing.ID, nil
			}
		}
		s.log.Error("Failed to create correspondence", "direction", row.Direction, "error", err)
		return 0, err
	}
	s.log.Info("Correspondence created", "id", row.ID, "direction", row.Direction, "code", row.Code)
	return row.ID, nil
}

func (s *correspondenceService) generateCode(direction types.Direction) string {
	prefix := "IN"
	if direction == types.DirectionOutbound {
		prefix = "OUT"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().Format("20060102"), suffix)
}
