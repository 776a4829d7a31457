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

type MeetingSearch struct {
	Query string
	From  *time.Time
	To    *time.Time
	Limit int
}

type NewMeeting struct {
	Title          string
	StartsAt       time.Time
	Location       string
	Attendees      string
	Notes          string
	IdempotencyKey string
	CreatedBy      *uuid.UUID
}

type MeetingService interface {
	Search(ctx context.Context, q MeetingSearch) ([]*types.Meeting, error)
	GetByID(ctx context.Context, id int64) (*types.Meeting, error)
	Create(ctx context.Context, in NewMeeting) (int64, error)
}

type meetingService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.MeetingRepo
}

func NewMeetingService(db *gorm.DB, log *logger.Logger, repo repos.MeetingRepo) MeetingService {
	serviceLog := log.With("service", "MeetingService")
	return &meetingService{db: db, log: serviceLog, repo: repo}
}

func (s *meetingService) Search(ctx context.Context, q MeetingSearch) ([]*types.Meeting, error) {
	return s.repo.Search(ctx, nil, repos.MeetingFilter{
		Query: q.Query,
		From:  q.From,
		To:    q.To,
		Limit: q.Limit,
	})
}

func (s *meetingService) GetByID(ctx context.Context, id int64) (*types.Meeting, error) {
	if id <= 0 {
		return nil, domainerr.ErrNotFound
	}
	return s.repo.GetByID(ctx, nil, id)
}

func (s *meetingService) Create(ctx context.Context, in NewMeeting) (int64, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return 0, fmt.Errorf("%w: title is required", domainerr.ErrInvalidArgument)
	}
	if in.StartsAt.IsZero() {
		return 0, fmt.Errorf("%w: start time is required", domainerr.ErrInvalidArgument)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	row := &types.Meeting{
		Title:     title,
		StartsAt:  in.StartsAt.UTC(),
		Location:  strings.TrimSpace(in.Location),
		Attendees: strings.TrimSpace(in.Attendees),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedBy: in.CreatedBy,
	}
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

	if _, err := s.repo.Create(ctx, nil, []*types.Meeting{row}); err != nil {
		if key != "" && repos.IsUniqueViolation(err) {
			if existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, nil, key); lookupErr == nil {
				return existing.ID, nil
			}
		}
		s.log.Error("Failed to create meeting", "error", err)
		return 0, err
	}
	s.log.Info("Meeting created", "id", row.ID, "starts_at", row.StartsAt)
	return row.ID, nil
}
