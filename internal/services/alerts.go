package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/repos"
)

type AlertBucket struct {
	Count int64
	IDs   []int64
}

// AlertSnapshot is the read-only view of items that need attention, taken at
// TakenAt.
type AlertSnapshot struct {
	AwaitingReview    AlertBucket
	MissingAttachment AlertBucket
	StaleTransfers    AlertBucket
	StaleAfter        time.Duration
	TakenAt           time.Time
}

func (s AlertSnapshot) Total() int64 {
	return s.AwaitingReview.Count + s.MissingAttachment.Count + s.StaleTransfers.Count
}

type AlertService interface {
	Snapshot(ctx context.Context) (AlertSnapshot, error)
}

type alertService struct {
	log        *logger.Logger
	repo       repos.CorrespondenceRepo
	staleAfter time.Duration
	idLimit    int
	now        func() time.Time
}

func NewAlertService(log *logger.Logger, repo repos.CorrespondenceRepo, staleAfter time.Duration, idLimit int) AlertService {
	if staleAfter <= 0 {
		staleAfter = 3 * 24 * time.Hour
	}
	if idLimit <= 0 {
		idLimit = 5
	}
	return &alertService{
		log:        log.With("service", "AlertService"),
		repo:       repo,
		staleAfter: staleAfter,
		idLimit:    idLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot runs the three category queries concurrently; any failure fails
// the whole snapshot.
func (s *alertService) Snapshot(ctx context.Context) (AlertSnapshot, error) {
	now := s.now()
	snap := AlertSnapshot{StaleAfter: s.staleAfter, TakenAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, ids, err := s.repo.AwaitingReview(gctx, nil, s.idLimit)
		snap.AwaitingReview = AlertBucket{Count: count, IDs: ids}
		return err
	})
	g.Go(func() error {
		count, ids, err := s.repo.MissingAttachment(gctx, nil, s.idLimit)
		snap.MissingAttachment = AlertBucket{Count: count, IDs: ids}
		return err
	})
	g.Go(func() error {
		count, ids, err := s.repo.StaleTransfers(gctx, nil, now.Add(-s.staleAfter), s.idLimit)
		snap.StaleTransfers = AlertBucket{Count: count, IDs: ids}
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("Alert snapshot failed", "error", err)
		return AlertSnapshot{}, err
	}
	return snap, nil
}
