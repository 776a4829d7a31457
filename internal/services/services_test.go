package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/db"
	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/repos"
	"github.com/yungbote/correspondence-backend/internal/types"
)

func TestCreateInboundMergesIdempotencyKey(t *testing.T) {
	gdb := db.OpenTestDB(t)
	log := logger.NewNop()
	svc := NewCorrespondenceService(gdb, log, repos.NewCorrespondenceRepo(gdb, log))
	ctx := context.Background()

	in := NewInbound{Subject: "Site survey", FromEntity: "Acme", IdempotencyKey: "req-1:call_1"}
	first, err := svc.CreateInbound(ctx, in)
	if err != nil {
		t.Fatalf("CreateInbound: %v", err)
	}
	second, err := svc.CreateInbound(ctx, in)
	if err != nil {
		t.Fatalf("CreateInbound (repeat): %v", err)
	}
	if first != second {
		t.Fatalf("repeat created a new record: %d != %d", first, second)
	}

	other, err := svc.CreateInbound(ctx, NewInbound{Subject: "Site survey"})
	if err != nil {
		t.Fatalf("CreateInbound (no key): %v", err)
	}
	if other == first {
		t.Fatalf("records without key must not merge")
	}

	row, err := svc.GetByID(ctx, first, types.DirectionInbound)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !strings.HasPrefix(row.Code, "IN-") {
		t.Fatalf("generated code=%q", row.Code)
	}
	if _, err := svc.GetByID(ctx, first, types.DirectionOutbound); !errors.Is(err, domainerr.ErrNotFound) {
		t.Fatalf("direction mismatch should be not found, got %v", err)
	}
}

func TestCreateOutboundValidates(t *testing.T) {
	gdb := db.OpenTestDB(t)
	log := logger.NewNop()
	svc := NewCorrespondenceService(gdb, log, repos.NewCorrespondenceRepo(gdb, log))

	if _, err := svc.CreateOutbound(context.Background(), NewOutbound{Subject: "  "}); !errors.Is(err, domainerr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	id, err := svc.CreateOutbound(context.Background(), NewOutbound{Subject: "Reply", Code: "OUT-7", ToEntity: "Globex"})
	if err != nil || id == 0 {
		t.Fatalf("CreateOutbound id=%d err=%v", id, err)
	}
}

func TestSearchDelayedDays(t *testing.T) {
	gdb := db.OpenTestDB(t)
	log := logger.NewNop()
	repo := repos.NewCorrespondenceRepo(gdb, log)
	svc := NewCorrespondenceService(gdb, log, repo).(*correspondenceService)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	old := now.AddDate(0, 0, -5)
	recent := now.AddDate(0, 0, -1)
	if _, err := repo.Create(context.Background(), nil, []*types.Correspondence{
		{Direction: types.DirectionOutbound, Code: "A", Subject: "a", ToEntity: "Acme", TransferredAt: &old},
		{Direction: types.DirectionOutbound, Code: "B", Subject: "b", ToEntity: "Acme", TransferredAt: &recent},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows, err := svc.Search(context.Background(), CorrespondenceSearch{Entity: "Acme", DelayedDays: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "A" {
		t.Fatalf("rows=%v", rows)
	}
	if _, err := svc.Search(context.Background(), CorrespondenceSearch{Direction: "sideways"}); !errors.Is(err, domainerr.ErrInvalidArgument) {
		t.Fatalf("expected invalid direction error, got %v", err)
	}
}

func TestMeetingCreate(t *testing.T) {
	gdb := db.OpenTestDB(t)
	log := logger.NewNop()
	svc := NewMeetingService(gdb, log, repos.NewMeetingRepo(gdb, log))
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	if _, err := svc.Create(ctx, NewMeeting{Title: "Design review"}); !errors.Is(err, domainerr.ErrInvalidArgument) {
		t.Fatalf("missing start should be invalid, got %v", err)
	}
	a, err := svc.Create(ctx, NewMeeting{Title: "Design review", StartsAt: at, IdempotencyKey: "k"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(ctx, NewMeeting{Title: "Design review", StartsAt: at, IdempotencyKey: "k"})
	if err != nil || a != b {
		t.Fatalf("repeat a=%d b=%d err=%v", a, b, err)
	}
	got, err := svc.GetByID(ctx, a)
	if err != nil || !got.StartsAt.Equal(at) {
		t.Fatalf("GetByID=%+v err=%v", got, err)
	}
	found, err := svc.Search(ctx, MeetingSearch{Query: "design"})
	if err != nil || len(found) != 1 {
		t.Fatalf("Search=%v err=%v", found, err)
	}
}

type failingStaleRepo struct {
	repos.CorrespondenceRepo
}

func (failingStaleRepo) StaleTransfers(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) (int64, []int64, error) {
	return 0, nil, errors.New("db down")
}

func TestAlertSnapshot(t *testing.T) {
	gdb := db.OpenTestDB(t)
	log := logger.NewNop()
	repo := repos.NewCorrespondenceRepo(gdb, log)
	now := time.Now().UTC()
	stale := now.Add(-96 * time.Hour)
	if _, err := repo.Create(context.Background(), nil, []*types.Correspondence{
		{Direction: types.DirectionInbound, Code: "A", Subject: "a"},
		{Direction: types.DirectionOutbound, Code: "B", Subject: "b", TransferredAt: &stale, RequiresAttachment: true},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := NewAlertService(log, repo, 72*time.Hour, 5).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.AwaitingReview.Count != 1 || snap.MissingAttachment.Count != 1 || snap.StaleTransfers.Count != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if snap.Total() != 3 || snap.StaleAfter != 72*time.Hour {
		t.Fatalf("total=%d stale_after=%s", snap.Total(), snap.StaleAfter)
	}

	if _, err := NewAlertService(log, failingStaleRepo{repo}, 0, 0).Snapshot(context.Background()); err == nil {
		t.Fatalf("expected snapshot error when a category query fails")
	}
}
