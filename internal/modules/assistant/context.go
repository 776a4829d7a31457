package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/services"
)

const (
	defaultSnapshotTTL     = 30 * time.Second
	defaultSnapshotTimeout = 10 * time.Second
)

type ContextAssemblerDeps struct {
	Log    *logger.Logger
	Alerts services.AlertService
	// TTL is how long a computed snapshot is reused. Zero means 30s;
	// negative disables caching (concurrent builds still share one query).
	TTL      time.Duration
	Location *time.Location
}

// ContextAssembler builds the system prompt that opens every conversation.
type ContextAssembler struct {
	log    *logger.Logger
	alerts services.AlertService
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	cached   *services.AlertSnapshot
	cachedAt time.Time
}

func NewContextAssembler(deps ContextAssemblerDeps) *ContextAssembler {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	ttl := deps.TTL
	if ttl == 0 {
		ttl = defaultSnapshotTTL
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ContextAssembler{
		log:    log.With("service", "ContextAssembler"),
		alerts: deps.Alerts,
		ttl:    ttl,
		loc:    loc,
		now:    time.Now,
	}
}

// BuildSystemPrompt never fails: when the alert snapshot cannot be taken the
// prompt carries an explicit "no alerts available" block instead.
func (a *ContextAssembler) BuildSystemPrompt(ctx context.Context, id Identity) string {
	snap, err := a.snapshot(ctx)
	var b strings.Builder
	b.WriteString(basePolicyPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Today is %s.\n", a.now().In(a.loc).Format("Monday, 2006-01-02"))
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		fmt.Fprintf(&b, "You are talking to %s.\n", name)
	}
	b.WriteString(roleFraming(id.Role))
	b.WriteString("\n\n")
	if err != nil {
		a.log.Warn("Alert snapshot unavailable, degrading prompt", "error", err)
		b.WriteString(noAlertsBlock)
	} else {
		b.WriteString(alertsBlock(snap))
	}
	return b.String()
}

func (a *ContextAssembler) snapshot(ctx context.Context) (services.AlertSnapshot, error) {
	if a.alerts == nil {
		return services.AlertSnapshot{}, fmt.Errorf("no alert source configured")
	}
	if snap, ok := a.fromCache(); ok {
		return snap, nil
	}

	ch := a.group.DoChan("alerts", func() (any, error) {
		// Shared by every waiter, so it must outlive any single caller.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSnapshotTimeout)
		defer cancel()
		snap, err := a.alerts.Snapshot(sctx)
		if err != nil {
			return nil, err
		}
		a.store(snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return services.AlertSnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return services.AlertSnapshot{}, res.Err
		}
		return res.Val.(services.AlertSnapshot), nil
	}
}

func (a *ContextAssembler) fromCache() (services.AlertSnapshot, bool) {
	if a.ttl < 0 {
		return services.AlertSnapshot{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached == nil || a.now().Sub(a.cachedAt) > a.ttl {
		return services.AlertSnapshot{}, false
	}
	return *a.cached, true
}

func (a *ContextAssembler) store(snap services.AlertSnapshot) {
	if a.ttl < 0 {
		return
	}
	a.mu.Lock()
	a.cached = &snap
	a.cachedAt = a.now()
	a.mu.Unlock()
}

const noAlertsBlock = "CRITICAL ALERTS: no alerts available (the live status could not be loaded). Do not guess at pending or overdue items."

func alertsBlock(s services.AlertSnapshot) string {
	var b strings.Builder
	b.WriteString("CRITICAL ALERTS (live):\n")
	writeBucket(&b, "Inbound items awaiting first internal review", s.AwaitingReview)
	writeBucket(&b, "Items missing a required external attachment link", s.MissingAttachment)
	writeBucket(&b, fmt.Sprintf("Items transferred externally with no reply for more than %d days", staleDays(s.StaleAfter)), s.StaleTransfers)
	if s.Total() == 0 {
		b.WriteString("Nothing needs attention right now.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBucket(b *strings.Builder, label string, bucket services.AlertBucket) {
	fmt.Fprintf(b, "- %s: %d", label, bucket.Count)
	if len(bucket.IDs) > 0 {
		ids := make([]string, 0, len(bucket.IDs))
		for _, id := range bucket.IDs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		fmt.Fprintf(b, " (%s", strings.Join(ids, ", "))
		if int64(len(bucket.IDs)) < bucket.Count {
			b.WriteString(", ...")
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
}

func staleDays(d time.Duration) int {
	days := int(d / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

func roleFraming(role Role) string {
	switch role {
	case RoleAdmin:
		return "The user is an administrator. Give a system-wide view: volumes, bottlenecks and overdue items across all teams, and mention the alerts when they are relevant to the question."
	case RoleManager:
		return "The user is a reviewing manager. Lead with items awaiting review and overdue replies, and point out anything that needs their decision."
	default:
		return "The user is a front-line staff member. Focus on practical next steps they can take themselves, such as registering letters, attaching missing links and finding records."
	}
}
