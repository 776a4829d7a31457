package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/correspondence-backend/internal/services"
)

func testSnapshot() services.AlertSnapshot {
	return services.AlertSnapshot{
		AwaitingReview:    services.AlertBucket{Count: 4, IDs: []int64{11, 12}},
		MissingAttachment: services.AlertBucket{Count: 1, IDs: []int64{20}},
		StaleTransfers:    services.AlertBucket{Count: 0, IDs: []int64{}},
		StaleAfter:        72 * time.Hour,
	}
}

func TestBuildSystemPromptIncludesAlerts(t *testing.T) {
	alerts := &fakeAlerts{snap: testSnapshot()}
	a := NewContextAssembler(ContextAssemblerDeps{Alerts: alerts})
	a.now = func() time.Time { return time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC) }

	got := a.BuildSystemPrompt(context.Background(), Identity{DisplayName: "Dana", Role: RoleStaff})
	for _, want := range []string{
		"Today is Monday, 2026-05-04.",
		"You are talking to Dana.",
		"awaiting first internal review: 4 (#11, #12, ...)",
		"missing a required external attachment link: 1 (#20)",
		"no reply for more than 3 days: 0",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildSystemPromptDegradesOnStoreError(t *testing.T) {
	alerts := &fakeAlerts{err: errors.New("connection refused")}
	a := NewContextAssembler(ContextAssemblerDeps{Alerts: alerts})

	got := a.BuildSystemPrompt(context.Background(), Identity{Role: RoleManager})
	if !strings.Contains(got, noAlertsBlock) {
		t.Fatalf("expected degraded alerts block:\n%s", got)
	}
	if !strings.HasPrefix(got, basePolicyPrompt) {
		t.Fatalf("policy text must still lead the prompt")
	}

	// errors are not cached
	alerts.mu.Lock()
	alerts.err = nil
	alerts.snap = testSnapshot()
	alerts.mu.Unlock()
	if got := a.BuildSystemPrompt(context.Background(), Identity{}); strings.Contains(got, noAlertsBlock) {
		t.Fatalf("recovered store should produce live alerts")
	}
}

func TestRoleFramingChangesEmphasisNotData(t *testing.T) {
	a := NewContextAssembler(ContextAssemblerDeps{Alerts: &fakeAlerts{snap: testSnapshot()}})
	prompts := map[Role]string{}
	for _, role := range []Role{RoleStaff, RoleManager, RoleAdmin} {
		prompts[role] = a.BuildSystemPrompt(context.Background(), Identity{Role: role})
	}
	if prompts[RoleStaff] == prompts[RoleManager] || prompts[RoleManager] == prompts[RoleAdmin] {
		t.Fatalf("role tiers must be framed differently")
	}
	block := alertsBlock(testSnapshot())
	for role, p := range prompts {
		if !strings.HasSuffix(p, block) {
			t.Fatalf("%s prompt must carry the same alerts block", role)
		}
	}
}

func TestSnapshotSharedAcrossConcurrentBuilds(t *testing.T) {
	alerts := &fakeAlerts{snap: testSnapshot(), delay: 30 * time.Millisecond}
	a := NewContextAssembler(ContextAssemblerDeps{Alerts: alerts, TTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.BuildSystemPrompt(context.Background(), Identity{})
		}()
	}
	wg.Wait()
	if n := alerts.callCount(); n != 1 {
		t.Fatalf("snapshot computed %d times, want 1", n)
	}
}

func TestSnapshotCacheExpires(t *testing.T) {
	alerts := &fakeAlerts{snap: testSnapshot()}
	a := NewContextAssembler(ContextAssemblerDeps{Alerts: alerts, TTL: time.Minute})
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.BuildSystemPrompt(context.Background(), Identity{})
	a.BuildSystemPrompt(context.Background(), Identity{})
	if alerts.callCount() != 1 {
		t.Fatalf("second build within TTL should hit the cache")
	}
	now = now.Add(2 * time.Minute)
	a.BuildSystemPrompt(context.Background(), Identity{})
	if alerts.callCount() != 2 {
		t.Fatalf("expired cache should recompute, calls=%d", alerts.callCount())
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{"Admin": RoleAdmin, "manager": RoleManager, "reviewer": RoleManager, "": RoleStaff, "intern": RoleStaff}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q)=%s want %s", in, got, want)
		}
	}
}
