package assistant

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/repos"
	"github.com/yungbote/correspondence-backend/internal/services"
	"github.com/yungbote/correspondence-backend/internal/types"
)

// ---------------- completion ----------------

type scriptStep struct {
	res *completion.Result
	err error
	// before runs when the step is consumed, e.g. to cancel a context.
	before func()
}

type scriptedClient struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []completion.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := req
	cp.Messages = append([]completion.Message(nil), req.Messages...)
	c.requests = append(c.requests, cp)
	if len(c.steps) == 0 {
		return nil, &completion.ProviderError{Kind: completion.KindProtocol, Message: "script exhausted"}
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	if step.before != nil {
		step.before()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return step.res, step.err
}

func textReply(content string, prompt, completionTokens int) scriptStep {
	return scriptStep{res: &completion.Result{
		Message:      completion.Message{Role: completion.RoleAssistant, Content: content},
		Usage:        completion.Usage{PromptTokens: prompt, CompletionTokens: completionTokens, TotalTokens: prompt + completionTokens},
		FinishReason: "stop",
	}}
}

func toolReply(prompt, completionTokens int, calls ...completion.ToolCall) scriptStep {
	return scriptStep{res: &completion.Result{
		Message:      completion.Message{Role: completion.RoleAssistant, ToolCalls: calls},
		Usage:        completion.Usage{PromptTokens: prompt, CompletionTokens: completionTokens, TotalTokens: prompt + completionTokens},
		FinishReason: "tool_calls",
	}}
}

func failStep(kind completion.ErrorKind, status int) scriptStep {
	return scriptStep{err: &completion.ProviderError{Kind: kind, StatusCode: status, Message: string(kind)}}
}

// ---------------- collaborators ----------------

type fakeCorrespondence struct {
	mu        sync.Mutex
	rows      map[int64]*types.Correspondence
	searches  []services.CorrespondenceSearch
	inbound   []services.NewInbound
	outbound  []services.NewOutbound
	searchErr error
	onCreate  func()
	nextID    int64
	calls     int
}

func newFakeCorrespondence() *fakeCorrespondence {
	return &fakeCorrespondence{rows: map[int64]*types.Correspondence{}, nextID: 100}
}

func (f *fakeCorrespondence) Search(ctx context.Context, q services.CorrespondenceSearch) ([]*types.Correspondence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.searches = append(f.searches, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := []*types.Correspondence{}
	for id := int64(1); id <= int64(len(f.rows)); id++ {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeCorrespondence) GetByID(ctx context.Context, id int64, dir types.Direction) (*types.Correspondence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	row, ok := f.rows[id]
	if !ok || (dir != "" && row.Direction != dir) {
		return nil, domainerr.ErrNotFound
	}
	return row, nil
}

func (f *fakeCorrespondence) CreateInbound(ctx context.Context, in services.NewInbound) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.inbound = append(f.inbound, in)
	f.nextID++
	id := f.nextID
	hook := f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return id, nil
}

func (f *fakeCorrespondence) CreateOutbound(ctx context.Context, in services.NewOutbound) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.outbound = append(f.outbound, in)
	f.nextID++
	return f.nextID, nil
}

type fakeMeetings struct {
	mu      sync.Mutex
	rows    map[int64]*types.Meeting
	created []services.NewMeeting
	calls   int
}

func newFakeMeetings() *fakeMeetings {
	return &fakeMeetings{rows: map[int64]*types.Meeting{}}
}

func (f *fakeMeetings) Search(ctx context.Context, q services.MeetingSearch) ([]*types.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := []*types.Meeting{}
	for _, m := range f.rows {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMeetings) GetByID(ctx context.Context, id int64) (*types.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.rows[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	return m, nil
}

func (f *fakeMeetings) Create(ctx context.Context, in services.NewMeeting) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.created = append(f.created, in)
	return int64(500 + len(f.created)), nil
}

type fakeAlerts struct {
	mu    sync.Mutex
	snap  services.AlertSnapshot
	err   error
	calls int
	delay time.Duration
}

func (f *fakeAlerts) Snapshot(ctx context.Context) (services.AlertSnapshot, error) {
	f.mu.Lock()
	f.calls++
	delay, snap, err := f.delay, f.snap, f.err
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return snap, err
}

func (f *fakeAlerts) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticPrompt string

func (p staticPrompt) BuildSystemPrompt(ctx context.Context, id Identity) string { return string(p) }

type memRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *memRecorder) Log(ctx context.Context, e Entry) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return int64(len(r.entries))
}

// failingUsageRepo fails every write.
type failingUsageRepo struct {
	repos.AssistantUsageLogRepo
}

func (failingUsageRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AssistantUsageLog) (*types.AssistantUsageLog, error) {
	return nil, gorm.ErrInvalidDB
}
