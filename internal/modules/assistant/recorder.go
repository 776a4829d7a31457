package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/repos"
	"github.com/yungbote/correspondence-backend/internal/types"
)

// ToolAudit is the per-call detail stored alongside a usage record.
type ToolAudit struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type Entry struct {
	Prompt           string
	Response         string
	ToolNames        []string
	PromptTokens     int
	CompletionTokens int
	SecondsSaved     int
	Success          bool

	UserID       *uuid.UUID
	RequestID    string
	Model        string
	FallbackUsed bool
	Calls        []ToolAudit
}

// UsageRecorder persists one record per turn. Implementations must not fail
// the caller: a record that could not be written is reported as id 0.
type UsageRecorder interface {
	Log(ctx context.Context, e Entry) int64
}

// Recorder is a best-effort writer: Log may silently fail, in which case the
// failure goes to the operational log and the returned id is 0.
type Recorder struct {
	log  *logger.Logger
	repo repos.AssistantUsageLogRepo
}

var _ UsageRecorder = (*Recorder)(nil)

func NewRecorder(log *logger.Logger, repo repos.AssistantUsageLogRepo) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Recorder{log: log.With("service", "UsageRecorder"), repo: repo}
}

func (r *Recorder) Log(ctx context.Context, e Entry) (id int64) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Usage record panicked", "request_id", e.RequestID, "panic", p)
			id = 0
		}
	}()
	if r.repo == nil {
		r.log.Warn("Usage record skipped: no store configured", "request_id", e.RequestID)
		return 0
	}

	row := &types.AssistantUsageLog{
		UserID:           e.UserID,
		RequestID:        e.RequestID,
		Prompt:           e.Prompt,
		Response:         e.Response,
		ToolNames:        JoinToolNames(e.ToolNames),
		Model:            e.Model,
		FallbackUsed:     e.FallbackUsed,
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
		SecondsSaved:     e.SecondsSaved,
		Success:          e.Success,
	}
	if len(e.Calls) > 0 {
		if raw, err := json.Marshal(map[string]any{"tool_calls": e.Calls}); err == nil {
			row.Details = datatypes.JSON(raw)
		}
	}

	saved, err := r.repo.Create(ctx, nil, row)
	if err != nil {
		r.log.Error("Failed to persist usage record",
			"request_id", e.RequestID,
			"success", e.Success,
			"tool_names", row.ToolNames,
			"prompt_tokens", e.PromptTokens,
			"completion_tokens", e.CompletionTokens,
			"error", err,
		)
		return 0
	}
	return saved.ID
}

// SetFeedback attaches the user's helpful/unhelpful vote to a record they own.
func (r *Recorder) SetFeedback(ctx context.Context, id int64, userID uuid.UUID, helpful bool) error {
	return r.repo.SetFeedback(ctx, nil, id, userID, helpful)
}

func (r *Recorder) Summary(ctx context.Context, filter repos.UsageFilter) (types.UsageSummary, error) {
	return r.repo.Summary(ctx, nil, filter)
}

// JoinToolNames serializes executed tool names; no tools is stored as the
// "none" sentinel rather than an empty string.
func JoinToolNames(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return types.NoToolsSentinel
	}
	return strings.Join(cleaned, ",")
}
