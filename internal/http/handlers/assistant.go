package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/correspondence-backend/internal/http/response"
	"github.com/yungbote/correspondence-backend/internal/modules/assistant"
	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/ctxutil"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime"
	"github.com/yungbote/correspondence-backend/internal/repos"
	"github.com/yungbote/correspondence-backend/internal/types"
)

type Assistant interface {
	Ask(ctx context.Context, req assistant.AskRequest, onStatus assistant.StatusFunc) (assistant.Answer, error)
	AskStream(ctx context.Context, req assistant.AskRequest, onStatus assistant.StatusFunc, onChunk func(string)) (assistant.Answer, error)
}

type UsageStore interface {
	SetFeedback(ctx context.Context, id int64, userID uuid.UUID, helpful bool) error
	Summary(ctx context.Context, filter repos.UsageFilter) (types.UsageSummary, error)
}

type AssistantHandler struct {
	log       *logger.Logger
	assistant Assistant
	usage     UsageStore
	emitter   realtime.Emitter
}

func NewAssistantHandler(log *logger.Logger, a Assistant, usage UsageStore, emitter realtime.Emitter) *AssistantHandler {
	return &AssistantHandler{
		log:       log.With("handler", "AssistantHandler"),
		assistant: a,
		usage:     usage,
		emitter:   emitter,
	}
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askReq struct {
	Prompt    string           `json:"prompt"`
	History   []historyMessage `json:"history"`
	RequestID string           `json:"request_id"`
}

type askResp struct {
	Content   string `json:"content"`
	LogID     int64  `json:"log_id"`
	RequestID string `json:"request_id"`
}

// POST /api/assistant/ask
func (h *AssistantHandler) Ask(c *gin.Context) {
	req, ok := h.bindAsk(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	channel := realtime.UserChannel(req.Identity.UserID, req.RequestID)
	ans, err := h.assistant.Ask(ctx, req, h.statusEmitter(ctx, channel, nil))
	if err != nil {
		h.failed(c, req.RequestID, err)
		return
	}
	h.emit(ctx, channel, realtime.SSEEventAssistantDone, ans)
	response.RespondOK(c, askResp{Content: ans.Content, LogID: ans.LogID, RequestID: req.RequestID})
}

// POST /api/assistant/ask/stream
func (h *AssistantHandler) AskStream(c *gin.Context) {
	req, ok := h.bindAsk(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	channel := realtime.UserChannel(req.Identity.UserID, req.RequestID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	write := func(event string, data any) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}
	onChunk := func(chunk string) {
		h.emit(ctx, channel, realtime.SSEEventAssistantMessage, gin.H{"content": chunk})
		write("message", gin.H{"content": chunk})
	}

	ans, err := h.assistant.AskStream(ctx, req, h.statusEmitter(ctx, channel, write), onChunk)
	if err != nil {
		h.emit(ctx, channel, realtime.SSEEventAssistantError, gin.H{"message": err.Error()})
		write("error", gin.H{"message": err.Error()})
		return
	}
	h.emit(ctx, channel, realtime.SSEEventAssistantDone, ans)
	write("done", askResp{Content: ans.Content, LogID: ans.LogID, RequestID: req.RequestID})
}

type feedbackReq struct {
	Helpful *bool `json:"helpful"`
}

// POST /api/assistant/logs/:id/feedback
func (h *AssistantHandler) Feedback(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_log_id", errors.New("invalid log id"))
		return
	}
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Helpful == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("helpful is required"))
		return
	}
	if err := h.usage.SetFeedback(c.Request.Context(), id, identityFrom(c.Request.Context()).UserID, *req.Helpful); err != nil {
		response.RespondErr(c, err, "feedback_failed")
		return
	}
	response.RespondOK(c, gin.H{"log_id": id, "helpful": *req.Helpful})
}

// GET /api/assistant/usage/summary?since=2024-01-01T00:00:00Z&days=7&user_id=
func (h *AssistantHandler) UsageSummary(c *gin.Context) {
	var filter repos.UsageFilter
	if v := strings.TrimSpace(c.Query("user_id")); v != "" {
		uid, err := uuid.Parse(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
			return
		}
		filter.UserID = &uid
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_since", err)
			return
		}
		filter.Since = &since
	} else if v := strings.TrimSpace(c.Query("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_days", errors.New("days must be a positive integer"))
			return
		}
		since := time.Now().AddDate(0, 0, -days)
		filter.Since = &since
	}
	summary, err := h.usage.Summary(c.Request.Context(), filter)
	if err != nil {
		response.RespondErr(c, err, "summary_failed")
		return
	}
	response.RespondOK(c, gin.H{"summary": summary})
}

func (h *AssistantHandler) bindAsk(c *gin.Context) (assistant.AskRequest, bool) {
	var body askReq
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return assistant.AskRequest{}, false
	}
	if strings.TrimSpace(body.Prompt) == "" {
		response.RespondErr(c, assistant.ErrEmptyPrompt, "invalid_request")
		return assistant.AskRequest{}, false
	}
	ctx := c.Request.Context()
	req := assistant.AskRequest{
		Prompt:    body.Prompt,
		History:   historyMessages(body.History),
		Identity:  identityFrom(ctx),
		RequestID: strings.TrimSpace(body.RequestID),
	}
	if req.RequestID == "" {
		if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
			req.RequestID = td.RequestID
		} else {
			req.RequestID = uuid.New().String()
		}
	}
	return req, true
}

func (h *AssistantHandler) statusEmitter(ctx context.Context, channel string, write func(string, any)) assistant.StatusFunc {
	return func(u assistant.StatusUpdate) {
		h.emit(ctx, channel, realtime.SSEEventAssistantStatus, u)
		if write != nil {
			write("status", u)
		}
	}
}

func (h *AssistantHandler) emit(ctx context.Context, channel string, event realtime.SSEEvent, data any) {
	if h.emitter == nil || channel == "" {
		return
	}
	h.emitter.Emit(ctx, realtime.SSEMessage{Channel: channel, Event: event, Data: data})
}

func (h *AssistantHandler) failed(c *gin.Context, requestID string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.log.Info("Assistant turn cancelled", "request_id", requestID, "error", err)
		response.RespondError(c, http.StatusRequestTimeout, "cancelled", err)
		return
	}
	response.RespondErr(c, err, "assistant_failed")
}

func identityFrom(ctx context.Context) assistant.Identity {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return assistant.Identity{Role: assistant.RoleStaff}
	}
	return assistant.Identity{
		UserID:      rd.UserID,
		DisplayName: rd.DisplayName,
		Role:        assistant.ParseRole(rd.Role),
	}
}

func historyMessages(in []historyMessage) []completion.Message {
	out := make([]completion.Message, 0, len(in))
	for _, m := range in {
		role := completion.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		if role != completion.RoleUser && role != completion.RoleAssistant {
			continue
		}
		out = append(out, completion.Message{Role: role, Content: m.Content})
	}
	return out
}
