package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
)

// ErrEmptyPrompt is returned by Ask for a blank prompt.
var ErrEmptyPrompt = fmt.Errorf("%w: prompt is empty", domainerr.ErrInvalidArgument)

type Config struct {
	PrimaryModel  string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
	// HistoryWindow is how many prior messages are replayed. Zero means 10.
	HistoryWindow int
}

// SystemPromptBuilder produces the opening system message of a turn.
type SystemPromptBuilder interface {
	BuildSystemPrompt(ctx context.Context, id Identity) string
}

// ToolExecutor is the registry surface the orchestrator needs.
type ToolExecutor interface {
	Manifest() []completion.ToolDefinition
	Execute(ctx context.Context, inv Invocation) ToolResult
	IsCreation(name string) bool
}

type OrchestratorDeps struct {
	Log      *logger.Logger
	Client   completion.Client
	Tools    ToolExecutor
	Prompts  SystemPromptBuilder
	Recorder UsageRecorder
	Config   Config
}

// Orchestrator drives one user turn: at most one tool round between two
// completion calls. It holds no per-turn state and is safe for concurrent use.
type Orchestrator struct {
	log      *logger.Logger
	client   completion.Client
	tools    ToolExecutor
	prompts  SystemPromptBuilder
	recorder UsageRecorder
	cfg      Config
}

func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Client == nil || deps.Tools == nil || deps.Prompts == nil || deps.Recorder == nil {
		return nil, errors.New("assistant: orchestrator requires client, tools, prompts and recorder")
	}
	cfg := deps.Config
	if strings.TrimSpace(cfg.PrimaryModel) == "" {
		return nil, errors.New("assistant: primary model required")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		log:      log.With("service", "AssistantOrchestrator"),
		client:   deps.Client,
		tools:    deps.Tools,
		prompts:  deps.Prompts,
		recorder: deps.Recorder,
		cfg:      cfg,
	}, nil
}

// turn is the mutable state of one Ask call.
type turn struct {
	req          AskRequest
	model        string
	fallbackUsed bool
	messages     []completion.Message

	promptTokens     int
	completionTokens int
	toolNames        []string
	calls            []ToolAudit
	secondsSaved     int
	createdRecord    bool
	completions      int
}

func (t *turn) addUsage(res *completion.Result) {
	t.promptTokens += res.Usage.PromptTokens
	t.completionTokens += res.Usage.CompletionTokens
	t.completions++
}

// Ask runs one turn to completion. Provider failures are not errors: they
// produce a user-facing apology with LogID 0. The error is non-nil only for
// an empty prompt or when ctx is cancelled.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest, onStatus StatusFunc) (Answer, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Answer{}, ErrEmptyPrompt
	}
	if onStatus == nil {
		onStatus = func(StatusUpdate) {}
	}

	ctx, span := otel.Tracer("assistant").Start(ctx, "assistant.Ask")
	defer span.End()
	span.SetAttributes(
		attribute.String("assistant.request_id", req.RequestID),
		attribute.String("assistant.role", string(req.Identity.Role)),
	)

	t := &turn{req: req, model: o.cfg.PrimaryModel}
	log := o.log.With("request_id", req.RequestID, "user_id", req.Identity.UserID.String())

	// Start
	onStatus(StatusUpdate{Stage: StageThinking, Message: "Thinking..."})
	t.messages = o.openingMessages(ctx, req)

	// AwaitingFirstCompletion
	first, err := o.complete(ctx, t, o.tools.Manifest())
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		span.SetStatus(codes.Error, string(completion.KindOf(err)))
		log.Warn("First completion failed", "kind", string(completion.KindOf(err)), "model", t.model, "error", err)
		return Answer{Content: failureMessage(err)}, nil
	}
	t.addUsage(first)

	if len(first.Message.ToolCalls) == 0 {
		content := answerText(first.Message.Content)
		logID := o.recorder.Log(ctx, o.entry(t, content, true))
		o.finish(span, t, true)
		return Answer{Content: content, LogID: logID}, nil
	}

	// ToolCallsPending
	t.messages = append(t.messages, completion.Message{
		Role:      completion.RoleAssistant,
		Content:   first.Message.Content,
		ToolCalls: first.Message.ToolCalls,
	})
	ranCreation := false
	for _, call := range first.Message.ToolCalls {
		if ctx.Err() != nil {
			return o.cancelled(ctx, t, log)
		}
		start := time.Now()
		result := o.tools.Execute(ctx, Invocation{Call: call, RequestID: req.RequestID, Identity: req.Identity})

		audit := ToolAudit{ID: call.ID, Name: call.Name, DurationMS: time.Since(start).Milliseconds()}
		if msg, ok := result["error"].(string); ok {
			audit.Error = msg
		}
		t.calls = append(t.calls, audit)
		t.toolNames = append(t.toolNames, call.Name)
		t.secondsSaved += SecondsSaved(call.Name)
		if o.tools.IsCreation(call.Name) {
			ranCreation = true
			if success, _ := result["success"].(bool); success {
				t.createdRecord = true
			}
		}

		t.messages = append(t.messages, completion.Message{
			Role:       completion.RoleTool,
			ToolCallID: call.ID,
			Content:    encodeToolResult(result),
		})
		onStatus(StatusUpdate{Stage: StageTool, Tool: call.Name, Message: "Ran " + call.Name})
	}
	if ranCreation {
		t.messages = append(t.messages, completion.Message{Role: completion.RoleSystem, Content: creationConfirmationPrompt})
	}
	if ctx.Err() != nil {
		return o.cancelled(ctx, t, log)
	}

	// AwaitingSecondCompletion
	onStatus(StatusUpdate{Stage: StageComposing, Message: "Composing the answer..."})
	second, err := o.complete(ctx, t, nil)
	if err != nil {
		if ctx.Err() != nil {
			return o.cancelled(ctx, t, log)
		}
		// Failed: the first call's usage is real, so the turn is recorded.
		content := failureMessage(err)
		log.Warn("Second completion failed", "kind", string(completion.KindOf(err)), "model", t.model, "error", err)
		o.recorder.Log(ctx, o.entry(t, content, false))
		span.SetStatus(codes.Error, string(completion.KindOf(err)))
		o.finish(span, t, false)
		return Answer{Content: content}, nil
	}
	t.addUsage(second)

	// Done
	content := answerText(second.Message.Content)
	logID := o.recorder.Log(ctx, o.entry(t, content, true))
	o.finish(span, t, true)
	return Answer{Content: content, LogID: logID}, nil
}

// AskStream performs a full Ask and delivers the answer as a single chunk.
func (o *Orchestrator) AskStream(ctx context.Context, req AskRequest, onStatus StatusFunc, onChunk func(string)) (Answer, error) {
	ans, err := o.Ask(ctx, req, onStatus)
	if err != nil {
		return ans, err
	}
	if onChunk != nil {
		onChunk(ans.Content)
	}
	return ans, nil
}

// complete issues one completion on the turn's current model. A rate limit
// switches the turn to the fallback model and retries once; once switched,
// the turn stays on the fallback and a further rate limit is terminal.
func (o *Orchestrator) complete(ctx context.Context, t *turn, tools []completion.ToolDefinition) (*completion.Result, error) {
	req := completion.Request{
		Model:       t.model,
		Messages:    t.messages,
		Tools:       tools,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	if len(tools) > 0 {
		req.ToolChoice = completion.ToolChoiceAuto
	}
	res, err := o.client.Complete(ctx, req)
	if err == nil || !completion.IsRateLimited(err) {
		return res, err
	}
	if t.fallbackUsed || o.cfg.FallbackModel == "" || o.cfg.FallbackModel == t.model {
		return nil, err
	}

	o.log.Warn("Rate limited, switching to fallback model",
		"request_id", t.req.RequestID,
		"from", t.model,
		"to", o.cfg.FallbackModel,
	)
	t.model = o.cfg.FallbackModel
	t.fallbackUsed = true
	req.Model = t.model
	return o.client.Complete(ctx, req)
}

func (o *Orchestrator) openingMessages(ctx context.Context, req AskRequest) []completion.Message {
	history := boundedHistory(req.History, o.cfg.HistoryWindow)
	msgs := make([]completion.Message, 0, len(history)+2)
	msgs = append(msgs, completion.Message{Role: completion.RoleSystem, Content: o.prompts.BuildSystemPrompt(ctx, req.Identity)})
	msgs = append(msgs, history...)
	msgs = append(msgs, completion.Message{Role: completion.RoleUser, Content: req.Prompt})
	return msgs
}

// boundedHistory keeps the most recent n plain user/assistant messages.
// Tool traffic from earlier turns is not replayed, since a window cut could
// separate a tool result from the call it answers.
func boundedHistory(history []completion.Message, n int) []completion.Message {
	kept := make([]completion.Message, 0, len(history))
	for _, m := range history {
		if m.Role != completion.RoleUser && m.Role != completion.RoleAssistant {
			continue
		}
		if len(m.ToolCalls) > 0 || strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, completion.Message{Role: m.Role, Content: m.Content})
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

// cancelled records the turn only if a creation tool already changed state.
func (o *Orchestrator) cancelled(ctx context.Context, t *turn, log *logger.Logger) (Answer, error) {
	err := ctx.Err()
	if t.createdRecord {
		o.recorder.Log(context.WithoutCancel(ctx), o.entry(t, cancelledResponse, false))
		log.Info("Turn cancelled after a record was created; logged as failed", "tools", JoinToolNames(t.toolNames))
	} else {
		log.Info("Turn cancelled; nothing recorded")
	}
	if err == nil {
		err = context.Canceled
	}
	return Answer{}, err
}

func (o *Orchestrator) entry(t *turn, response string, success bool) Entry {
	return Entry{
		Prompt:           t.req.Prompt,
		Response:         response,
		ToolNames:        t.toolNames,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		SecondsSaved:     t.secondsSaved,
		Success:          success,
		UserID:           t.req.Identity.userRef(),
		RequestID:        t.req.RequestID,
		Model:            t.model,
		FallbackUsed:     t.fallbackUsed,
		Calls:            t.calls,
	}
}

func (o *Orchestrator) finish(span trace.Span, t *turn, success bool) {
	span.SetAttributes(
		attribute.String("assistant.model", t.model),
		attribute.Bool("assistant.fallback_used", t.fallbackUsed),
		attribute.Int("assistant.completions", t.completions),
		attribute.Int("assistant.tool_calls", len(t.toolNames)),
		attribute.Int("assistant.prompt_tokens", t.promptTokens),
		attribute.Int("assistant.completion_tokens", t.completionTokens),
		attribute.Bool("assistant.success", success),
	)
	o.log.Info("Turn finished",
		"request_id", t.req.RequestID,
		"model", t.model,
		"fallback_used", t.fallbackUsed,
		"tools", JoinToolNames(t.toolNames),
		"prompt_tokens", t.promptTokens,
		"completion_tokens", t.completionTokens,
		"seconds_saved", t.secondsSaved,
		"success", success,
	)
}

func failureMessage(err error) string {
	if completion.KindOf(err) == completion.KindTransport {
		return connectionErrorMessage
	}
	return apologyMessage
}

func answerText(content string) string {
	if strings.TrimSpace(content) == "" {
		return emptyAnswerMessage
	}
	return content
}

func encodeToolResult(r ToolResult) string {
	raw, err := json.Marshal(r)
	if err != nil {
		raw, _ = json.Marshal(errorResult("Tool result could not be encoded"))
	}
	return string(raw)
}
