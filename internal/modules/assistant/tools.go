package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/domainerr"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/services"
)

const (
	ToolSearchCorrespondences    = "SearchCorrespondences"
	ToolGetCorrespondenceDetails = "GetCorrespondenceDetails"
	ToolCreateInbound            = "CreateInbound"
	ToolCreateOutbound           = "CreateOutbound"
	ToolSearchMeetings           = "SearchMeetings"
	ToolGetMeetingDetails        = "GetMeetingDetails"
	ToolCreateMeeting            = "CreateMeeting"
)

const (
	msgUnknownFunction = "Unknown function"
	msgNotFound        = "Not found"
	msgInvalidDateTime = "Invalid date/time format"
)

// ToolResult is the JSON object handed back to the model as a tool message.
type ToolResult map[string]any

func errorResult(msg string) ToolResult {
	return ToolResult{"error": msg}
}

// Failed reports whether the result carries an error payload.
func (r ToolResult) Failed() bool {
	_, ok := r["error"]
	return ok
}

// Invocation is one tool call plus the turn it belongs to.
type Invocation struct {
	Call      completion.ToolCall
	RequestID string
	Identity  Identity
}

// IdempotencyKey identifies the side effect of a creation call so a replayed
// call merges into the record it already created.
func (inv Invocation) IdempotencyKey() string {
	id := strings.TrimSpace(inv.Call.ID)
	if id == "" {
		return ""
	}
	if rid := strings.TrimSpace(inv.RequestID); rid != "" {
		return rid + ":" + id
	}
	return id
}

type toolHandler func(ctx context.Context, inv Invocation) (ToolResult, error)

type toolSpec struct {
	Definition completion.ToolDefinition
	Creates    bool
	handler    toolHandler
}

type RegistryDeps struct {
	Log            *logger.Logger
	Correspondence services.CorrespondenceService
	Meetings       services.MeetingService
	// LinkBase prefixes links returned by creation tools, e.g. "https://app.example.com".
	LinkBase string
	Location *time.Location
}

// Registry is the fixed tool table. It is built once and is safe for
// concurrent use; handlers hold no per-call state.
type Registry struct {
	log      *logger.Logger
	corr     services.CorrespondenceService
	meetings services.MeetingService
	linkBase string
	loc      *time.Location
	now      func() time.Time
	tools    map[string]toolSpec
	order    []string
}

func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Correspondence == nil || deps.Meetings == nil {
		return nil, errors.New("assistant: registry requires correspondence and meeting services")
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	r := &Registry{
		log:      log.With("service", "ToolRegistry"),
		corr:     deps.Correspondence,
		meetings: deps.Meetings,
		linkBase: strings.TrimRight(strings.TrimSpace(deps.LinkBase), "/"),
		loc:      loc,
		now:      time.Now,
	}
	r.register(toolSpec{Definition: searchCorrespondencesDef, handler: r.searchCorrespondences})
	r.register(toolSpec{Definition: getCorrespondenceDetailsDef, handler: r.getCorrespondenceDetails})
	r.register(toolSpec{Definition: createInboundDef, Creates: true, handler: r.createInbound})
	r.register(toolSpec{Definition: createOutboundDef, Creates: true, handler: r.createOutbound})
	r.register(toolSpec{Definition: searchMeetingsDef, handler: r.searchMeetings})
	r.register(toolSpec{Definition: getMeetingDetailsDef, handler: r.getMeetingDetails})
	r.register(toolSpec{Definition: createMeetingDef, Creates: true, handler: r.createMeeting})
	return r, nil
}

func (r *Registry) register(spec toolSpec) {
	if r.tools == nil {
		r.tools = map[string]toolSpec{}
	}
	r.tools[spec.Definition.Name] = spec
	r.order = append(r.order, spec.Definition.Name)
}

// Manifest lists the tool definitions in registration order.
func (r *Registry) Manifest() []completion.ToolDefinition {
	out := make([]completion.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition)
	}
	return out
}

// IsCreation reports whether the named tool creates a record.
func (r *Registry) IsCreation(name string) bool {
	return r.tools[name].Creates
}

// Execute runs one tool call. It never returns an error: unknown tools,
// collaborator failures and panics all come back as an error payload the
// model can read.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (result ToolResult) {
	name := inv.Call.Name
	spec, ok := r.tools[name]
	if !ok {
		r.log.Warn("Unknown tool requested", "tool", name, "tool_call_id", inv.Call.ID)
		return errorResult(msgUnknownFunction)
	}

	ctx, span := otel.Tracer("assistant").Start(ctx, "assistant.tool."+name)
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", inv.Call.ID),
		attribute.Bool("tool.creates", spec.Creates),
	)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Tool panicked", "tool", name, "panic", fmt.Sprint(p))
			span.SetStatus(codes.Error, "panic")
			result = errorResult("Internal error while running " + name)
		}
	}()

	res, err := spec.handler(ctx, inv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("Tool failed",
			"tool", name,
			"tool_call_id", inv.Call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return errorResult(toolErrorMessage(err))
	}
	r.log.Debug("Tool executed", "tool", name, "tool_call_id", inv.Call.ID, "duration_ms", time.Since(start).Milliseconds())
	return res
}

func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, domainerr.ErrNotFound):
		return msgNotFound
	case errors.Is(err, errBadDateTime):
		return msgInvalidDateTime
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The operation was cancelled or timed out"
	default:
		return err.Error()
	}
}
