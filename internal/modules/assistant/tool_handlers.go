package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/services"
	"github.com/yungbote/correspondence-backend/internal/types"
)

// ---------------- definitions ----------------

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

var searchCorrespondencesDef = completion.ToolDefinition{
	Name:        ToolSearchCorrespondences,
	Description: "Search inbound and outbound correspondence. All filters are optional.",
	Parameters: objectSchema(nil, map[string]any{
		"query":        prop("string", "Free text matched against subject, code and entity names"),
		"entity":       prop("string", "Sender or recipient organization"),
		"type":         enumProp("Restrict to one direction", "inbound", "outbound"),
		"status":       prop("string", "Record status, e.g. open or closed"),
		"date_from":    prop("string", "Earliest creation date, YYYY-MM-DD"),
		"date_to":      prop("string", "Latest creation date, YYYY-MM-DD"),
		"delayed_days": prop("integer", "Only items transferred at least this many days ago with no reply"),
		"limit":        prop("integer", "Maximum results (default 10)"),
	}),
}

var getCorrespondenceDetailsDef = completion.ToolDefinition{
	Name:        ToolGetCorrespondenceDetails,
	Description: "Fetch one correspondence record by id.",
	Parameters: objectSchema([]string{"id"}, map[string]any{
		"id":   prop("integer", "Record id"),
		"type": enumProp("Direction of the record", "inbound", "outbound"),
	}),
}

var createInboundDef = completion.ToolDefinition{
	Name:        ToolCreateInbound,
	Description: "Register a received (inbound) letter.",
	Parameters: objectSchema([]string{"subject"}, map[string]any{
		"subject":     prop("string", "Subject line"),
		"code":        prop("string", "Reference code; generated when omitted"),
		"from_entity": prop("string", "Sending organization"),
		"engineer":    prop("string", "Engineer responsible for the follow-up"),
	}),
}

var createOutboundDef = completion.ToolDefinition{
	Name:        ToolCreateOutbound,
	Description: "Register a sent (outbound) letter.",
	Parameters: objectSchema([]string{"subject"}, map[string]any{
		"subject":   prop("string", "Subject line"),
		"code":      prop("string", "Reference code; generated when omitted"),
		"to_entity": prop("string", "Receiving organization"),
	}),
}

var searchMeetingsDef = completion.ToolDefinition{
	Name:        ToolSearchMeetings,
	Description: "Search meetings by text and date range.",
	Parameters: objectSchema(nil, map[string]any{
		"query":     prop("string", "Free text matched against title, location, attendees and notes"),
		"date_from": prop("string", "Earliest meeting date, YYYY-MM-DD"),
		"date_to":   prop("string", "Latest meeting date, YYYY-MM-DD"),
		"limit":     prop("integer", "Maximum results (default 10)"),
	}),
}

var getMeetingDetailsDef = completion.ToolDefinition{
	Name:        ToolGetMeetingDetails,
	Description: "Fetch one meeting by id.",
	Parameters: objectSchema([]string{"id"}, map[string]any{
		"id": prop("integer", "Meeting id"),
	}),
}

var createMeetingDef = completion.ToolDefinition{
	Name:        ToolCreateMeeting,
	Description: "Schedule a meeting.",
	Parameters: objectSchema([]string{"title", "date"}, map[string]any{
		"title":     prop("string", "Meeting title"),
		"date":      prop("string", "Meeting date, YYYY-MM-DD (or today / tomorrow)"),
		"time":      prop("string", "Start time, HH:MM 24h (default 09:00)"),
		"location":  prop("string", "Room or address"),
		"attendees": prop("string", "Comma-separated attendee names"),
		"notes":     prop("string", "Agenda or notes"),
	}),
}

// ---------------- views ----------------

type correspondenceView struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	Code           string `json:"code"`
	Subject        string `json:"subject"`
	FromEntity     string `json:"from_entity,omitempty"`
	ToEntity       string `json:"to_entity,omitempty"`
	Engineer       string `json:"engineer,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	Reviewed       bool   `json:"reviewed"`
	AttachmentLink string `json:"attachment_link,omitempty"`
	TransferredAt  string `json:"transferred_at,omitempty"`
	RepliedAt      string `json:"replied_at,omitempty"`
	Link           string `json:"link"`
}

type meetingView struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	StartsAt  string `json:"starts_at"`
	Location  string `json:"location,omitempty"`
	Attendees string `json:"attendees,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Link      string `json:"link"`
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func (r *Registry) correspondenceLink(dir types.Direction, id int64) string {
	return fmt.Sprintf("%s/correspondence/%s/%d", r.linkBase, dir, id)
}

func (r *Registry) meetingLink(id int64) string {
	return fmt.Sprintf("%s/meetings/%d", r.linkBase, id)
}

func (r *Registry) viewCorrespondence(c *types.Correspondence) correspondenceView {
	created := c.CreatedAt
	return correspondenceView{
		ID:             c.ID,
		Type:           string(c.Direction),
		Code:           c.Code,
		Subject:        c.Subject,
		FromEntity:     c.FromEntity,
		ToEntity:       c.ToEntity,
		Engineer:       c.Engineer,
		Status:         c.Status,
		CreatedAt:      formatTime(&created, r.loc),
		Reviewed:       c.ReviewedAt != nil,
		AttachmentLink: c.AttachmentLink,
		TransferredAt:  formatTime(c.TransferredAt, r.loc),
		RepliedAt:      formatTime(c.RepliedAt, r.loc),
		Link:           r.correspondenceLink(c.Direction, c.ID),
	}
}

func (r *Registry) viewMeeting(m *types.Meeting) meetingView {
	starts := m.StartsAt
	return meetingView{
		ID:        m.ID,
		Title:     m.Title,
		StartsAt:  formatTime(&starts, r.loc),
		Location:  m.Location,
		Attendees: m.Attendees,
		Notes:     m.Notes,
		Link:      r.meetingLink(m.ID),
	}
}

// ---------------- handlers ----------------

func (r *Registry) searchCorrespondences(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeSearchCorrespondencesArgs(inv.Call.Arguments, r.loc)
	rows, err := r.corr.Search(ctx, services.CorrespondenceSearch{
		Query:       args.Query,
		Entity:      args.Entity,
		Direction:   args.Direction,
		Status:      args.Status,
		From:        args.DateFrom,
		To:          args.DateTo,
		DelayedDays: args.DelayedDays,
		Limit:       args.Limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]correspondenceView, 0, len(rows))
	for _, row := range rows {
		results = append(results, r.viewCorrespondence(row))
	}
	return ToolResult{"results": results, "count": len(results)}, nil
}

func (r *Registry) getCorrespondenceDetails(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeGetCorrespondenceDetailsArgs(inv.Call.Arguments)
	row, err := r.corr.GetByID(ctx, args.ID, args.Direction)
	if err != nil {
		return nil, err
	}
	return ToolResult{"result": r.viewCorrespondence(row)}, nil
}

func (r *Registry) createInbound(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeCreateInboundArgs(inv.Call.Arguments)
	id, err := r.corr.CreateInbound(ctx, services.NewInbound{
		Subject:        args.Subject,
		Code:           args.Code,
		FromEntity:     args.FromEntity,
		Engineer:       args.Engineer,
		IdempotencyKey: inv.IdempotencyKey(),
		CreatedBy:      inv.Identity.userRef(),
	})
	if err != nil {
		return nil, err
	}
	return ToolResult{"success": true, "id": id, "link": r.correspondenceLink(types.DirectionInbound, id)}, nil
}

func (r *Registry) createOutbound(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeCreateOutboundArgs(inv.Call.Arguments)
	id, err := r.corr.CreateOutbound(ctx, services.NewOutbound{
		Subject:        args.Subject,
		Code:           args.Code,
		ToEntity:       args.ToEntity,
		IdempotencyKey: inv.IdempotencyKey(),
		CreatedBy:      inv.Identity.userRef(),
	})
	if err != nil {
		return nil, err
	}
	return ToolResult{"success": true, "id": id, "link": r.correspondenceLink(types.DirectionOutbound, id)}, nil
}

func (r *Registry) searchMeetings(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeSearchMeetingsArgs(inv.Call.Arguments, r.loc)
	rows, err := r.meetings.Search(ctx, services.MeetingSearch{
		Query: args.Query,
		From:  args.DateFrom,
		To:    args.DateTo,
		Limit: args.Limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]meetingView, 0, len(rows))
	for _, row := range rows {
		results = append(results, r.viewMeeting(row))
	}
	return ToolResult{"results": results, "count": len(results)}, nil
}

func (r *Registry) getMeetingDetails(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeGetMeetingDetailsArgs(inv.Call.Arguments)
	row, err := r.meetings.GetByID(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return ToolResult{"result": r.viewMeeting(row)}, nil
}

func (r *Registry) createMeeting(ctx context.Context, inv Invocation) (ToolResult, error) {
	args := decodeCreateMeetingArgs(inv.Call.Arguments)
	startsAt, err := parseMeetingStart(args.Date, args.Time, r.now(), r.loc)
	if err != nil {
		return nil, err
	}
	id, err := r.meetings.Create(ctx, services.NewMeeting{
		Title:          args.Title,
		StartsAt:       startsAt,
		Location:       args.Location,
		Attendees:      args.Attendees,
		Notes:          args.Notes,
		IdempotencyKey: inv.IdempotencyKey(),
		CreatedBy:      inv.Identity.userRef(),
	})
	if err != nil {
		return nil, err
	}
	return ToolResult{"success": true, "id": id, "link": r.meetingLink(id)}, nil
}
