package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/types"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeCorrespondence, *fakeMeetings) {
	t.Helper()
	corr := newFakeCorrespondence()
	meetings := newFakeMeetings()
	reg, err := NewRegistry(RegistryDeps{Log: logger.NewNop(), Correspondence: corr, Meetings: meetings})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reg.now = func() time.Time { return time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC) }
	return reg, corr, meetings
}

func exec(reg *Registry, name, args string) ToolResult {
	return reg.Execute(context.Background(), Invocation{Call: completion.ToolCall{ID: "call_1", Name: name, Arguments: args}})
}

func TestManifestOrderAndCreationFlags(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	want := []string{
		ToolSearchCorrespondences, ToolGetCorrespondenceDetails, ToolCreateInbound, ToolCreateOutbound,
		ToolSearchMeetings, ToolGetMeetingDetails, ToolCreateMeeting,
	}
	got := reg.Manifest()
	if len(got) != len(want) {
		t.Fatalf("manifest=%d tools", len(got))
	}
	for i, def := range got {
		if def.Name != want[i] {
			t.Fatalf("manifest[%d]=%s want %s", i, def.Name, want[i])
		}
		if def.Parameters["type"] != "object" {
			t.Fatalf("%s parameters must be an object schema", def.Name)
		}
	}
	for _, name := range []string{ToolCreateInbound, ToolCreateOutbound, ToolCreateMeeting} {
		if !reg.IsCreation(name) {
			t.Fatalf("%s should be a creation tool", name)
		}
	}
	if reg.IsCreation(ToolSearchMeetings) || reg.IsCreation("nope") {
		t.Fatalf("non-creation tool flagged")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, corr, meetings := newTestRegistry(t)
	res := exec(reg, "DropTables", `{"x":1}`)
	if res["error"] != "Unknown function" || !res.Failed() {
		t.Fatalf("result=%v", res)
	}
	if corr.calls+meetings.calls != 0 {
		t.Fatalf("no collaborator call expected")
	}
}

func TestExecuteCollaboratorErrorBecomesPayload(t *testing.T) {
	reg, corr, _ := newTestRegistry(t)
	corr.searchErr = errors.New("database is locked")
	res := exec(reg, ToolSearchCorrespondences, `{}`)
	if res["error"] != "database is locked" {
		t.Fatalf("result=%v", res)
	}
}

func TestExecuteDetails(t *testing.T) {
	reg, corr, _ := newTestRegistry(t)
	corr.rows[3] = &types.Correspondence{ID: 3, Direction: types.DirectionInbound, Code: "IN-3", Subject: "Quote"}

	res := exec(reg, ToolGetCorrespondenceDetails, `{"id":"3","type":"incoming"}`)
	view, ok := res["result"].(correspondenceView)
	if !ok || view.Code != "IN-3" || view.Link != "/correspondence/inbound/3" {
		t.Fatalf("result=%v", res)
	}
	if res := exec(reg, ToolGetCorrespondenceDetails, `{"id":3,"type":"outbound"}`); res["error"] != "Not found" {
		t.Fatalf("direction mismatch result=%v", res)
	}
	if res := exec(reg, ToolGetCorrespondenceDetails, `not json`); res["error"] != "Not found" {
		t.Fatalf("malformed args result=%v", res)
	}
}

func TestDecodeSearchArgsPermissive(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want searchCorrespondencesArgs
	}{
		{name: "malformed", raw: `{"entity":`, want: searchCorrespondencesArgs{Limit: 10}},
		{name: "empty", raw: ``, want: searchCorrespondencesArgs{Limit: 10}},
		{name: "wrong_types", raw: `{"entity": 42, "limit": "abc", "delayed_days": true}`, want: searchCorrespondencesArgs{Entity: "42", Limit: 10}},
		{name: "numeric_strings", raw: `{"limit": "5", "delayed_days": "3"}`, want: searchCorrespondencesArgs{Limit: 5, DelayedDays: 3}},
		{name: "negative_and_huge", raw: `{"limit": 500, "delayed_days": -2}`, want: searchCorrespondencesArgs{Limit: 10}},
		{name: "out_of_range", raw: `{"limit": 1e300, "delayed_days": "-1e300"}`, want: searchCorrespondencesArgs{Limit: 10}},
		{name: "direction_alias", raw: `{"direction":"sent","query":" pumps "}`, want: searchCorrespondencesArgs{Direction: types.DirectionOutbound, Query: "pumps", Limit: 10}},
		{name: "bad_date_ignored", raw: `{"date_from":"yesterday-ish"}`, want: searchCorrespondencesArgs{Limit: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeSearchCorrespondencesArgs(tc.raw, time.UTC)
			if got.Query != tc.want.Query || got.Entity != tc.want.Entity || got.Direction != tc.want.Direction ||
				got.Limit != tc.want.Limit || got.DelayedDays != tc.want.DelayedDays || got.DateFrom != nil || got.DateTo != nil {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}

	got := decodeSearchCorrespondencesArgs(`{"date_from":"2026-01-02","date_to":"02/01/2026"}`, time.UTC)
	if got.DateFrom == nil || !got.DateFrom.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date_from=%v", got.DateFrom)
	}
	if got.DateTo == nil || got.DateTo.Day() != 2 || got.DateTo.Hour() != 23 {
		t.Fatalf("date_to should cover the whole day, got %v", got.DateTo)
	}
}

func TestRawArgsNum64(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{`{"n": 42.9}`, 42},
		{`{"n": -3}`, -3},
		{`{"n": "17"}`, 17},
		{`{"n": "2.5"}`, 2},
		{`{"n": 1e300}`, -1},
		{`{"n": -1e300}`, -1},
		{`{"n": 9223372036854775808}`, -1},
		{`{"n": "1e19"}`, -1},
		{`{"n": "99999999999999999999"}`, -1},
		{`{"n": "NaN"}`, -1},
		{`{"n": "Inf"}`, -1},
		{`{"n": null}`, -1},
	}
	for _, tc := range cases {
		if got := parseRawArgs(tc.raw).num64(-1, "n"); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseMeetingStart(t *testing.T) {
	now := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		date, clock string
		want        time.Time
		wantErr     bool
	}{
		{date: "2026-05-10", clock: "14:30", want: time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)},
		{date: "2026-05-10", want: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)},
		{date: "2026-05-10 16:15", want: time.Date(2026, 5, 10, 16, 15, 0, 0, time.UTC)},
		{date: "2026-05-10T08:05:00", want: time.Date(2026, 5, 10, 8, 5, 0, 0, time.UTC)},
		{date: "2026-05-10T08:05:00Z", want: time.Date(2026, 5, 10, 8, 5, 0, 0, time.UTC)},
		{date: "10/05/2026", clock: "3pm", want: time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)},
		{date: "tomorrow", clock: "9:30", want: time.Date(2026, 5, 5, 9, 30, 0, 0, time.UTC)},
		{date: "today", clock: "2:15 PM", want: time.Date(2026, 5, 4, 14, 15, 0, 0, time.UTC)},
		{date: "", wantErr: true},
		{date: "next blursday", wantErr: true},
		{date: "2026-13-40", wantErr: true},
		{date: "2026-05-10", clock: "25:99", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseMeetingStart(tc.date, tc.clock, now, time.UTC)
		if tc.wantErr {
			if !errors.Is(err, errBadDateTime) {
				t.Fatalf("%q %q: expected date/time error, got %v (%v)", tc.date, tc.clock, err, got)
			}
			continue
		}
		if err != nil || !got.Equal(tc.want) {
			t.Fatalf("%q %q: got %v err=%v want %v", tc.date, tc.clock, got, err, tc.want)
		}
	}
}

func TestCreateMeetingTool(t *testing.T) {
	reg, _, meetings := newTestRegistry(t)

	res := exec(reg, ToolCreateMeeting, `{"title":"Review","date":"2026-05-10","time":"10:00","attendees":["Ana"," Li "]}`)
	if res["success"] != true || res["link"] != "/meetings/501" {
		t.Fatalf("result=%v", res)
	}
	if len(meetings.created) != 1 {
		t.Fatalf("created=%d", len(meetings.created))
	}
	in := meetings.created[0]
	if in.Attendees != "Ana, Li" || in.IdempotencyKey != "call_1" || in.StartsAt.Hour() != 10 {
		t.Fatalf("input=%+v", in)
	}

	res = exec(reg, ToolCreateMeeting, `{"title":"Review","date":"2026-05-10","time":"whenever"}`)
	if res["error"] != "Invalid date/time format" {
		t.Fatalf("result=%v", res)
	}
	if len(meetings.created) != 1 {
		t.Fatalf("invalid date must not create a record")
	}
}

func TestIdempotencyKey(t *testing.T) {
	cases := []struct {
		callID, requestID, want string
	}{
		{"call_1", "", "call_1"},
		{"call_1", "req-9", "req-9:call_1"},
		{"", "req-9", ""},
	}
	for _, tc := range cases {
		inv := Invocation{Call: completion.ToolCall{ID: tc.callID}, RequestID: tc.requestID}
		if got := inv.IdempotencyKey(); got != tc.want {
			t.Fatalf("IdempotencyKey(%q,%q)=%q want %q", tc.callID, tc.requestID, got, tc.want)
		}
	}
}

type panickyMeetings struct{ *fakeMeetings }

func (panickyMeetings) GetByID(ctx context.Context, id int64) (*types.Meeting, error) {
	panic("boom")
}

func TestExecuteRecoversPanics(t *testing.T) {
	reg, err := NewRegistry(RegistryDeps{Correspondence: newFakeCorrespondence(), Meetings: panickyMeetings{newFakeMeetings()}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	res := exec(reg, ToolGetMeetingDetails, `{"id":1}`)
	if !res.Failed() {
		t.Fatalf("panic should become an error payload, got %v", res)
	}
}

func TestSecondsSavedDefault(t *testing.T) {
	if SecondsSaved(ToolCreateMeeting) != 240 || SecondsSaved("Whatever") != defaultSecondsSaved {
		t.Fatalf("seconds saved table mismatch")
	}
}
