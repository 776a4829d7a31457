package assistant

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/correspondence-backend/internal/types"
)

var errBadDateTime = errors.New("invalid date/time format")

// rawArgs is the provider's argument object. Malformed JSON decodes to an
// empty set, so every field takes its default.
type rawArgs map[string]any

func parseRawArgs(argumentsJSON string) rawArgs {
	out := rawArgs{}
	s := strings.TrimSpace(argumentsJSON)
	if s == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return rawArgs{}
	}
	return out
}

// str returns the first non-empty string among keys. Numbers and booleans
// are rendered as text.
func (a rawArgs) str(keys ...string) string {
	for _, k := range keys {
		switch v := a[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// num64 accepts JSON numbers and numeric strings; anything else yields def.
func (a rawArgs) num64(def int64, keys ...string) int64 {
	for _, k := range keys {
		switch v := a[k].(type) {
		case float64:
			if n, ok := floatToInt64(v); ok {
				return n
			}
		case string:
			s := strings.TrimSpace(v)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				if n, ok := floatToInt64(f); ok {
					return n
				}
			}
		}
	}
	return def
}

// floatToInt64 truncates f, rejecting values int64 cannot hold.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func (a rawArgs) num(def int, keys ...string) int {
	return int(a.num64(int64(def), keys...))
}

// date parses the first key holding a recognizable calendar date. An absent
// or unparseable value means "no filter".
func (a rawArgs) date(loc *time.Location, keys ...string) *time.Time {
	s := a.str(keys...)
	if s == "" {
		return nil
	}
	d, ok := parseDate(s, loc)
	if !ok {
		return nil
	}
	return &d
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
	"15h04",
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseClock(s string) (int, int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// parseMeetingStart combines a date and an optional clock time. A full
// RFC 3339 timestamp in the date field is accepted as-is. Relative words
// "today" and "tomorrow" resolve against now.
func parseMeetingStart(dateStr, clockStr string, now time.Time, loc *time.Location) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, errBadDateTime
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil && strings.TrimSpace(clockStr) == "" {
		return t, nil
	}
	if parts := strings.SplitN(dateStr, " ", 2); len(parts) == 2 && clockStr == "" {
		if _, _, ok := parseClock(parts[1]); ok {
			dateStr, clockStr = parts[0], parts[1]
		}
	}
	if i := strings.Index(dateStr, "T"); i == 10 && clockStr == "" {
		dateStr, clockStr = dateStr[:i], dateStr[i+1:]
	}

	var day time.Time
	switch strings.ToLower(dateStr) {
	case "today":
		y, m, d := now.In(loc).Date()
		day = time.Date(y, m, d, 0, 0, 0, 0, loc)
	case "tomorrow":
		y, m, d := now.In(loc).AddDate(0, 0, 1).Date()
		day = time.Date(y, m, d, 0, 0, 0, 0, loc)
	default:
		parsed, ok := parseDate(dateStr, loc)
		if !ok {
			return time.Time{}, errBadDateTime
		}
		day = parsed
	}

	hour, minute := 9, 0
	if strings.TrimSpace(clockStr) != "" {
		h, m, ok := parseClock(clockStr)
		if !ok {
			return time.Time{}, errBadDateTime
		}
		hour, minute = h, m
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func parseDirection(s string) types.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inbound", "incoming", "in", "received":
		return types.DirectionInbound
	case "outbound", "outgoing", "out", "sent":
		return types.DirectionOutbound
	default:
		return ""
	}
}

// ---------------- per-tool parameters ----------------

type searchCorrespondencesArgs struct {
	Query       string
	Entity      string
	Direction   types.Direction
	Status      string
	DateFrom    *time.Time
	DateTo      *time.Time
	DelayedDays int
	Limit       int
}

func decodeSearchCorrespondencesArgs(raw string, loc *time.Location) searchCorrespondencesArgs {
	a := parseRawArgs(raw)
	out := searchCorrespondencesArgs{
		Query:       a.str("query", "keyword", "subject"),
		Entity:      a.str("entity", "from_entity", "to_entity"),
		Direction:   parseDirection(a.str("type", "direction")),
		Status:      a.str("status"),
		DateFrom:    a.date(loc, "date_from", "from_date"),
		DateTo:      a.date(loc, "date_to", "to_date"),
		DelayedDays: a.num(0, "delayed_days", "delay_days", "days_delayed"),
		Limit:       a.num(10, "limit"),
	}
	if out.DateTo != nil {
		end := out.DateTo.Add(24*time.Hour - time.Nanosecond)
		out.DateTo = &end
	}
	if out.DelayedDays < 0 {
		out.DelayedDays = 0
	}
	if out.Limit <= 0 || out.Limit > 50 {
		out.Limit = 10
	}
	return out
}

type getCorrespondenceDetailsArgs struct {
	ID        int64
	Direction types.Direction
}

func decodeGetCorrespondenceDetailsArgs(raw string) getCorrespondenceDetailsArgs {
	a := parseRawArgs(raw)
	return getCorrespondenceDetailsArgs{
		ID:        a.num64(0, "id", "correspondence_id"),
		Direction: parseDirection(a.str("type", "direction")),
	}
}

type createInboundArgs struct {
	Subject    string
	Code       string
	FromEntity string
	Engineer   string
}

func decodeCreateInboundArgs(raw string) createInboundArgs {
	a := parseRawArgs(raw)
	return createInboundArgs{
		Subject:    a.str("subject"),
		Code:       a.str("code", "reference"),
		FromEntity: a.str("from_entity", "entity", "from"),
		Engineer:   a.str("engineer", "assignee"),
	}
}

type createOutboundArgs struct {
	Subject  string
	Code     string
	ToEntity string
}

func decodeCreateOutboundArgs(raw string) createOutboundArgs {
	a := parseRawArgs(raw)
	return createOutboundArgs{
		Subject:  a.str("subject"),
		Code:     a.str("code", "reference"),
		ToEntity: a.str("to_entity", "entity", "to"),
	}
}

type searchMeetingsArgs struct {
	Query    string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

func decodeSearchMeetingsArgs(raw string, loc *time.Location) searchMeetingsArgs {
	a := parseRawArgs(raw)
	out := searchMeetingsArgs{
		Query:    a.str("query", "keyword", "title"),
		DateFrom: a.date(loc, "date_from", "from_date"),
		DateTo:   a.date(loc, "date_to", "to_date"),
		Limit:    a.num(10, "limit"),
	}
	if out.DateTo != nil {
		end := out.DateTo.Add(24*time.Hour - time.Nanosecond)
		out.DateTo = &end
	}
	if out.Limit <= 0 || out.Limit > 50 {
		out.Limit = 10
	}
	return out
}

type getMeetingDetailsArgs struct {
	ID int64
}

func decodeGetMeetingDetailsArgs(raw string) getMeetingDetailsArgs {
	a := parseRawArgs(raw)
	return getMeetingDetailsArgs{ID: a.num64(0, "id", "meeting_id")}
}

type createMeetingArgs struct {
	Title     string
	Date      string
	Time      string
	Location  string
	Attendees string
	Notes     string
}

func decodeCreateMeetingArgs(raw string) createMeetingArgs {
	a := parseRawArgs(raw)
	out := createMeetingArgs{
		Title:     a.str("title", "subject"),
		Date:      a.str("date", "datetime", "start"),
		Time:      a.str("time"),
		Location:  a.str("location", "place"),
		Attendees: a.str("attendees"),
		Notes:     a.str("notes", "agenda"),
	}
	if list, ok := a["attendees"].([]any); ok {
		names := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				names = append(names, strings.TrimSpace(s))
			}
		}
		out.Attendees = strings.Join(names, ", ")
	}
	return out
}
