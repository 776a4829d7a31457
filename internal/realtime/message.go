package realtime

import (
	"strings"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventAssistantStatus  SSEEvent = "AssistantStatus"
	SSEEventAssistantMessage SSEEvent = "AssistantMessage"
	SSEEventAssistantDone    SSEEvent = "AssistantDone"
	SSEEventAssistantError   SSEEvent = "AssistantError"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// UserChannel scopes a client-chosen channel name to one user so that a
// subscriber can only ever join channels carrying their own events.
func UserChannel(userID uuid.UUID, name string) string {
	return userID.String() + ":" + name
}

// ChannelUser returns the user prefix of a channel built by UserChannel.
func ChannelUser(channel string) (uuid.UUID, bool) {
	prefix, _, ok := strings.Cut(channel, ":")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(prefix)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
