package assistant

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
)

// Role is the caller's tier. It changes the framing of the system prompt,
// never the data the assistant can see.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole maps free-form role claims onto a tier; anything unknown is staff.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator", "superuser":
		return RoleAdmin
	case "manager", "reviewer", "supervisor":
		return RoleManager
	default:
		return RoleStaff
	}
}

type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	Role        Role
}

func (id Identity) userRef() *uuid.UUID {
	if id.UserID == uuid.Nil {
		return nil
	}
	u := id.UserID
	return &u
}

type AskRequest struct {
	Prompt    string
	History   []completion.Message
	Identity  Identity
	RequestID string
}

// Answer is what the caller shows the user. LogID 0 means the turn was not
// recorded.
type Answer struct {
	Content string `json:"content"`
	LogID   int64  `json:"log_id"`
}

type Stage string

const (
	StageThinking  Stage = "thinking"
	StageTool      Stage = "tool"
	StageComposing Stage = "composing"
)

type StatusUpdate struct {
	Stage   Stage  `json:"stage"`
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message"`
}

// StatusFunc receives progress updates during a turn. It may be nil.
type StatusFunc func(StatusUpdate)
