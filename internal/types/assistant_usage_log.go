package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NoToolsSentinel is stored in ToolNames when a turn executed no tools.
const NoToolsSentinel = "none"

// AssistantUsageLog is the audit row written once per completed or failed
// assistant turn. Feedback is the only column updated after insert.
type AssistantUsageLog struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           *uuid.UUID     `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	RequestID        string         `gorm:"column:request_id;index" json:"request_id,omitempty"`
	Prompt           string         `gorm:"column:prompt;not null" json:"prompt"`
	Response         string         `gorm:"column:response" json:"response"`
	ToolNames        string         `gorm:"column:tool_names;not null" json:"tool_names"`
	Model            string         `gorm:"column:model" json:"model"`
	FallbackUsed     bool           `gorm:"column:fallback_used;not null;default:false" json:"fallback_used"`
	PromptTokens     int            `gorm:"column:prompt_tokens;not null;default:0" json:"prompt_tokens"`
	CompletionTokens int            `gorm:"column:completion_tokens;not null;default:0" json:"completion_tokens"`
	SecondsSaved     int            `gorm:"column:seconds_saved;not null;default:0" json:"seconds_saved"`
	Success          bool           `gorm:"column:success;not null" json:"success"`
	Feedback         *bool          `gorm:"column:feedback" json:"feedback,omitempty"`
	Details          datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AssistantUsageLog) TableName() string {
	return "assistant_usage_log"
}

// UsageSummary aggregates usage rows for reporting.
type UsageSummary struct {
	Turns            int64 `json:"turns"`
	SuccessfulTurns  int64 `json:"successful_turns"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	SecondsSaved     int64 `json:"seconds_saved"`
	HelpfulVotes     int64 `json:"helpful_votes"`
	UnhelpfulVotes   int64 `json:"unhelpful_votes"`
}
