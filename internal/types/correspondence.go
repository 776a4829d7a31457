package types

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Correspondence is one tracked letter, either received (inbound) or sent
// (outbound). Review, attachment and transfer columns feed the alert snapshot.
type Correspondence struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Direction          Direction  `gorm:"column:direction;type:varchar(16);not null;index" json:"direction"`
	Code               string     `gorm:"column:code;not null;index" json:"code"`
	Subject            string     `gorm:"column:subject;not null" json:"subject"`
	FromEntity         string     `gorm:"column:from_entity;index" json:"from_entity,omitempty"`
	ToEntity           string     `gorm:"column:to_entity;index" json:"to_entity,omitempty"`
	Engineer           string     `gorm:"column:engineer" json:"engineer,omitempty"`
	Status             string     `gorm:"column:status;not null;default:'open'" json:"status"`
	ReviewedAt         *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	RequiresAttachment bool       `gorm:"column:requires_attachment;not null;default:false" json:"requires_attachment"`
	AttachmentLink     string     `gorm:"column:attachment_link" json:"attachment_link,omitempty"`
	TransferredAt      *time.Time `gorm:"column:transferred_at;index" json:"transferred_at,omitempty"`
	RepliedAt          *time.Time `gorm:"column:replied_at" json:"replied_at,omitempty"`
	IdempotencyKey     *string    `gorm:"column:idempotency_key;uniqueIndex" json:"-"`
	CreatedBy          *uuid.UUID `gorm:"type:uuid;column:created_by;index" json:"created_by,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (Correspondence) TableName() string {
	return "correspondence"
}
