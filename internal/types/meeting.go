package types

import (
	"time"

	"github.com/google/uuid"
)

type Meeting struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title          string     `gorm:"column:title;not null" json:"title"`
	StartsAt       time.Time  `gorm:"column:starts_at;not null;index" json:"starts_at"`
	Location       string     `gorm:"column:location" json:"location,omitempty"`
	Attendees      string     `gorm:"column:attendees" json:"attendees,omitempty"`
	Notes          string     `gorm:"column:notes" json:"notes,omitempty"`
	IdempotencyKey *string    `gorm:"column:idempotency_key;uniqueIndex" json:"-"`
	CreatedBy      *uuid.UUID `gorm:"type:uuid;column:created_by;index" json:"created_by,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (Meeting) TableName() string {
	return "meeting"
}
