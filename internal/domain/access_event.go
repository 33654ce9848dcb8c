package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccessEvent is one redirecting gate decision: a page the session could
// not see, together with the roles the page asked for.
type AccessEvent struct {
	EventID       uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	SessionID     string         `gorm:"column:session_id;index;not null" json:"session_id"`
	UserID        *string        `gorm:"column:user_id;index" json:"user_id"`
	SchoolID      *string        `gorm:"column:school_id" json:"school_id"`
	Path          string         `gorm:"column:path;not null" json:"path"`
	Decision      string         `gorm:"column:decision;type:varchar(20);not null" json:"decision"`
	RequiredRoles datatypes.JSON `gorm:"column:required_roles;type:jsonb" json:"required_roles"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
}

func (AccessEvent) TableName() string {
	return "AccessEvents"
}

func (e *AccessEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
