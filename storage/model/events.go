package model

import (
	"gorm.io/datatypes"
)

// Event types recorded in the audit trail
const (
	EventTypeCreated        = "created"
	EventTypeUpdated        = "updated"
	EventTypeDeleted        = "deleted"
	EventTypeProfileUpdated = "profile_updated"
	EventTypeRegistered     = "registered"
)

// UserEvent stores an audit event related to a directory user.
type UserEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    string         `gorm:"index;size:36" json:"userId"`
	Timestamp int64          `gorm:"index" json:"timestamp"`
	Type      string         `gorm:"index;size:32" json:"type"`
	Actor     string         `gorm:"size:36" json:"actor,omitempty"`
	Details   datatypes.JSON `json:"details,omitempty"`
}

// EventsStore records and lists audit events
type EventsStore interface {
	// Record stores a new event
	Record(event UserEvent) error
	// List returns the most recent events first; limit <= 0 means no limit
	List(userID string, limit int) ([]UserEvent, error)
}
