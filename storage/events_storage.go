package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/purvisolanki/userdir/storage/model"
)

// EventsStorage implements model.EventsStore using GORM
type EventsStorage struct {
	db *gorm.DB
}

// EventsStorage returns an EventsStorage
func (s *Storage) EventsStorage() *EventsStorage {
	return &EventsStorage{db: s.db}
}

// Record stores a new event
func (s *EventsStorage) Record(event model.UserEvent) error {
	return errors.Wrap(s.db.Create(&event).Error, "events: record failed")
}

// List returns events newest first, optionally restricted to one user
func (s *EventsStorage) List(userID string, limit int) ([]model.UserEvent, error) {
	events := []model.UserEvent{}
	q := s.db.Order("timestamp desc, id desc")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "events: list failed")
	}
	return events, nil
}
