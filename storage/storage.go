package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/purvisolanki/userdir/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.User{},
	&model.UserEvent{},
	&model.RevokedToken{},
	&model.RevokedUser{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate the schemas
	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Fill user hash params with defaults if zero values
	params := config.UsersHash
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// Backends returns all stores backed by this Storage
func (s *Storage) Backends() model.Backends {
	return model.Backends{
		Users:       s.UsersStorage(),
		Events:      s.EventsStorage(),
		Revocations: s.RevocationStorage(),
	}
}

// DB exposes the underlying connection, e.g. for health checks
func (s *Storage) DB() *gorm.DB {
	return s.db
}
