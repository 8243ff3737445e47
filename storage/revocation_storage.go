package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/purvisolanki/userdir/storage/model"
)

// RevocationStorage implements model.RevocationStore using GORM
type RevocationStorage struct {
	db *gorm.DB
}

// RevocationStorage returns a RevocationStorage
func (s *Storage) RevocationStorage() *RevocationStorage {
	return &RevocationStorage{db: s.db}
}

// Revoke marks the token id as revoked; expired entries are pruned on the way
func (s *RevocationStorage) Revoke(ctx context.Context, jti string, until time.Time) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("expires_at < ?", time.Now()).Delete(&model.RevokedToken{}).Error; err != nil {
		return errors.Wrap(err, "revocations: prune failed")
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(
		&model.RevokedToken{
			JTI:       jti,
			ExpiresAt: until,
		},
	).Error
	return errors.Wrap(err, "revocations: revoke failed")
}

// IsRevoked reports whether the token id was revoked and is not yet expired
func (s *RevocationStorage) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.RevokedToken{}).
		Where("jti = ? AND expires_at >= ?", jti, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "revocations: lookup failed")
	}
	return count > 0, nil
}

// RevokeUser records that the user's tokens issued at or before notBefore
// are no longer valid; a later call moves notBefore forward
func (s *RevocationStorage) RevokeUser(ctx context.Context, userID string, notBefore, until time.Time) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("expires_at < ?", time.Now()).Delete(&model.RevokedUser{}).Error; err != nil {
		return errors.Wrap(err, "revocations: prune failed")
	}
	err := db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"not_before", "expires_at"}),
		},
	).Create(
		&model.RevokedUser{
			UserID:    userID,
			NotBefore: notBefore,
			ExpiresAt: until,
		},
	).Error
	return errors.Wrap(err, "revocations: revoke user failed")
}

// RevokedBefore returns the time up to which the user's tokens are revoked,
// or the zero time
func (s *RevocationStorage) RevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	var entries []model.RevokedUser
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at >= ?", userID, time.Now()).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return time.Time{}, errors.Wrap(err, "revocations: lookup failed")
	}
	if len(entries) == 0 {
		return time.Time{}, nil
	}
	return entries[0].NotBefore, nil
}

const (
	redisRevocationPrefix     = "userdir:revoked:"
	redisUserRevocationPrefix = "userdir:revoked-user:"
)

// RedisRevocationStorage implements model.RevocationStore on top of redis;
// entries expire together with the token they revoke.
type RedisRevocationStorage struct {
	client redis.UniversalClient
}

// NewRedisRevocationStorage creates a RedisRevocationStorage for the passed
// options and checks the connection
func NewRedisRevocationStorage(ctx context.Context, opts *redis.Options) (*RedisRevocationStorage, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}
	return &RedisRevocationStorage{client: client}, nil
}

// Revoke marks the token id as revoked until the passed expiry
func (s *RedisRevocationStorage) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(
		s.client.Set(ctx, redisRevocationPrefix+jti, 1, ttl).Err(),
		"revocations: revoke failed",
	)
}

// IsRevoked reports whether the token id was revoked
func (s *RedisRevocationStorage) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, redisRevocationPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "revocations: lookup failed")
	}
	return n > 0, nil
}

// RevokeUser stores notBefore as unix seconds under the user's key
func (s *RedisRevocationStorage) RevokeUser(ctx context.Context, userID string, notBefore, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(
		s.client.Set(ctx, redisUserRevocationPrefix+userID, notBefore.Unix(), ttl).Err(),
		"revocations: revoke user failed",
	)
}

// RevokedBefore returns the time up to which the user's tokens are revoked,
// or the zero time
func (s *RedisRevocationStorage) RevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	secs, err := s.client.Get(ctx, redisUserRevocationPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "revocations: lookup failed")
	}
	return time.Unix(secs, 0), nil
}

// Close closes the redis connection
func (s *RedisRevocationStorage) Close() error {
	return s.client.Close()
}
