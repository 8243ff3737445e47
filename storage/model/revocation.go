package model

import (
	"context"
	"time"
)

// RevokedToken marks a session token id as no longer acceptable until its
// natural expiry
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"index"`
}

// RevokedUser invalidates every session of a user issued at or before
// NotBefore. The entry is kept until the last of those sessions expired.
type RevokedUser struct {
	UserID    string    `gorm:"primaryKey;size:36"`
	NotBefore time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// RevocationStore keeps track of ended sessions: single tokens that were
// logged out and all tokens of users that were deleted or changed role
type RevocationStore interface {
	// Revoke marks the token id as revoked until the passed expiry
	Revoke(ctx context.Context, jti string, until time.Time) error
	// IsRevoked reports whether the token id was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUser rejects all tokens of the user issued at or before
	// notBefore; the entry may be forgotten after until
	RevokeUser(ctx context.Context, userID string, notBefore, until time.Time) error
	// RevokedBefore returns the notBefore of the user, or the zero time
	RevokedBefore(ctx context.Context, userID string) (time.Time, error)
}
