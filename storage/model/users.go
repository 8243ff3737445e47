package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization role of a directory user
type Role string

// Constants for Role
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles lists all known roles
var Roles = []Role{
	RoleAdmin,
	RoleUser,
}

// Valid reports whether the role is one of the defined constants.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a record of the user directory.
// The password is only ever stored as a PHC-formatted argon2id hash and is
// never serialized.
type User struct {
	// ID is assigned by the store on creation and never changes
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FirstName string `gorm:"size:191" json:"firstName"`
	LastName  string `gorm:"size:191" json:"lastName"`
	// Email is stored lowercased, which makes the unique index case-insensitive
	Email        string `gorm:"uniqueIndex;size:191" json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `gorm:"size:16;index" json:"role"`
}

// BeforeCreate assigns a fresh opaque id
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserInput is the payload for creating a user, either by an administrator or
// through self-registration
type UserInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      Role   `json:"role" validate:"required,oneof=admin user"`
}

// UserPatch is the payload for updating a user; the password cannot be
// changed through this path
type UserPatch struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      Role   `json:"role" validate:"required,oneof=admin user"`
}

// ProfilePatch is the payload a user sends to edit their own profile
type ProfilePatch struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NormalizeEmail trims and lowercases an email address so that matching is
// case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsersStore abstracts CRUD and authentication helpers for directory users.
type UsersStore interface {
	// Count returns the number of users present in the store
	Count() (int64, error)
	// List returns all users in insertion order
	List() ([]User, error)
	// Get returns a user by id
	Get(id string) (*User, error)
	// Create creates a user; the implementation must hash the password
	Create(in UserInput) (*User, error)
	// Update replaces names, email and role of a user
	Update(id string, patch UserPatch) (*User, error)
	// UpdateProfile changes only the names of a user
	UpdateProfile(id string, patch ProfilePatch) (*User, error)
	// Delete deletes a user by id
	Delete(id string) error
	// Authenticate checks an email/password combo and returns the user
	Authenticate(email, password string) (*User, error)
}
