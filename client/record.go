package client

import (
	"time"
)

// Role is the authorization role of a user
type Role string

// Roles
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UserRecord is a user of the directory as returned by the server. It never
// carries a password.
type UserRecord struct {
	ID        string    `json:"id" msgpack:"id"`
	FirstName string    `json:"firstName" msgpack:"first_name"`
	LastName  string    `json:"lastName" msgpack:"last_name"`
	Email     string    `json:"email" msgpack:"email"`
	Role      Role      `json:"role" msgpack:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty" msgpack:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" msgpack:"updated_at,omitempty"`
}

// FullName returns first and last name separated by a space
func (r UserRecord) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}

// UserInput is the draft of a new user
type UserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role"`
}

// UserPatch holds the fields an administrator can change on a user
type UserPatch struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// PatchOf returns the patch that would leave r unchanged; callers modify it
func PatchOf(r UserRecord) UserPatch {
	return UserPatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Role:      r.Role,
	}
}

// ProfilePatch holds the fields users can change on their own profile
type ProfilePatch struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// checkRecord rejects records that cannot be reconciled by id
func checkRecord(op string, r *UserRecord) error {
	if r == nil {
		return &Error{
			Kind:    ValidationFailure,
			Op:      op,
			Message: "response carries no user",
		}
	}
	if r.ID == "" {
		return &Error{
			Kind:    ValidationFailure,
			Op:      op,
			Message: "user in response has no id",
		}
	}
	return nil
}
