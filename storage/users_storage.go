package storage

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/purvisolanki/userdir/storage/model"
)

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{db: s.db, hasher: newPasswordHasher(s.userParams)}
}

// UsersStorage implements model.UsersStore using GORM
type UsersStorage struct {
	db     *gorm.DB
	hasher passwordHasher
}

// Count returns the number of users present in the store
func (s *UsersStorage) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "users: count failed")
	}
	return count, nil
}

// List returns all users ordered by creation
func (s *UsersStorage) List() ([]model.User, error) {
	users := []model.User{}
	if err := s.db.Order("created_at, id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "users: list failed")
	}
	return users, nil
}

func (s *UsersStorage) find(id string) (*model.User, error) {
	var u model.User
	if err := s.db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("user not found: %s", id)
		}
		return nil, errors.Wrap(err, "users: get failed")
	}
	return &u, nil
}

// Get returns a user by id
func (s *UsersStorage) Get(id string) (*model.User, error) {
	return s.find(id)
}

// emailTaken reports whether another user than exceptID already uses the email
func (s *UsersStorage) emailTaken(email, exceptID string) (bool, error) {
	var existing int64
	q := s.db.Model(&model.User{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&existing).Error; err != nil {
		return false, errors.Wrap(err, "users: email lookup failed")
	}
	return existing > 0, nil
}

// Create creates a user with an Argon2id-hashed password
func (s *UsersStorage) Create(in model.UserInput) (*model.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, model.ValidationError("email and password are required")
	}
	email := model.NormalizeEmail(in.Email)
	taken, err := s.emailTaken(email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, model.AlreadyExistsErrorFmt("user already exists: %s", email)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := model.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err = s.db.Create(&u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, model.AlreadyExistsErrorFmt("user already exists: %s", email)
		}
		return nil, errors.Wrap(err, "users: create failed")
	}
	return &u, nil
}

// Update replaces names, email and role of the user with the passed id
func (s *UsersStorage) Update(id string, patch model.UserPatch) (*model.User, error) {
	u, err := s.find(id)
	if err != nil {
		return nil, err
	}
	email := model.NormalizeEmail(patch.Email)
	if email != u.Email {
		taken, err := s.emailTaken(email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, model.AlreadyExistsErrorFmt("email already in use: %s", email)
		}
	}
	u.FirstName = strings.TrimSpace(patch.FirstName)
	u.LastName = strings.TrimSpace(patch.LastName)
	u.Email = email
	u.Role = patch.Role
	if err = s.db.Save(u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, model.AlreadyExistsErrorFmt("email already in use: %s", email)
		}
		return nil, errors.Wrap(err, "users: update failed")
	}
	return u, nil
}

// UpdateProfile changes the names of the user with the passed id
func (s *UsersStorage) UpdateProfile(id string, patch model.ProfilePatch) (*model.User, error) {
	u, err := s.find(id)
	if err != nil {
		return nil, err
	}
	u.FirstName = strings.TrimSpace(patch.FirstName)
	u.LastName = strings.TrimSpace(patch.LastName)
	if err = s.db.Save(u).Error; err != nil {
		return nil, errors.Wrap(err, "users: profile update failed")
	}
	return u, nil
}

// Delete deletes a user by id
func (s *UsersStorage) Delete(id string) error {
	res := s.db.Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "users: delete failed")
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("user not found: %s", id)
	}
	return nil
}

// Authenticate validates email/password and auto-upgrades the hash if the
// configured hashing parameters changed
func (s *UsersStorage) Authenticate(email, password string) (*model.User, error) {
	var u model.User
	if err := s.db.Where("email = ?", model.NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, errors.New("invalid credentials")
	}
	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil || !ok {
		return nil, errors.New("invalid credentials")
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if newHash, err := s.hasher.Hash(password); err == nil {
			_ = s.db.Model(&model.User{}).Where("id = ?", u.ID).Update("password_hash", newHash).Error
		}
	}
	return &u, nil
}

// isUniqueConstraintError performs a cheap check across supported drivers.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		// SQLite
		"UNIQUE constraint failed",
		// MySQL
		"Duplicate entry", "Error 1062",
		// Postgres
		"duplicate key value", "violates unique constraint",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
