package client

import (
	"context"
	"sync"
)

// Account holds the profile of the authenticated user
type Account struct {
	remote AccountRemote

	mu   sync.RWMutex
	user *UserRecord
}

// NewAccount creates a new Account; initial may be nil
func NewAccount(remote AccountRemote, initial *UserRecord) *Account {
	a := &Account{remote: remote}
	if initial != nil {
		u := *initial
		a.user = &u
	}
	return a
}

// User returns the known profile
func (a *Account) User() (UserRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return UserRecord{}, false
	}
	return *a.user, true
}

func (a *Account) set(u UserRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = &u
}

// Refresh fetches the profile from the server
func (a *Account) Refresh(ctx context.Context) (UserRecord, error) {
	u, err := a.remote.Me(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	if err = checkRecord("me", &u); err != nil {
		return UserRecord{}, err
	}
	a.set(u)
	return u, nil
}

// UpdateProfile changes the user's names; the profile is only replaced once
// the server confirmed the change
func (a *Account) UpdateProfile(ctx context.Context, patch ProfilePatch) (UserRecord, error) {
	u, err := a.remote.UpdateProfile(ctx, patch)
	if err != nil {
		return UserRecord{}, err
	}
	if err = checkRecord("profile", &u); err != nil {
		return UserRecord{}, err
	}
	a.set(u)
	return u, nil
}

// Clear forgets the profile, e.g. on logout
func (a *Account) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = nil
}
