package client

import (
	"context"
)

// Remote is the server side of the directory as seen by the cache.
// Every method returns an *Error on failure.
type Remote interface {
	List(ctx context.Context) ([]UserRecord, error)
	Create(ctx context.Context, draft UserInput) (UserRecord, error)
	Update(ctx context.Context, id string, patch UserPatch) (UserRecord, error)
	Delete(ctx context.Context, id string) error
}

// AccountRemote is the self-service part of the server
type AccountRemote interface {
	Me(ctx context.Context) (UserRecord, error)
	UpdateProfile(ctx context.Context, patch ProfilePatch) (UserRecord, error)
}
