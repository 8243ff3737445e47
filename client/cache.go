package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tideland.dev/go/slices"
)

// Status is the request status of a DirectoryCache
type Status int

// Cache statuses
const (
	StatusIdle Status = iota
	StatusLoading
	// StatusError is part of the status set for completeness; failures are
	// reported through State.Err and the cache returns to StatusIdle
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Operation names a cache operation
type Operation string

// Cache operations
const (
	OpLoad   Operation = "load"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
)

// Notification is emitted exactly once for every settled operation
type Notification struct {
	Op      Operation
	Success bool
	Message string
	// Kind is KindNone on success
	Kind Kind
	// ID is the record the operation targeted, empty for loads
	ID string
	// Added and Removed hold the ids a load brought in or dropped
	Added   []string
	Removed []string
	// Discarded is set when a load finished after the collection had
	// already changed and its snapshot was not applied
	Discarded bool
}

// State is a copy of the cache contents
type State struct {
	Records []UserRecord
	Status  Status
	// Err is the error of the most recent failed operation. A later
	// success does not reset it.
	Err error
}

// DirectoryCache holds the directory as known to the client. It only ever
// changes in reaction to the result of its own remote operations, which
// may be issued concurrently; results are reconciled by record id.
type DirectoryCache struct {
	remote Remote
	logger log.FieldLogger

	mu           sync.Mutex
	records      []UserRecord
	status       Status
	lastErr      error
	generation   uint64
	pendingLoads int
	closed       bool
	subscribers  map[int]func(Notification)
	nextSub      int
}

// CacheOption configures a DirectoryCache
type CacheOption func(*DirectoryCache)

// WithLogger sets the logger of the cache
func WithLogger(logger log.FieldLogger) CacheOption {
	return func(c *DirectoryCache) {
		c.logger = logger
	}
}

// NewDirectoryCache creates an empty, idle DirectoryCache
func NewDirectoryCache(remote Remote, opts ...CacheOption) *DirectoryCache {
	c := &DirectoryCache{
		remote:      remote,
		logger:      log.StandardLogger(),
		records:     []UserRecord{},
		subscribers: make(map[int]func(Notification)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for all future notifications and returns a
// function that removes it again. fn is called outside the cache's lock, so
// it may read the cache.
func (c *DirectoryCache) Subscribe(fn func(Notification)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Close drops all subscribers; further operations fail with ErrCacheClosed.
// Operations already in flight still settle.
func (c *DirectoryCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subscribers = make(map[int]func(Notification))
}

// Snapshot returns a copy of the current state
func (c *DirectoryCache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Records: cloneRecords(c.records),
		Status:  c.status,
		Err:     c.lastErr,
	}
}

// Records returns a copy of the cached records
func (c *DirectoryCache) Records() []UserRecord {
	return c.Snapshot().Records
}

// settle finishes an operation: it runs reconcile under the lock and then
// delivers the resulting notification to the subscribers outside of it
func (c *DirectoryCache) settle(reconcile func() Notification) {
	c.mu.Lock()
	n := reconcile()
	subs := make([]func(Notification), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

func (c *DirectoryCache) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	return nil
}

func (c *DirectoryCache) indexOf(id string) int {
	for i, r := range c.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func failed(op Operation, id string, err error) Notification {
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	return Notification{
		Op:      op,
		ID:      id,
		Success: false,
		Message: msg,
		Kind:    KindOf(err),
	}
}

// Load replaces the collection with the server's. While loads are in flight
// the status is StatusLoading; it returns to StatusIdle whether or not the
// load succeeds. A snapshot is discarded if the collection changed after the
// load was issued. Load returns the records as held by the cache once the
// load settled, so a discarded snapshot is never returned.
func (c *DirectoryCache) Load(ctx context.Context) ([]UserRecord, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	issuedAt := c.generation
	c.pendingLoads++
	c.status = StatusLoading
	c.mu.Unlock()

	records, err := c.remote.List(ctx)
	if err == nil {
		for i := range records {
			if err = checkRecord("list", &records[i]); err != nil {
				records = nil
				break
			}
		}
	}

	c.settle(
		func() Notification {
			c.pendingLoads--
			if c.pendingLoads == 0 {
				c.status = StatusIdle
			}
			if err != nil {
				c.lastErr = err
				return failed(OpLoad, "", err)
			}
			if c.generation != issuedAt {
				c.logger.WithField("records", len(records)).Debug("discarding stale directory snapshot")
				records = cloneRecords(c.records)
				return Notification{
					Op:        OpLoad,
					Success:   true,
					Message:   "Directory changed while loading; snapshot discarded",
					Discarded: true,
				}
			}
			oldIDs, newIDs := recordIDs(c.records), recordIDs(records)
			c.records = cloneRecords(records)
			c.generation++
			return Notification{
				Op:      OpLoad,
				Success: true,
				Message: "Fetched all users",
				Added:   slices.Subtract(newIDs, oldIDs),
				Removed: slices.Subtract(oldIDs, newIDs),
			}
		},
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create asks the server to create a user and appends the returned record.
// The draft is not validated locally.
func (c *DirectoryCache) Create(ctx context.Context, draft UserInput) (UserRecord, error) {
	if err := c.begin(); err != nil {
		return UserRecord{}, err
	}
	rec, err := c.remote.Create(ctx, draft)
	if err == nil {
		err = checkRecord("create", &rec)
	}
	c.settle(
		func() Notification {
			if err != nil {
				c.lastErr = err
				return failed(OpCreate, "", err)
			}
			if i := c.indexOf(rec.ID); i >= 0 {
				// already brought in by a concurrent load
				c.records[i] = rec
			} else {
				c.records = append(c.records, rec)
			}
			c.generation++
			return Notification{
				Op:      OpCreate,
				ID:      rec.ID,
				Success: true,
				Message: "New user created successfully!",
			}
		},
	)
	if err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}

// Update asks the server to change a user and replaces the cached record
// with the server's. If id is not cached the result is dropped without error.
func (c *DirectoryCache) Update(ctx context.Context, id string, patch UserPatch) (UserRecord, error) {
	if err := c.begin(); err != nil {
		return UserRecord{}, err
	}
	rec, err := c.remote.Update(ctx, id, patch)
	if err == nil {
		err = checkRecord("update", &rec)
	}
	c.settle(
		func() Notification {
			if err != nil {
				c.lastErr = err
				return failed(OpUpdate, id, err)
			}
			i := c.indexOf(id)
			if i < 0 {
				c.logger.WithField("id", id).Debug("updated user is not cached; dropping result")
				return Notification{
					Op:      OpUpdate,
					ID:      id,
					Success: true,
					Message: "User updated successfully!",
				}
			}
			c.records[i] = rec
			c.generation++
			return Notification{
				Op:      OpUpdate,
				ID:      id,
				Success: true,
				Message: "User updated successfully!",
			}
		},
	)
	if err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}

// Remove asks the server to delete a user and drops it from the cache.
// Removing an id that does not exist, locally or on the server, succeeds
// without changing anything.
func (c *DirectoryCache) Remove(ctx context.Context, id string) error {
	if err := c.begin(); err != nil {
		return err
	}
	err := c.remote.Delete(ctx, id)
	if KindOf(err) == NotFound {
		err = nil
	}
	c.settle(
		func() Notification {
			if err != nil {
				c.lastErr = err
				return failed(OpRemove, id, err)
			}
			if i := c.indexOf(id); i >= 0 {
				c.records = append(c.records[:i:i], c.records[i+1:]...)
				c.generation++
			}
			return Notification{
				Op:      OpRemove,
				ID:      id,
				Success: true,
				Message: "User deleted successfully!",
			}
		},
	)
	return err
}

func recordIDs(records []UserRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func cloneRecords(records []UserRecord) []UserRecord {
	out := make([]UserRecord, len(records))
	copy(out, records)
	return out
}
