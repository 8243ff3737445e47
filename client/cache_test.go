package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jane = UserRecord{
		ID:        "1",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@x.com",
		Role:      RoleUser,
	}
	bobDraft = UserInput{
		FirstName: "Bob",
		LastName:  "Builder",
		Email:     "bob@x.com",
		Password:  "password1",
		Role:      RoleUser,
	}
)

func newTestCache(t *testing.T, remote Remote) (*DirectoryCache, *recorder) {
	t.Helper()
	c := NewDirectoryCache(remote)
	rec := &recorder{}
	c.Subscribe(rec.record)
	t.Cleanup(c.Close)
	return c, rec
}

func ids(records []UserRecord) []string {
	return recordIDs(records)
}

func TestNewCacheIsEmptyAndIdle(t *testing.T) {
	c := NewDirectoryCache(newFakeRemote())
	state := c.Snapshot()
	assert.Empty(t, state.Records)
	assert.Equal(t, StatusIdle, state.Status)
	assert.NoError(t, state.Err)
}

func TestScenarioLoadCreateRemove(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []UserRecord{jane}, loaded)
	assert.Equal(t, []UserRecord{jane}, c.Records())
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
	assert.Equal(t, []string{"1"}, rec.last().Added)

	bob, err := c.Create(ctx, bobDraft)
	require.NoError(t, err)
	assert.Equal(t, "2", bob.ID)
	assert.Equal(t, []string{"1", "2"}, ids(c.Records()))

	require.NoError(t, c.Remove(ctx, "999"))
	assert.Equal(t, []string{"1", "2"}, ids(c.Records()))
	n := rec.last()
	assert.Equal(t, OpRemove, n.Op)
	assert.True(t, n.Success)

	assert.Len(t, rec.all(), 3)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, newFakeRemote(jane, UserRecord{ID: "2", FirstName: "Bob"}))
	_, err := c.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, "1"))
	once := c.Records()
	require.NoError(t, c.Remove(ctx, "1"))
	assert.Equal(t, once, c.Records())
	assert.Equal(t, []string{"2"}, ids(once))
	assert.NoError(t, c.Snapshot().Err)
}

func TestRemoveFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	remote.failNext("delete", &Error{Kind: AuthorizationFailure, Status: 403, Message: "insufficient permissions"})
	err = c.Remove(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorization))
	assert.Equal(t, []string{"1"}, ids(c.Records()))
	n := rec.last()
	assert.False(t, n.Success)
	assert.Equal(t, AuthorizationFailure, n.Kind)
	assert.Equal(t, "insufficient permissions", n.Message)
}

func TestCreateAppendsExactlyOne(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	_, err = c.Create(ctx, bobDraft)
	require.NoError(t, err)
	assert.Len(t, c.Records(), 2)

	remote.failNext("create", &Error{Kind: Conflict, Status: 409, Message: "a user with this email already exists"})
	_, err = c.Create(ctx, bobDraft)
	require.Error(t, err)
	assert.Equal(t, Conflict, KindOf(err))
	assert.Len(t, c.Records(), 2)
	state := c.Snapshot()
	assert.Equal(t, StatusIdle, state.Status)
	assert.Equal(t, Conflict, KindOf(state.Err))
	assert.False(t, rec.last().Success)
}

func TestCreateRejectsRecordWithoutID(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c, _ := newTestCache(t, remote)

	remote.badID = true
	_, err := c.Create(ctx, bobDraft)
	require.Error(t, err)
	assert.Equal(t, ValidationFailure, KindOf(err))
	assert.Empty(t, c.Records())
}

func TestUpdatePreservesSize(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane, UserRecord{ID: "2", FirstName: "Bob", Email: "bob@x.com", Role: RoleUser})
	c, rec := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	patch := PatchOf(jane)
	patch.FirstName = "Janet"
	patch.Role = RoleAdmin
	updated, err := c.Update(ctx, "1", patch)
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, updated, records[0])
	assert.Equal(t, "Bob", records[1].FirstName)
	assert.True(t, rec.last().Success)

	_, err = c.Update(ctx, "999", patch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Len(t, c.Records(), 2)
}

// Updating a record the cache does not hold succeeds on the server, but the
// result is dropped: the cache stays as it was and no error is reported.
func TestUpdateOfUncachedRecordIsSilentlyDropped(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)

	updated, err := c.Update(ctx, "1", UserPatch{FirstName: "Janet", LastName: "Doe", Email: "jane@x.com", Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Empty(t, c.Records())
	assert.NoError(t, c.Snapshot().Err)
	assert.True(t, rec.last().Success)
}

func TestLoadFailureLeavesRecordsAndReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	remote.failNext("list", &Error{Kind: AuthenticationFailure, Status: 401, Message: "missing credentials"})
	_, err = c.Load(ctx)
	require.Error(t, err)
	state := c.Snapshot()
	assert.Equal(t, StatusIdle, state.Status)
	assert.Equal(t, []UserRecord{jane}, state.Records)
	assert.True(t, errors.Is(state.Err, ErrAuthentication))
	assert.Equal(t, AuthenticationFailure, rec.last().Kind)

	// a later success does not reset the error
	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Error(t, c.Snapshot().Err)
}

func TestLoadRejectsRecordWithoutID(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, _ := newTestCache(t, remote)

	remote.badID = true
	_, err := c.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, ValidationFailure, KindOf(err))
	assert.Empty(t, c.Records())
}

func TestLoadingStatusWhileInFlight(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, _ := newTestCache(t, remote)

	h := remote.holdNext("list")
	done := make(chan error)
	go func() {
		_, err := c.Load(ctx)
		done <- err
	}()
	<-h.entered
	assert.Equal(t, StatusLoading, c.Snapshot().Status)
	close(h.release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c, rec := newTestCache(t, remote)

	h := remote.holdNext("list")
	done := make(chan error)
	var loaded []UserRecord
	go func() {
		var err error
		loaded, err = c.Load(ctx)
		done <- err
	}()
	<-h.entered

	// the create settles while the load is still in flight
	bob, err := c.Create(ctx, bobDraft)
	require.NoError(t, err)
	remote.mu.Lock()
	// the snapshot the load will deliver no longer contains bob
	remote.records = []UserRecord{jane}
	remote.mu.Unlock()

	close(h.release)
	require.NoError(t, <-done)
	assert.Equal(t, []UserRecord{bob}, c.Records())
	assert.Equal(t, c.Records(), loaded)
	n := rec.last()
	assert.Equal(t, OpLoad, n.Op)
	assert.True(t, n.Discarded)
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestReconcileByIDNotPosition(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(
		UserRecord{ID: "1", FirstName: "A"},
		UserRecord{ID: "2", FirstName: "B"},
		UserRecord{ID: "3", FirstName: "C"},
	)
	c, _ := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	h := remote.holdNext("update")
	done := make(chan error)
	go func() {
		_, err := c.Update(ctx, "3", UserPatch{FirstName: "Carol", Role: RoleUser})
		done <- err
	}()
	<-h.entered
	require.NoError(t, c.Remove(ctx, "1"))
	close(h.release)
	require.NoError(t, <-done)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].FirstName)
	assert.Equal(t, "3", records[1].ID)
	assert.Equal(t, "Carol", records[1].FirstName)
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	c, rec := newTestCache(t, remote)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draft := bobDraft
			draft.Email = "user" + strconv.Itoa(i) + "@x.com"
			_, err := c.Create(ctx, draft)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records := c.Records()
	require.Len(t, records, n)
	seen := make(map[string]bool)
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, rec.all(), n)

	for _, r := range records[:n/2] {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, c.Remove(ctx, id))
		}(r.ID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Load(ctx)
	}()
	wg.Wait()
	assert.Len(t, c.Records(), n/2)
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestSubscribersRunOutsideLock(t *testing.T) {
	ctx := context.Background()
	c := NewDirectoryCache(newFakeRemote(jane))
	var sizes []int
	c.Subscribe(
		func(Notification) {
			// would deadlock if called with the lock held
			sizes = append(sizes, len(c.Records()))
		},
	)
	_, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, sizes)
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	c := NewDirectoryCache(newFakeRemote(jane))
	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)
	_, err := c.Load(ctx)
	require.NoError(t, err)
	unsubscribe()
	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.all(), 1)
}

func TestClosedCache(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane)
	c := NewDirectoryCache(remote)
	rec := &recorder{}
	c.Subscribe(rec.record)
	c.Close()

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, ErrCacheClosed)
	_, err = c.Create(ctx, bobDraft)
	assert.ErrorIs(t, err, ErrCacheClosed)
	_, err = c.Update(ctx, "1", PatchOf(jane))
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, c.Remove(ctx, "1"), ErrCacheClosed)
	assert.Empty(t, rec.all())
	assert.Zero(t, remote.callCount("list"))
}

func TestLoadReportsAddedAndRemoved(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(jane, UserRecord{ID: "2"})
	c, rec := newTestCache(t, remote)
	_, err := c.Load(ctx)
	require.NoError(t, err)

	remote.mu.Lock()
	remote.records = []UserRecord{{ID: "2"}, {ID: "3"}}
	remote.mu.Unlock()
	_, err = c.Load(ctx)
	require.NoError(t, err)
	n := rec.last()
	assert.Equal(t, []string{"3"}, n.Added)
	assert.Equal(t, []string{"1"}, n.Removed)
}
