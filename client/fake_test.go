package client

import (
	"context"
	"strconv"
	"sync"
)

// hold parks the next call of an operation until released
type hold struct {
	entered chan struct{}
	release chan struct{}
}

// fakeRemote is an in-memory Remote
type fakeRemote struct {
	mu      sync.Mutex
	records []UserRecord
	nextID  int
	calls   map[string]int
	fail    map[string]error
	holds   map[string]*hold
	// badID makes the next successful response carry a record without id
	badID bool
}

func newFakeRemote(records ...UserRecord) *fakeRemote {
	f := &fakeRemote{
		records: records,
		nextID:  len(records) + 1,
		calls:   make(map[string]int),
		fail:    make(map[string]error),
		holds:   make(map[string]*hold),
	}
	return f
}

func (f *fakeRemote) holdNext(op string) *hold {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &hold{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.holds[op] = h
	return h
}

func (f *fakeRemote) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter records the call, parks on a hold and returns a forced error
func (f *fakeRemote) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	h := f.holds[op]
	delete(f.holds, op)
	err := f.fail[op]
	delete(f.fail, op)
	f.mu.Unlock()
	if h != nil {
		close(h.entered)
		select {
		case <-h.release:
		case <-ctx.Done():
			return &Error{Kind: TransportFailure, Op: op, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
	}
	return err
}

func (f *fakeRemote) indexOf(id string) int {
	for i, r := range f.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeRemote) strip(r UserRecord) UserRecord {
	if f.badID {
		f.badID = false
		r.ID = ""
	}
	return r
}

func (f *fakeRemote) List(ctx context.Context) ([]UserRecord, error) {
	if err := f.enter(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UserRecord, len(f.records))
	copy(out, f.records)
	if len(out) > 0 {
		out[0] = f.strip(out[0])
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, draft UserInput) (UserRecord, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return UserRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := UserRecord{
		ID:        strconv.Itoa(f.nextID),
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Email:     draft.Email,
		Role:      draft.Role,
	}
	f.nextID++
	f.records = append(f.records, r)
	return f.strip(r), nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, patch UserPatch) (UserRecord, error) {
	if err := f.enter(ctx, "update"); err != nil {
		return UserRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return UserRecord{}, &Error{Kind: NotFound, Status: 404, Op: "update", Message: "user not found"}
	}
	r := f.records[i]
	r.FirstName = patch.FirstName
	r.LastName = patch.LastName
	r.Email = patch.Email
	r.Role = patch.Role
	f.records[i] = r
	return f.strip(r), nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return &Error{Kind: NotFound, Status: 404, Op: "delete", Message: "user not found"}
	}
	f.records = append(f.records[:i], f.records[i+1:]...)
	return nil
}

// recorder collects notifications
type recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *recorder) record(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func (r *recorder) last() Notification {
	all := r.all()
	if len(all) == 0 {
		return Notification{}
	}
	return all[len(all)-1]
}
