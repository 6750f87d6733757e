package verification

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"collegestar/notes-portal/notes-portal-backend/pkg/workflows"
)

// MockIdentityStore is a mock implementation of the IdentityStore interface
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) CurrentUser(ctx context.Context) (*User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *MockIdentityStore) FetchProfile(ctx context.Context, id string) (*Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*Profile)
	return p, args.Error(1)
}

func (m *MockIdentityStore) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*Profile, error) {
	args := m.Called(ctx, id, patch)
	p, _ := args.Get(0).(*Profile)
	return p, args.Error(1)
}

var epoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestPoller(store IdentityStore, flags FlagStore, opts ...Option) (*Poller, *ManualScheduler) {
	sched := NewManualScheduler(epoch)
	cfg := Config{Interval: 2000 * time.Millisecond, Timeout: 20000 * time.Millisecond}
	return NewPoller(store, flags, sched, cfg, opts...), sched
}

func signedIn(store *MockIdentityStore) {
	store.On("CurrentUser", mock.Anything).Return(&User{ID: "u1", Email: "asha@example.com"}, nil)
}

func TestStartWithoutIdentity(t *testing.T) {
	store := new(MockIdentityStore)
	store.On("CurrentUser", mock.Anything).Return(nil, ErrNotAuthenticated)

	p, sched := newTestPoller(store, NewMemoryFlags())

	assert.Equal(t, StatusError, p.Start(context.Background()))
	snap := p.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "not authenticated", snap.ErrorMessage)
	assert.Equal(t, 0, sched.Active())

	sched.Advance(time.Minute)
	assert.Equal(t, StatusError, p.Status())
	store.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}

func TestStartSurfacesIdentityFailure(t *testing.T) {
	store := new(MockIdentityStore)
	store.On("CurrentUser", mock.Anything).Return(nil, errors.New("credential store unreadable"))

	p, sched := newTestPoller(store, nil)

	assert.Equal(t, StatusError, p.Start(context.Background()))
	assert.Equal(t, "credential store unreadable", p.Snapshot().ErrorMessage)
	assert.Equal(t, 0, sched.Active())
}

func TestStartWithLocalFlag(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	flags := NewMemoryFlags()
	require.NoError(t, flags.Set(DonorFlagKey("u1"), "true"))

	p, sched := newTestPoller(store, flags)

	assert.Equal(t, StatusVerified, p.Start(context.Background()))
	assert.Equal(t, StatusVerified, p.Status())
	assert.Equal(t, 0, sched.Active())
	store.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}

func TestLocalFlagOfAnotherUserIsIgnored(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)
	flags := NewMemoryFlags()
	require.NoError(t, flags.Set(DonorFlagKey("u2"), "true"))
	require.NoError(t, flags.Set(DonorVerifiedKey, "true"))

	p, sched := newTestPoller(store, flags)

	assert.Equal(t, StatusPending, p.Start(context.Background()))
	sched.Advance(20 * time.Second)
	assert.Equal(t, StatusTimeout, p.Status())
	store.AssertNumberOfCalls(t, "FetchProfile", 10)
}

func TestRejectedTransitionIsLoggedWithAllowedTargets(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	core, logs := observer.New(zap.ErrorLevel)
	p, sched := newTestPoller(store, NewMemoryFlags(), WithLogger(zap.New(core)))
	p.machine = workflows.NewStateMachine(map[string][]string{
		string(StatusIdle):    {string(StatusPending)},
		string(StatusPending): {string(StatusVerified)},
	})

	require.Equal(t, StatusPending, p.Start(context.Background()))
	sched.Advance(20 * time.Second)

	assert.Equal(t, StatusPending, p.Status())
	entries := logs.FilterMessage("Rejected verification transition").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{string(StatusVerified)}, entries[0].ContextMap()["allowed"])
}

func TestPollTimesOut(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())

	assert.Equal(t, StatusPending, p.Start(context.Background()))
	assert.Equal(t, 2, sched.Active())

	sched.Advance(19999 * time.Millisecond)
	assert.Equal(t, StatusPending, p.Status())

	sched.Advance(time.Millisecond)
	assert.Equal(t, StatusTimeout, p.Status())
	assert.Equal(t, 0, sched.Active())
	store.AssertNumberOfCalls(t, "FetchProfile", 10)

	sched.Advance(20000*time.Millisecond + 2000*time.Millisecond)
	assert.Equal(t, StatusTimeout, p.Status())
	store.AssertNumberOfCalls(t, "FetchProfile", 10)
}

func TestPollVerifiesAtSixSeconds(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil).Times(2)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1", DonorVerified: true}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())

	sched.Advance(5999 * time.Millisecond)
	assert.Equal(t, StatusPending, p.Status())

	sched.Advance(time.Millisecond)
	assert.Equal(t, StatusVerified, p.Status())
	assert.Equal(t, 0, sched.Active())

	sched.Advance(14000 * time.Millisecond)
	assert.Equal(t, StatusVerified, p.Status())
	store.AssertNumberOfCalls(t, "FetchProfile", 3)
}

func TestPollPicksUpLocalFlag(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)
	flags := NewMemoryFlags()

	p, sched := newTestPoller(store, flags)
	p.Start(context.Background())

	sched.Advance(2 * time.Second)
	require.NoError(t, flags.Set(DonorFlagKey("u1"), "true"))
	sched.Advance(2 * time.Second)

	assert.Equal(t, StatusVerified, p.Status())
	store.AssertNumberOfCalls(t, "FetchProfile", 1)
}

func TestPollErrorsAreSwallowed(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(nil, errors.New("connection reset")).Times(3)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1", DonorVerified: true}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())

	sched.Advance(6 * time.Second)
	assert.Equal(t, StatusPending, p.Status())
	assert.Empty(t, p.Snapshot().ErrorMessage)

	sched.Advance(2 * time.Second)
	assert.Equal(t, StatusVerified, p.Status())
}

func TestStopIsIdempotent(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())
	sched.Advance(3 * time.Second)

	p.Stop()
	before := p.Snapshot()
	assert.Equal(t, StatusPending, before.Status)
	assert.Equal(t, 0, sched.Active())

	assert.NotPanics(t, p.Stop)
	assert.Equal(t, before, p.Snapshot())

	sched.Advance(time.Minute)
	assert.Equal(t, StatusPending, p.Status())
	store.AssertNumberOfCalls(t, "FetchProfile", 1)
}

func TestStopWithoutStart(t *testing.T) {
	p, sched := newTestPoller(new(MockIdentityStore), nil)

	assert.NotPanics(t, p.Stop)
	assert.Equal(t, StatusIdle, p.Status())
	assert.Equal(t, 0, sched.Active())
}

func TestInFlightResultIgnoredAfterStop(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)

	var p *Poller
	store.On("FetchProfile", mock.Anything, "u1").
		Run(func(mock.Arguments) { p.Stop() }).
		Return(&Profile{ID: "u1", DonorVerified: true}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())

	sched.Advance(2 * time.Second)
	assert.Equal(t, StatusPending, p.Status())
	assert.Equal(t, 0, sched.Active())
}

func TestRestartResetsSession(t *testing.T) {
	store := new(MockIdentityStore)
	store.On("CurrentUser", mock.Anything).Return(nil, ErrNotAuthenticated).Once()
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())

	p.Start(context.Background())
	assert.Equal(t, StatusError, p.Status())

	sched.Advance(time.Second)
	assert.Equal(t, StatusPending, p.Start(context.Background()))
	snap := p.Snapshot()
	assert.Empty(t, snap.ErrorMessage)
	assert.Equal(t, epoch.Add(time.Second), snap.StartedAt)

	// a second Start replaces the running timers instead of adding to them
	sched.Advance(time.Second)
	p.Start(context.Background())
	assert.Equal(t, 2, sched.Active())

	sched.Advance(19500 * time.Millisecond)
	assert.Equal(t, StatusPending, p.Status())
	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StatusTimeout, p.Status())
	assert.Equal(t, 0, sched.Active())
}

func TestRestartAfterTimeout(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil).Times(10)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1", DonorVerified: true}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())
	sched.Advance(20 * time.Second)
	require.Equal(t, StatusTimeout, p.Status())

	assert.Equal(t, StatusPending, p.Start(context.Background()))
	sched.Advance(2 * time.Second)
	assert.Equal(t, StatusVerified, p.Status())
}

func TestListenerSeesTransitions(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1", DonorVerified: true}, nil)

	var seen []Status
	p, sched := newTestPoller(store, NewMemoryFlags(), WithListener(func(s Session) {
		seen = append(seen, s.Status)
	}))

	p.Start(context.Background())
	sched.Advance(2 * time.Second)

	assert.Equal(t, []Status{StatusPending, StatusVerified}, seen)
}

func TestWaitReturnsOnTerminalStatus(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	p, sched := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())
	sched.Advance(20 * time.Second)

	status, err := p.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatusTimeout, status)
}

func TestWaitRespectsContext(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)

	p, _ := newTestPoller(store, NewMemoryFlags())
	p.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusPending, status)
}

func TestPollerOnRealScheduler(t *testing.T) {
	store := new(MockIdentityStore)
	signedIn(store)
	store.On("FetchProfile", mock.Anything, "u1").Return(&Profile{ID: "u1"}, nil)

	cfg := Config{Interval: 5 * time.Millisecond, Timeout: 40 * time.Millisecond}
	p := NewPoller(store, NewMemoryFlags(), NewScheduler(), cfg)
	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, status)
}

func TestBoltFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.db")
	flags, err := OpenBoltFlags(path)
	require.NoError(t, err)

	ok, err := flags.Has(DonorFlagKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, flags.Set(DonorFlagKey("u1"), "true"))
	require.NoError(t, flags.Close())

	flags, err = OpenBoltFlags(path)
	require.NoError(t, err)
	defer flags.Close()

	v, err := flags.Get(DonorFlagKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, "true", v)
	ok, _ = flags.Has(DonorFlagKey("u1"))
	assert.True(t, ok)
}
