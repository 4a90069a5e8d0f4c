package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/localstore"
	"github.com/fjod/go_market/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeWatcher) {
	local, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	w := &fakeWatcher{}
	m := NewManager(EngineDeps{
		Local:   local,
		Remote:  newFakeRemote(),
		Watcher: w,
		Policy:  MergeUnion,
		Log:     logger.NewNop(),
	}, opts...)
	t.Cleanup(m.Close)
	return m, w
}

func TestManager_ResumeReturnsSameSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Resume(ctx, "", "device-1", domain.Anonymous())
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, ModeAnonymous, first.Mode())

	again, err := m.Resume(ctx, first.ID, "device-1", domain.Anonymous())
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestManager_LoginThroughResume(t *testing.T) {
	m, w := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Resume(ctx, "s1", "device-1", domain.Anonymous())
	require.NoError(t, err)
	sess.Store().AddToCart(ctx, cartLine("p1", 10))

	buyer := domain.Identity{UserID: "u1", Role: domain.RoleBuyer}
	_, err = m.Resume(ctx, "s1", "device-1", buyer)
	require.NoError(t, err)

	assert.Equal(t, ModeAuthenticated, sess.Mode())
	assert.Equal(t, "u1", sess.Identity().UserID)
	assert.True(t, sess.Store().IsInCart("p1"))
	assert.Equal(t, []string{"watch:u1"}, w.log())
}

func TestManager_EndCancelsSubscription(t *testing.T) {
	m, w := newTestManager(t)
	ctx := context.Background()

	_, err := m.Resume(ctx, "s1", "device-1", domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	m.End("s1")
	_, ok := m.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, []string{"watch:u1", "cancel:u1#1"}, w.log())
}

type fakeClock struct {
	m   sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	var evicted []string
	m, w := newTestManager(t,
		WithIdleTTL(time.Minute),
		WithClock(clock.Now),
		WithEvictHook(func(id string) { evicted = append(evicted, id) }),
	)
	ctx := context.Background()

	_, err := m.Resume(ctx, "s1", "device-1", domain.Identity{UserID: "u1"})
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	_, err = m.Resume(ctx, "s2", "device-2", domain.Anonymous())
	require.NoError(t, err)

	clock.Advance(40 * time.Second)
	ids := m.Sweep(clock.Now())

	assert.Equal(t, []string{"s1"}, ids)
	assert.Equal(t, []string{"s1"}, evicted)
	assert.Equal(t, []string{"watch:u1", "cancel:u1#1"}, w.log())

	_, ok := m.Get("s1")
	assert.False(t, ok)
	_, ok = m.Get("s2")
	assert.True(t, ok)
}

func TestManager_GetKeepsSessionAlive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m, _ := newTestManager(t, WithIdleTTL(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	_, err := m.Resume(ctx, "s1", "device-1", domain.Anonymous())
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	_, ok := m.Get("s1")
	require.True(t, ok)

	clock.Advance(45 * time.Second)
	assert.Empty(t, m.Sweep(clock.Now()))

	clock.Advance(time.Minute)
	assert.Equal(t, []string{"s1"}, m.Sweep(clock.Now()))
}

func TestManager_RunSweeperStopsWithContext(t *testing.T) {
	m, w := newTestManager(t, WithIdleTTL(time.Nanosecond))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Resume(ctx, "s1", "device-1", domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := m.Get("s1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, w.log(), "cancel:u1#1")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSetReferrerOnce(t *testing.T) {
	sess := &Session{}

	assert.False(t, sess.SetReferrerOnce(""))
	assert.Nil(t, sess.ReferrerID())

	assert.True(t, sess.SetReferrerOnce("r1"))
	assert.False(t, sess.SetReferrerOnce("r2"))
	require.NotNil(t, sess.ReferrerID())
	assert.Equal(t, "r1", *sess.ReferrerID())
}
