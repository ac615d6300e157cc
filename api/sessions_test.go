package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/reconcile"
	"github.com/ceplan/itpei/units"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSessions_ExpireAfterTTL(t *testing.T) {
	// GIVEN: A registry with a one-hour TTL and two sessions
	clock := &fakeClock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	s := NewSessions(time.Hour)
	s.now = clock.now

	stale := s.Create(reconcile.NewState("23"))
	clock.advance(40 * time.Minute)
	fresh := s.Create(reconcile.NewState("1001"))

	// WHEN: Time passes beyond the first session's TTL
	clock.advance(30 * time.Minute)

	// THEN: Only the untouched one is gone
	assert.ErrorIs(t, s.With(stale, func(*reconcile.FormState) error { return nil }), ErrSessionNotFound)
	require.NoError(t, s.With(fresh, func(st *reconcile.FormState) error {
		assert.Equal(t, "1001", st.UnitCode)
		return nil
	}))

	clock.advance(2 * time.Hour)
	assert.Equal(t, 1, s.Prune())
	assert.Zero(t, s.Len())
}

func TestSessions_WithMutatesAndPropagatesErrors(t *testing.T) {
	s := NewSessions(0)
	id := s.Create(reconcile.NewState("23"))

	boom := errors.New("boom")
	err := s.With(id, func(st *reconcile.FormState) error {
		st.Mode = reconcile.ModeBrowsing
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.With(id, func(st *reconcile.FormState) error {
		assert.Equal(t, reconcile.ModeBrowsing, st.Mode)
		return nil
	}))
}

func TestSessions_SerializesRequestsPerSession(t *testing.T) {
	s := NewSessions(0)
	id := s.Create(reconcile.NewState("23"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.With(id, func(st *reconcile.FormState) error {
				st.Form.RevisionCount++
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.With(id, func(st *reconcile.FormState) error {
		assert.Equal(t, 50, st.Form.RevisionCount)
		return nil
	}))
}

func TestThrottle_ReportsWait(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	th := newThrottle(2, 1)
	th.now = clock.now

	ok, _ := th.allow("10.0.0.1")
	assert.True(t, ok)

	ok, wait := th.allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ok, _ = th.allow("10.0.0.2")
	assert.True(t, ok, "buckets are per client")

	clock.advance(500 * time.Millisecond)
	ok, _ = th.allow("10.0.0.1")
	assert.True(t, ok)

	assert.Nil(t, newThrottle(0, 5))
}

func TestMaintenanceScheduler_RunOnce(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx := context.Background()

	// GIVEN: A unit written behind the catalog's back and an expired session
	require.NoError(t, s.mem.SaveUnit(ctx, units.Unit{Code: "5", Name: "Municipalidad de Lima", Level: units.LevelProvincial}))

	clock := &fakeClock{t: time.Now()}
	s.h.Sessions.now = clock.now
	s.h.Sessions.Create(reconcile.NewState("23"))
	clock.advance(DefaultSessionTTL + time.Minute)

	// WHEN: One maintenance pass runs
	NewMaintenanceScheduler(s.h).RunOnce(ctx)

	// THEN: The catalog sees the unit and the session is gone
	_, ok := s.h.Units.Lookup("5")
	assert.True(t, ok)
	assert.Zero(t, s.h.Sessions.Len())
}

func TestMaintenanceScheduler_StartStop(t *testing.T) {
	s := newTestServer(t, Options{})
	ms := NewMaintenanceScheduler(s.h)
	ms.Interval = time.Hour

	ms.Start()
	ms.Start()
	ms.Stop()
	ms.Stop()

	ms.Enabled = false
	ms.Start()
	assert.Nil(t, ms.ticker)
}
