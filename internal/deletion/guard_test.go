package deletion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commutewise/console/internal/deletion"
	"github.com/commutewise/console/internal/domain"
)

type mockDeleter struct {
	deleteFn func(ctx context.Context, t deletion.Target) error
	calls    []deletion.Target
}

func (m *mockDeleter) Delete(ctx context.Context, t deletion.Target) error {
	m.calls = append(m.calls, t)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, t)
	}
	return nil
}

var _ deletion.Deleter = (*mockDeleter)(nil)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func stopTarget() deletion.Target {
	return deletion.Target{Kind: domain.KindStop, ID: uuid.New(), Label: "Plaza"}
}

func TestRequest_DefaultMessage(t *testing.T) {
	g := deletion.New(5, newClock(), &mockDeleter{}, nil)

	p, err := g.Request(stopTarget(), "")

	require.NoError(t, err)
	assert.Equal(t, "Are you sure you want to permanently delete 'Plaza'?", p.Message)
	assert.Equal(t, 5, p.Remaining)
	assert.False(t, p.CanConfirm)
}

func TestRequest_OnlyOnePending(t *testing.T) {
	g := deletion.New(5, newClock(), &mockDeleter{}, nil)
	first := stopTarget()
	_, err := g.Request(first, "")
	require.NoError(t, err)

	p, err := g.Request(stopTarget(), "")

	assert.ErrorIs(t, err, deletion.ErrDeletionPending)
	assert.Equal(t, first, p.Target)
}

func TestConfirm_WaitsForCountdown(t *testing.T) {
	del := &mockDeleter{}
	clock := newClock()
	g := deletion.New(5, clock, del, nil)
	target := stopTarget()
	_, err := g.Request(target, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := g.Confirm(context.Background())
		assert.ErrorIs(t, err, deletion.ErrCountdownActive, "step %d", i)
		clock.Advance(deletion.Step)
	}
	p, ok := g.Pending()
	require.True(t, ok)
	assert.True(t, p.CanConfirm)
	assert.Zero(t, p.Remaining)

	got, err := g.Confirm(context.Background())

	require.NoError(t, err)
	assert.Equal(t, target, got)
	assert.Equal(t, []deletion.Target{target}, del.calls)

	_, err = g.Confirm(context.Background())
	assert.ErrorIs(t, err, deletion.ErrNothingPending)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, del.calls, 1, "exactly one delete")
}

func TestCountdown_StopsAtZero(t *testing.T) {
	clock := newClock()
	g := deletion.New(2, clock, &mockDeleter{}, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)

	clock.Advance(10 * deletion.Step)

	p, _ := g.Pending()
	assert.Zero(t, p.Remaining)
	assert.True(t, p.CanConfirm)
}

func TestCountdown_StepsAlignWithRequest(t *testing.T) {
	clock := newClock()
	clock.Advance(900 * time.Millisecond)
	g := deletion.New(5, clock, &mockDeleter{}, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)

	clock.Advance(200 * time.Millisecond)
	p, _ := g.Pending()
	assert.Equal(t, 5, p.Remaining, "no step completes within the first second")

	clock.Advance(800 * time.Millisecond)
	p, _ = g.Pending()
	assert.Equal(t, 4, p.Remaining)

	clock.Advance(4*deletion.Step - time.Millisecond)
	_, err = g.Confirm(context.Background())
	assert.ErrorIs(t, err, deletion.ErrCountdownActive, "confirm stays locked until the full countdown has passed")

	clock.Advance(time.Millisecond)
	_, err = g.Confirm(context.Background())
	assert.NoError(t, err)
}

func TestCountdown_RestartsForNextRequest(t *testing.T) {
	clock := newClock()
	g := deletion.New(3, clock, &mockDeleter{}, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)
	clock.Advance(2 * deletion.Step)
	require.True(t, g.Cancel())

	p, err := g.Request(stopTarget(), "")

	require.NoError(t, err)
	assert.Equal(t, 3, p.Remaining)
	assert.False(t, p.CanConfirm)
}

func TestCancel_NoSideEffects(t *testing.T) {
	del := &mockDeleter{}
	g := deletion.New(5, newClock(), del, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)

	assert.True(t, g.Cancel())
	assert.False(t, g.Cancel())

	_, ok := g.Pending()
	assert.False(t, ok)
	assert.Empty(t, del.calls)

	_, err = g.Request(stopTarget(), "")
	assert.NoError(t, err, "a new deletion may be requested after cancel")
}

func TestConfirm_DeleteFailureClosesPrompt(t *testing.T) {
	del := &mockDeleter{deleteFn: func(context.Context, deletion.Target) error {
		return errors.New("foreign key violation")
	}}
	clock := newClock()
	g := deletion.New(1, clock, del, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)
	clock.Advance(deletion.Step)

	_, err = g.Confirm(context.Background())

	require.Error(t, err)
	_, ok := g.Pending()
	assert.False(t, ok)
}

func TestLockSession_CancelsPending(t *testing.T) {
	del := &mockDeleter{}
	clock := newClock()
	g := deletion.New(1, clock, del, nil)
	_, err := g.Request(stopTarget(), "")
	require.NoError(t, err)
	clock.Advance(deletion.Step)

	g.LockSession(context.Background())

	_, err = g.Confirm(context.Background())
	assert.ErrorIs(t, err, deletion.ErrNothingPending)
	assert.Empty(t, del.calls)
}
