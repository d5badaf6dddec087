package notice_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commutewise/console/internal/notice"
)

type recordingPublisher struct {
	mu   sync.Mutex
	seen []*notice.Notice
}

func (p *recordingPublisher) Publish(n *notice.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, n)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestBoard_ShowAutoDismisses(t *testing.T) {
	pub := &recordingPublisher{}
	board := notice.NewBoard(20*time.Millisecond, pub)

	board.Show(notice.KindSuccess, "Route saved successfully!")

	cur := board.Current()
	require.NotNil(t, cur)
	assert.Equal(t, notice.KindSuccess, cur.Kind)
	assert.False(t, cur.Sticky)

	assert.Eventually(t, func() bool { return board.Current() == nil }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBoard_NewerNoticeSurvivesOlderTimer(t *testing.T) {
	board := notice.NewBoard(30*time.Millisecond, nil)

	board.Show(notice.KindInfo, "first")
	board.Warn(10 * time.Second)
	time.Sleep(60 * time.Millisecond)

	cur := board.Current()
	require.NotNil(t, cur, "sticky warning outlives the replaced notice's timer")
	assert.Equal(t, notice.KindWarning, cur.Kind)
}

func TestBoard_WarnMessage(t *testing.T) {
	board := notice.NewBoard(time.Minute, nil)

	board.Warn(9500 * time.Millisecond)

	cur := board.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.Sticky)
	assert.Equal(t, "Session expiring in 10s due to inactivity. Move mouse to cancel.", cur.Message)
}

func TestBoard_ClearWarningKeepsOtherNotices(t *testing.T) {
	board := notice.NewBoard(time.Minute, nil)

	board.Show(notice.KindError, "Routing service failed")
	board.ClearWarning()
	require.NotNil(t, board.Current())

	board.Warn(5 * time.Second)
	board.ClearWarning()
	assert.Nil(t, board.Current())
}

func TestBoard_ClearWarningKeepsTransientWarning(t *testing.T) {
	pub := &recordingPublisher{}
	board := notice.NewBoard(time.Minute, pub)

	board.Show(notice.KindWarning, "Route saved without waypoints: the store does not support them")
	board.ClearWarning()

	cur := board.Current()
	require.NotNil(t, cur, "only the sticky inactivity warning is cleared")
	assert.Equal(t, notice.KindWarning, cur.Kind)
	assert.False(t, cur.Sticky)
	assert.Equal(t, 1, pub.count())
}

func TestBoard_Dismiss(t *testing.T) {
	pub := &recordingPublisher{}
	board := notice.NewBoard(time.Minute, pub)

	board.Dismiss()
	assert.Zero(t, pub.count(), "nothing to dismiss publishes nothing")

	board.Show(notice.KindInfo, "hello")
	board.Dismiss()
	assert.Nil(t, board.Current())
	assert.Equal(t, 2, pub.count())
}
