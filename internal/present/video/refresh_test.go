package video

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/mclock"
	"github.com/avplay-go/avplay/internal/queue"
)

func TestRefreshHoldsFrameUntilDelayElapses(t *testing.T) {
	frames := queue.NewBounded[*media.Frame](4)
	f := media.NewVideoFrame(nil, frames.Serial(), 0.0, 0.04)
	require.True(t, frames.TryPushTail(f))

	clock := mclock.New()
	r := NewRefresher(frames, clock, nil)
	r.EffectiveMode = mclock.VideoMaster

	now := 1000.0
	res := r.Refresh(now)
	require.Nil(t, res.Frame)

	res = r.Refresh(now + 0.05)
	require.Same(t, f, res.Frame)
}

func TestRefreshDropsStaleSerialFrames(t *testing.T) {
	frames := queue.NewBounded[*media.Frame](4)
	// simulate a seek: the queue is cleared (serial bumps to 1) but a
	// decoder that already captured the old serial still pushes a frame
	// tagged with it afterwards.
	frames.Clear(func(f *media.Frame) {})
	stale := media.NewVideoFrame(nil, 0, 0.0, 0.04)
	require.True(t, frames.TryPushTail(stale))

	fresh := media.NewVideoFrame(nil, frames.Serial(), 1.0, 0.04)
	require.True(t, frames.TryPushTail(fresh))

	clock := mclock.New()
	r := NewRefresher(frames, clock, nil)
	r.EffectiveMode = mclock.VideoMaster

	now := 2000.0
	r.Refresh(now)
	res := r.Refresh(now + 0.1)
	require.Same(t, fresh, res.Frame)
}

func TestRefreshPausedKeepsLastFrame(t *testing.T) {
	frames := queue.NewBounded[*media.Frame](4)
	clock := mclock.New()
	r := NewRefresher(frames, clock, nil)
	r.Paused = func() bool { return true }

	res := r.Refresh(mclock.Now())
	require.Nil(t, res.Frame)
	require.Equal(t, DefaultRefreshRate, res.Remaining)
}

func TestOnUnpauseAdvancesFrameTimer(t *testing.T) {
	frames := queue.NewBounded[*media.Frame](4)
	clock := mclock.New()
	clock.Set(5.0, 0)
	r := NewRefresher(frames, clock, nil)

	r.frameTimer = 100.0
	r.frameTimerOK = true
	r.OnUnpause(clock.LastUpdated() + 2*time.Second.Seconds())
	require.InDelta(t, 102.0, r.frameTimer, 1e-6)
}
