package controller

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avplay-go/avplay/internal/demux"
	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/mclock"
	"github.com/avplay-go/avplay/internal/playctl"
	"github.com/avplay-go/avplay/internal/queue"
)

// newTestController builds a Controller with queues/clocks wired but no
// real reisen.Media/streams, exercising the seek/state-machine/sync-mode
// logic in isolation (spec §9: these algorithms are tested without
// decoding a real container, per SPEC_FULL.md's testable-properties plan).
func newTestController(requested mclock.SyncMode, hasVideo, hasAudio bool) *Controller {
	c := &Controller{
		videoIndex:    -1,
		audioIndex:    -1,
		requestedSync: requested,
		state:         playctl.StateDecoding,
		vidclk:        mclock.New(),
		audclk:        mclock.New(),
		extclk:        mclock.New(),
		vpackets:      queue.NewBounded[*media.Packet](4),
		apackets:      queue.NewBounded[*media.Packet](4),
		spackets:      queue.NewBounded[*media.Packet](4),
		vframes:       queue.NewBounded[*media.Frame](4),
		aframes:       queue.NewBounded[*media.Frame](4),
		sframes:       queue.NewBounded[*media.Frame](4),
	}
	if hasVideo {
		c.videoIndex = 0
	}
	if hasAudio {
		c.audioIndex = 1
	}
	return c
}

func TestEffectiveSyncFallsBackWhenStreamMissing(t *testing.T) {
	c := newTestController(mclock.VideoMaster, false, true)
	require.Equal(t, mclock.AudioMaster, c.effectiveSync())

	c = newTestController(mclock.AudioMaster, true, false)
	require.Equal(t, mclock.ExternalClock, c.effectiveSync())
}

func TestMasterClockMatchesEffectiveSync(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)
	require.Same(t, c.audclk, c.masterClock())

	c = newTestController(mclock.VideoMaster, true, true)
	require.Same(t, c.vidclk, c.masterClock())

	c = newTestController(mclock.ExternalClock, true, true)
	require.Same(t, c.extclk, c.masterClock())
}

func TestTogglePauseFlipsStateAndClocks(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)
	c.state = playctl.StatePlaying

	c.TogglePause()
	require.Equal(t, playctl.StatePaused, c.State())
	require.True(t, c.vidclk.Paused())
	require.True(t, c.audclk.Paused())

	c.TogglePause()
	require.Equal(t, playctl.StatePlaying, c.State())
	require.False(t, c.vidclk.Paused())
}

func TestSeekRequestRoundTrip(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)

	_, ok := c.TakeSeekRequest()
	require.False(t, ok)

	c.Seek(30, false)
	req, ok := c.TakeSeekRequest()
	require.True(t, ok)
	require.Equal(t, 30.0, req.TargetSeconds)
	require.Equal(t, 0.0, req.RelSeconds)

	_, ok = c.TakeSeekRequest()
	require.False(t, ok, "TakeSeekRequest should clear the pending request")

	c.Seek(-5, true)
	req, ok = c.TakeSeekRequest()
	require.True(t, ok)
	require.Equal(t, -5.0, req.RelSeconds)
}

func TestApplySeekBumpsAllQueueSerials(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)

	c.vpackets.TryPushTail(media.NewPacket(media.KindVideo, 0, c.vpackets.Serial()))
	c.vframes.TryPushTail(media.NewVideoFrame(nil, c.vframes.Serial(), 1.0, 0.04))

	startVSerial := c.vpackets.Serial()
	startFSerial := c.vframes.Serial()

	err := c.ApplySeek(demux.SeekRequest{TargetSeconds: 10})
	require.NoError(t, err)

	require.Greater(t, c.vpackets.Serial(), startVSerial)
	require.Greater(t, c.vframes.Serial(), startFSerial)
	require.Equal(t, 0, c.vpackets.Size())
	require.Equal(t, 0, c.vframes.Size())
	require.Equal(t, playctl.StatePlaying, c.State())
}

func TestDispatchRoutesControlMessages(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)
	c.state = playctl.StatePlaying

	c.Dispatch(playctl.ControlMsg{Kind: playctl.ControlTogglePause})
	require.Equal(t, playctl.StatePaused, c.State())

	c.Dispatch(playctl.ControlMsg{Kind: playctl.ControlFullscreenToggle})
	require.True(t, c.FullScreen())

	c.Dispatch(playctl.ControlMsg{Kind: playctl.ControlSeek, SeekBy: 5, SeekRelative: true})
	req, ok := c.TakeSeekRequest()
	require.True(t, ok)
	require.Equal(t, 5.0, req.RelSeconds)
}

func TestAdjustVolumeClampsToRange(t *testing.T) {
	c := newTestController(mclock.AudioMaster, true, true)
	c.volume = 1.0
	c.AdjustVolume(1000)
	require.Equal(t, 1.0, c.volume)

	c.volume = 0.0
	c.AdjustVolume(-1000)
	require.Equal(t, 0.0, c.volume)
}
