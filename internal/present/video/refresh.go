// Package video implements the video presenter and event loop (spec
// §4.7): frame pacing against the master clock, drop/duplicate decisions,
// and the window/keyboard/mouse event dispatch that drives pause, seek,
// volume, and fullscreen.
package video

import (
	"log/slog"
	"math"
	"time"

	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/mclock"
	"github.com/avplay-go/avplay/internal/queue"
)

// DefaultRefreshRate is the event loop's polling cadence (spec §4.7: "10ms
// default").
const DefaultRefreshRate = 10 * time.Millisecond

// PresentResult is what Refresh() hands back to the caller each tick.
type PresentResult struct {
	// Frame is the frame that should currently be on screen. It may be
	// the same frame as the previous call (still within its delay
	// window) or nil if no frame has been displayed yet.
	Frame *media.Frame
	// Remaining is the suggested sleep before the next Refresh call,
	// capped to at most the refresher's RefreshRate.
	Remaining time.Duration
}

// Refresher tracks the "frame_timer"/"last displayed frame" state from
// spec §4.7 and implements video_refresh and compute_target_delay.
type Refresher struct {
	Frames           *queue.Bounded[*media.Frame]
	VideoClock       *mclock.Clock
	EffectiveMode    mclock.SyncMode
	MasterClockPTS   func() float64
	MaxFrameDuration func() float64
	SyncExternal     func(slave *mclock.Clock)
	RefreshRate      time.Duration
	Paused           func() bool
	Log              *slog.Logger

	frameTimer   float64
	frameTimerOK bool
	lastFrame    *media.Frame
}

// NewRefresher builds a Refresher with RefreshRate defaulted if zero.
func NewRefresher(frames *queue.Bounded[*media.Frame], videoClock *mclock.Clock, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		Frames:      frames,
		VideoClock:  videoClock,
		RefreshRate: DefaultRefreshRate,
		Log:         log.With("component", "video-presenter"),
	}
}

// OnUnpause advances frame_timer by the wall-clock gap since the video
// clock was last updated, per spec §4.8's pause/unpause contract.
func (r *Refresher) OnUnpause(now float64) {
	if !r.frameTimerOK {
		r.frameTimer = now
		r.frameTimerOK = true
		return
	}
	r.frameTimer += now - r.VideoClock.LastUpdated()
}

// Refresh implements spec §4.7's video_refresh.
func (r *Refresher) Refresh(now float64) PresentResult {
	if r.Paused != nil && r.Paused() {
		return PresentResult{Frame: r.lastFrame, Remaining: r.RefreshRate}
	}

	var head *media.Frame
	for {
		h, ok := r.Frames.Peek(0)
		if !ok {
			return PresentResult{Frame: r.lastFrame, Remaining: r.RefreshRate}
		}
		if h.Serial != r.Frames.Serial() {
			// stale frame from before a seek: drop and retry
			stale, _ := r.Frames.TryPopHead()
			if stale != nil {
				stale.Release()
			}
			continue
		}
		head = h
		break
	}

	if !r.frameTimerOK {
		r.frameTimer = now
		r.frameTimerOK = true
	}

	last := r.lastFrame
	if last != nil && last.Serial != head.Serial {
		r.frameTimer = now
	}

	lastDuration := r.computeLastDuration(last, head)
	maxDur := 10.0
	if r.MaxFrameDuration != nil {
		maxDur = r.MaxFrameDuration()
	}
	masterPTS := 0.0
	if r.MasterClockPTS != nil {
		masterPTS = r.MasterClockPTS()
	}
	delay := mclock.ComputeTargetDelay(lastDuration, r.EffectiveMode, r.VideoClock.Read(), masterPTS, maxDur)

	if now < r.frameTimer+delay {
		remaining := r.frameTimer + delay - now
		if remaining > r.RefreshRate.Seconds() {
			remaining = r.RefreshRate.Seconds()
		}
		return PresentResult{Frame: last, Remaining: time.Duration(remaining * float64(time.Second))}
	}

	r.frameTimer += delay
	if delay > 0 && now-r.frameTimer > mclock.AVSyncThresholdMax {
		r.frameTimer = now
	}

	if head.HasValidPTS() {
		r.VideoClock.Set(head.PTS, head.Serial)
		if r.SyncExternal != nil {
			r.SyncExternal(r.VideoClock)
		}
	}

	popped, ok := r.Frames.TryPopHead()
	if !ok {
		// raced with a concurrent clear between Peek and TryPopHead; last
		// is still on screen and still owned by us, so keep it as is
		return PresentResult{Frame: last, Remaining: r.RefreshRate}
	}
	if last != nil {
		last.Release()
	}
	r.lastFrame = popped
	return PresentResult{Frame: popped, Remaining: r.RefreshRate}
}

// computeLastDuration implements spec §4.7 step 5.
func (r *Refresher) computeLastDuration(last, head *media.Frame) float64 {
	if last == nil || last.Serial != head.Serial {
		return head.Duration
	}
	d := head.PTS - last.PTS
	maxDur := 10.0
	if r.MaxFrameDuration != nil {
		maxDur = r.MaxFrameDuration()
	}
	if math.IsNaN(d) || d <= 0 || d > maxDur {
		return last.Duration
	}
	return d
}
