// Package controller implements the media controller (spec §4.8): open,
// start, pause/seek/volume/fullscreen control, and the seek state
// machine that invalidates in-flight packets/frames across a seek.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"golang.org/x/sync/errgroup"

	"github.com/avplay-go/avplay/internal/decode"
	"github.com/avplay-go/avplay/internal/demux"
	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/mclock"
	presaudio "github.com/avplay-go/avplay/internal/present/audio"
	presvideo "github.com/avplay-go/avplay/internal/present/video"
	"github.com/avplay-go/avplay/internal/playctl"
	"github.com/avplay-go/avplay/internal/queue"
)

// Queue capacities from spec §4.2.
const (
	packetQueueCapacity      = 128
	videoFrameQueueCapacity  = 3
	audioFrameQueueCapacity  = 64
	subtitleFrameQueuecapcty = 16
)

// Controller owns every stream's packet/frame queues, clocks, and the
// presenters, and is the single point that serializes seeks, pause, and
// volume/fullscreen changes against the background decode pipeline.
type Controller struct {
	cfg Config
	log *slog.Logger

	media *reisen.Media

	videoIndex, audioIndex int // -1 if absent/disabled
	videoStream             *reisen.VideoStream
	audioStream             *reisen.AudioStream
	videoMeta, audioMeta    media.StreamMeta

	vpackets, apackets, spackets *queue.Bounded[*media.Packet]
	vframes, aframes, sframes   *queue.Bounded[*media.Frame]

	vidclk, audclk, extclk *mclock.Clock
	requestedSync          mclock.SyncMode

	mu            sync.RWMutex
	state         playctl.State
	muted         bool
	volume        float64 // 0.0-1.0
	fullScreen    bool
	seekRequested bool
	seekTarget    float64
	seekRel       float64
	seekByBytes   bool

	grabber        *demux.Grabber
	videoRefresher *presvideo.Refresher
	audioPresenter *presaudio.Presenter
	audioPlayer    *audio.Player

	grp    *errgroup.Group
	cancel context.CancelFunc
}

var _ demux.Controller = (*Controller)(nil)

// Open probes the URL, selects streams per cfg, and wires the queues,
// clocks, decoders, and presenters, without starting playback (spec
// §4.8's Open).
func Open(cfg Config, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "controller")

	if cfg.URL == "" {
		return nil, fmt.Errorf("controller: empty URL")
	}

	m, err := reisen.NewMedia(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("controller: open %q: %w", cfg.URL, err)
	}

	c := &Controller{
		cfg:           cfg,
		log:           log,
		media:         m,
		videoIndex:    -1,
		audioIndex:    -1,
		requestedSync: cfg.Sync,
		state:         playctl.StateOpened,
		volume:        clampVolume(cfg.Volume),
	}

	if !cfg.NoVideo {
		if streams := m.VideoStreams(); len(streams) > 0 {
			if len(streams) > 1 {
				log.Warn("multiple video streams, defaulting to first", "count", len(streams))
			}
			c.videoStream = streams[0]
			c.videoIndex = c.videoStream.Index()
			c.videoMeta = media.VideoStreamMeta(c.videoStream)
		}
	}
	if !cfg.NoAudio {
		if streams := m.AudioStreams(); len(streams) > 0 {
			if len(streams) > 1 {
				log.Warn("multiple audio streams, defaulting to first", "count", len(streams))
			}
			c.audioStream = streams[0]
			c.audioIndex = c.audioStream.Index()
			c.audioMeta = media.AudioStreamMeta(c.audioStream)
		}
	}
	if c.videoStream == nil && c.audioStream == nil {
		m.Close()
		return nil, fmt.Errorf("controller: %q has no usable video or audio streams", cfg.URL)
	}

	c.vidclk = mclock.New()
	c.audclk = mclock.New()
	c.extclk = mclock.New()

	c.vpackets = queue.NewBounded[*media.Packet](packetQueueCapacity)
	c.apackets = queue.NewBounded[*media.Packet](packetQueueCapacity)
	c.spackets = queue.NewBounded[*media.Packet](packetQueueCapacity)
	c.vframes = queue.NewBounded[*media.Frame](videoFrameQueueCapacity)
	c.aframes = queue.NewBounded[*media.Frame](audioFrameQueueCapacity)
	c.sframes = queue.NewBounded[*media.Frame](subtitleFrameQueuecapcty)

	var decoders demux.Decoders
	if c.videoStream != nil {
		decoders.Video = decode.NewVideoDecode(c.videoStream, c.videoMeta.FrameDuration())
	}
	if c.audioStream != nil {
		decoders.Audio = decode.NewAudioDecode(c.audioStream, c.audioMeta.SampleRate)
	}
	c.grabber = demux.NewGrabber(m, c.videoIndex, c.audioIndex, demux.Queues{
		VideoPackets: c.vpackets, AudioPackets: c.apackets, SubtitlePackets: c.spackets,
		VideoFrames: c.vframes, AudioFrames: c.aframes,
	}, decoders, c, log)

	if c.videoStream != nil {
		c.videoRefresher = presvideo.NewRefresher(c.vframes, c.vidclk, log)
		c.videoRefresher.Paused = c.Paused
		c.videoRefresher.EffectiveMode = c.effectiveSync()
		c.videoRefresher.MaxFrameDuration = func() float64 { return c.videoMeta.MaxFrameDuration() }
		c.videoRefresher.MasterClockPTS = func() float64 { return c.masterClock().Read() }
		c.videoRefresher.SyncExternal = func(slave *mclock.Clock) {
			if c.effectiveSync() != mclock.VideoMaster {
				c.extclk.SyncToSlave(slave)
			}
		}
	}

	if c.audioStream != nil {
		c.audioPresenter = presaudio.NewPresenter(c.aframes, c.audclk, c.audioMeta.SampleRate, log)
		c.audioPresenter.Paused = c.Paused
		c.audioPresenter.Volume = c.volume
		c.audioPresenter.EffectiveMode = c.effectiveSync()
		c.audioPresenter.MasterClockPTS = func() float64 { return c.masterClock().Read() }
		c.audioPresenter.SyncExternal = func(slave *mclock.Clock) {
			if c.effectiveSync() != mclock.AudioMaster {
				c.extclk.SyncToSlave(slave)
			}
		}
	}

	if err := m.OpenDecode(); err != nil {
		m.Close()
		return nil, fmt.Errorf("controller: open decode: %w", err)
	}
	if c.videoStream != nil {
		if err := c.videoStream.Open(); err != nil {
			m.CloseDecode()
			m.Close()
			return nil, fmt.Errorf("controller: open video stream: %w", err)
		}
	}
	if c.audioStream != nil {
		if err := c.audioStream.Open(); err != nil {
			m.CloseDecode()
			m.Close()
			return nil, fmt.Errorf("controller: open audio stream: %w", err)
		}
	}

	c.state = playctl.StateDecoding
	return c, nil
}

func clampVolume(pct int) float64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return float64(pct) / 100.0
}

// effectiveSync resolves spec §3's master-sync fallback rules against
// which streams are actually present.
func (c *Controller) effectiveSync() mclock.SyncMode {
	return mclock.Effective(c.requestedSync, c.videoIndex >= 0, c.audioIndex >= 0)
}

// masterClock returns the clock that drives the effective master-sync
// mode.
func (c *Controller) masterClock() *mclock.Clock {
	switch c.effectiveSync() {
	case mclock.VideoMaster:
		return c.vidclk
	case mclock.AudioMaster:
		return c.audclk
	default:
		return c.extclk
	}
}

// Start launches the grabber (which reads and decodes in lockstep on its
// own goroutine, per reisen's constraints — see internal/demux.Grabber)
// under a shared errgroup, and opens the audio device player if audio is
// selected (spec §5's concurrency model).
func (c *Controller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	grp, ctx := errgroup.WithContext(ctx)
	c.cancel = cancel
	c.grp = grp

	grp.Go(func() error { return c.grabber.Run(ctx) })
	grp.Go(func() error { return c.runExternalClockTick(ctx) })

	if c.audioStream != nil {
		if audio.CurrentContext() == nil {
			return fmt.Errorf("controller: start: no audio context initialized")
		}
		if audio.CurrentContext().SampleRate() != c.audioMeta.SampleRate {
			return fmt.Errorf("controller: start: audio context sample rate %d != stream rate %d",
				audio.CurrentContext().SampleRate(), c.audioMeta.SampleRate)
		}
		player, err := audio.CurrentContext().NewPlayer(c.audioPresenter)
		if err != nil {
			return fmt.Errorf("controller: start: new audio player: %w", err)
		}
		player.SetVolume(c.effectiveVolume())
		c.audioPlayer = player
		player.Play()
	}

	c.mu.Lock()
	c.state = playctl.StatePlaying
	c.mu.Unlock()

	if c.cfg.StartSeconds > 0 {
		c.Seek(c.cfg.StartSeconds, false)
	}

	return nil
}

// Wait blocks until the background pipeline stops, returning the first
// error (if any) from the grabber.
func (c *Controller) Wait() error {
	if c.grp == nil {
		return nil
	}
	return c.grp.Wait()
}

// External clock speed-tick tuning (spec §11 supplement): queue
// occupancy is expressed as a percentage of capacity rather than a raw
// frame count, since the video and audio frame queues have very
// different capacities (3 vs 64).
const (
	externalClockTickInterval     = 100 * time.Millisecond
	externalClockMinFramesPercent = 20
	externalClockMaxFramesPercent = 80
)

// runExternalClockTick periodically nudges the external clock's speed
// against how full the frame queues are, per mclock.ExternalClockSpeedAdjust,
// but only while the external clock is actually the effective master —
// nudging it otherwise would be invisible (nothing reads its speed) and
// wasted work.
func (c *Controller) runExternalClockTick(ctx context.Context) error {
	ticker := time.NewTicker(externalClockTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.effectiveSync() != mclock.ExternalClock {
				continue
			}
			audioPct, videoPct := -1, -1
			if c.audioStream != nil {
				audioPct = queuePercent(c.aframes)
			}
			if c.videoStream != nil {
				videoPct = queuePercent(c.vframes)
			}
			mclock.ExternalClockSpeedAdjust(c.extclk, audioPct, videoPct,
				externalClockMinFramesPercent, externalClockMaxFramesPercent)
		}
	}
}

func queuePercent[T any](q *queue.Bounded[T]) int {
	capacity := q.Capacity()
	if capacity <= 0 {
		return 0
	}
	return q.Size() * 100 / capacity
}

// Paused reports whether playback is currently paused.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == playctl.StatePaused
}

// TogglePause flips between playing and paused, re-anchoring clocks and
// the video frame timer per spec §4.8's pause/unpause contract.
func (c *Controller) TogglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := mclock.Now()
	if c.state == playctl.StatePaused {
		c.state = playctl.StatePlaying
		if c.videoRefresher != nil {
			c.videoRefresher.OnUnpause(now)
		}
		for _, clk := range []*mclock.Clock{c.vidclk, c.audclk, c.extclk} {
			// resume from the frozen reading, not the pre-pause drift
			clk.SetAt(clk.Read(), clk.Serial(), now)
			clk.SetPaused(false)
		}
		if c.audioPlayer != nil {
			c.audioPlayer.Play()
		}
	} else if c.state == playctl.StatePlaying {
		c.state = playctl.StatePaused
		c.vidclk.SetPaused(true)
		c.audclk.SetPaused(true)
		c.extclk.SetPaused(true)
		if c.audioPlayer != nil {
			c.audioPlayer.Pause()
		}
	}
}

// SetMuted toggles mute on the audio presenter.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	if c.audioPresenter != nil {
		c.audioPresenter.Muted = muted
	}
}

// AdjustVolume applies one VolumeStepDB-sized logarithmic volume step,
// in the direction of deltaPercent's sign, matching the original's
// update_volume (spec §11 supplement): magnitude is otherwise ignored,
// since the original steps by a fixed dB amount per keypress rather than
// a caller-chosen percentage.
func (c *Controller) AdjustVolume(deltaPercent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sign := 1.0
	if deltaPercent < 0 {
		sign = -1.0
	}
	c.volume = stepVolumeDB(c.volume, sign)
	if c.audioPresenter != nil {
		c.audioPresenter.Volume = c.volume
	}
	if c.audioPlayer != nil {
		c.audioPlayer.SetVolume(c.effectiveVolume())
	}
}

// stepVolumeDB nudges a volume in [0,1] by one VolumeStepDB-sized step:
// round to whole MaxVolume units, convert to a dB level, shift it,
// convert back and round, moving one unit when rounding leaves the level
// unchanged, clipped to [0,1].
func stepVolumeDB(volume float64, sign float64) float64 {
	current := math.Round(volume * presaudio.MaxVolume)
	level := -1000.0
	if current > 0 {
		level = 20 * math.Log10(current/presaudio.MaxVolume)
	}
	next := math.Round(presaudio.MaxVolume * math.Pow(10, (level+sign*presaudio.VolumeStepDB)/20))
	if next == current {
		next = current + sign
	}
	if next < 0 {
		next = 0
	}
	if next > presaudio.MaxVolume {
		next = presaudio.MaxVolume
	}
	return next / presaudio.MaxVolume
}

func (c *Controller) effectiveVolume() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

// ToggleFullscreen flips the controller's fullscreen flag; the CLI's
// ebiten.RunGame loop reads FullScreen() each Update.
func (c *Controller) ToggleFullscreen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullScreen = !c.fullScreen
}

// FullScreen reports the current fullscreen flag.
func (c *Controller) FullScreen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullScreen
}

// Seek requests a seek to be picked up by the grabber on its next loop
// iteration (spec §4.8): by is an absolute position in seconds unless
// relative is true, in which case it's added to the current master clock
// reading.
func (c *Controller) Seek(by float64, relative bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekRequested = true
	c.seekTarget = by
	c.seekRel = 0
	if relative {
		c.seekRel = by
	}
}

// TakeSeekRequest implements demux.Controller.
func (c *Controller) TakeSeekRequest() (demux.SeekRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seekRequested {
		return demux.SeekRequest{}, false
	}
	c.seekRequested = false
	return demux.SeekRequest{TargetSeconds: c.seekTarget, RelSeconds: c.seekRel, ByBytes: c.seekByBytes}, true
}

// ApplySeek implements demux.Controller: it computes the absolute target,
// rewinds every selected stream, and clears every queue (bumping their
// serials so any packet/frame still in flight from before the seek gets
// dropped as stale) per spec §4.8 steps 1-4.
func (c *Controller) ApplySeek(req demux.SeekRequest) error {
	c.mu.Lock()
	c.state = playctl.StateSeeking
	c.mu.Unlock()

	target := req.TargetSeconds
	if req.RelSeconds != 0 {
		target = c.masterClock().Read() + req.RelSeconds
	}
	if target < 0 {
		target = 0
	}
	pos := time.Duration(target * float64(time.Second))

	c.vpackets.Clear(func(p *media.Packet) { p.Release() })
	c.apackets.Clear(func(p *media.Packet) { p.Release() })
	c.spackets.Clear(func(p *media.Packet) { p.Release() })
	c.vframes.Clear(func(f *media.Frame) { f.Release() })
	c.aframes.Clear(func(f *media.Frame) { f.Release() })
	c.sframes.Clear(func(f *media.Frame) { f.Release() })

	if c.videoStream != nil {
		if err := c.videoStream.Rewind(pos); err != nil {
			return fmt.Errorf("controller: seek video: %w", err)
		}
	}
	if c.audioStream != nil {
		if err := c.audioStream.Rewind(pos); err != nil {
			return fmt.Errorf("controller: seek audio: %w", err)
		}
	}

	if req.ByBytes {
		c.extclk.Set(math.NaN(), 0)
	} else {
		c.extclk.Set(target, 0)
	}

	c.mu.Lock()
	if c.state == playctl.StateSeeking {
		c.state = playctl.StatePlaying
	}
	c.mu.Unlock()
	return nil
}

// Stop halts playback and cancels the background pipeline, but leaves
// the controller reusable via Close-and-reopen semantics out of scope:
// this core treats Stop as a step toward Close (spec §4.8's Stopped
// lifecycle state, collapsed since this implementation has no replay).
func (c *Controller) Stop() {
	c.mu.Lock()
	c.state = playctl.StateStopped
	c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.audioPlayer != nil {
		c.audioPlayer.Pause()
	}
}

// Close releases every underlying reisen resource. The controller is
// unusable afterwards.
func (c *Controller) Close() error {
	c.Stop()
	if c.grp != nil {
		c.grp.Wait()
	}
	if c.audioPlayer != nil {
		c.audioPlayer.Close()
		c.audioPlayer = nil
	}
	if c.videoStream != nil {
		c.videoStream.Close()
	}
	if c.audioStream != nil {
		c.audioStream.Close()
	}
	if err := c.media.CloseDecode(); err != nil {
		c.log.Warn("close decode", "error", err)
	}
	c.media.Close()
	c.mu.Lock()
	c.state = playctl.StateClosed
	c.mu.Unlock()
	return nil
}

// Dispatch applies a control message from the video event loop (spec
// §9's design note replacing ad hoc flags with a message type).
func (c *Controller) Dispatch(msg playctl.ControlMsg) {
	switch msg.Kind {
	case playctl.ControlTogglePause:
		c.TogglePause()
	case playctl.ControlSeek:
		c.Seek(msg.SeekBy, msg.SeekRelative)
	case playctl.ControlVolume:
		c.AdjustVolume(msg.VolumeDelta)
	case playctl.ControlFullscreenToggle:
		c.ToggleFullscreen()
	case playctl.ControlQuit:
		c.Stop()
	}
}

// VideoRefresher exposes the controller's video.Refresher for the CLI's
// ebiten.Game.Update/Draw loop. Returns nil if no video stream is
// selected.
func (c *Controller) VideoRefresher() *presvideo.Refresher { return c.videoRefresher }

// VideoSize returns the selected video stream's pixel dimensions, or
// (0, 0) if no video stream is selected.
func (c *Controller) VideoSize() (int, int) {
	if c.videoStream == nil {
		return 0, 0
	}
	return c.videoMeta.Width, c.videoMeta.Height
}

// State returns the controller's current playback state.
func (c *Controller) State() playctl.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
