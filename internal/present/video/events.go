package video

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/avplay-go/avplay/internal/playctl"
)

// CursorHideDelay is how long the cursor stays visible after the last
// mouse movement, matching original_source/src/uitls/media.c's
// CURSOR_HIDE_DELAY (spec §11 supplement).
const CursorHideDelay = 1 * time.Second

// DoubleClickWindow is the max gap between two left-clicks that counts as
// a double-click (fullscreen toggle), matching the original's tracking.
const DoubleClickWindow = 500 * time.Millisecond

// SeekStepSeconds is how far Left/Right arrow keys seek (spec §4.8's
// relative seek), matching the original's 10-second arrow-key step.
const SeekStepSeconds = 10.0

// VolumeStepPercent is the VolumeDelta sent by the Up/Down arrow keys.
// The controller uses only its sign and moves volume one fixed dB step.
const VolumeStepPercent = 5.0

// EventLoop turns ebiten input state into playctl.ControlMsg values. It
// carries no rendering state; call Poll once per ebiten Update() tick.
type EventLoop struct {
	lastClickAt  time.Time
	lastMoveAt   time.Time
	lastDX       int
	lastDY       int
	cursorHidden bool
	now          func() time.Time
}

// NewEventLoop builds an EventLoop using time.Now unless a fake clock is
// supplied (tests pass one to make timing deterministic).
func NewEventLoop(now func() time.Time) *EventLoop {
	if now == nil {
		now = time.Now
	}
	return &EventLoop{now: now}
}

// Poll inspects ebiten's input state and returns the control messages
// produced this tick, plus whether the cursor should currently be hidden.
func (e *EventLoop) Poll() (msgs []playctl.ControlMsg, cursorHidden bool) {
	now := e.now()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) || inpututil.IsKeyJustPressed(ebiten.KeyP) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlTogglePause})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlSeek, SeekBy: -SeekStepSeconds, SeekRelative: true})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlSeek, SeekBy: SeekStepSeconds, SeekRelative: true})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlVolume, VolumeDelta: VolumeStepPercent})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlVolume, VolumeDelta: -VolumeStepPercent})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlFullscreenToggle})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlQuit})
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if !e.lastClickAt.IsZero() && now.Sub(e.lastClickAt) <= DoubleClickWindow {
			msgs = append(msgs, playctl.ControlMsg{Kind: playctl.ControlFullscreenToggle})
			e.lastClickAt = time.Time{}
		} else {
			e.lastClickAt = now
		}
	}

	dx, dy := ebiten.CursorPosition()
	if dx != e.lastDX || dy != e.lastDY {
		e.lastMoveAt = now
		e.lastDX, e.lastDY = dx, dy
	}
	e.cursorHidden = !e.lastMoveAt.IsZero() && now.Sub(e.lastMoveAt) >= CursorHideDelay
	return msgs, e.cursorHidden
}

// CursorHidden reports the EventLoop's last computed cursor visibility,
// independent of Poll's return value, for callers that need it outside
// the main tick (e.g. a Draw method deciding whether to render a cursor).
func (e *EventLoop) CursorHidden() bool { return e.cursorHidden }
