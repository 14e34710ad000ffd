// Package playctl holds the playback state machine and control-message
// vocabulary shared between the controller and the video event loop. It
// exists as its own package so internal/present/video (which produces
// ControlMsg values from input events) and internal/controller (which
// consumes them) don't need to import each other.
package playctl

// State is the playback state machine from spec §4.8's Open→...→Closed
// lifecycle, collapsed into a single enum per spec §9's design notes,
// replacing scattered paused/finished/seek_requested flags.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateDecoding
	StatePlaying
	StatePaused
	StateSeeking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateDecoding:
		return "decoding"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ControlMsg is the message type spec §9's design notes propose in place
// of ad hoc event-loop flags: one value per user action the video event
// loop can produce.
type ControlMsg struct {
	Kind ControlKind

	// Seek
	SeekBy       float64
	SeekRelative bool

	// Volume
	VolumeDelta float64
}

type ControlKind int

const (
	ControlTogglePause ControlKind = iota
	ControlSeek
	ControlVolume
	ControlFullscreenToggle
	ControlQuit
)
