package controller

import "github.com/avplay-go/avplay/internal/mclock"

// Config is the controller's open-time configuration, translated from the
// CLI flags (cmd/avplay) into typed fields (spec §6's external interface
// made concrete).
type Config struct {
	URL string

	NoVideo    bool
	NoAudio    bool
	NoSubtitle bool

	Sync mclock.SyncMode

	// Volume is 0-100, stored internally as a 0.0-1.0 fraction.
	Volume int

	StartSeconds float64
}
