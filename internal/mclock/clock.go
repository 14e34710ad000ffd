// Package mclock implements the three logical clocks (audio, video,
// external) and the master-clock synchronization policy from spec §3/§4.3,
// grounded in original_source/include/clock.h and src/uitls/clock.c.
package mclock

import (
	"math"
	"sync"
	"time"
)

// NoSyncThreshold is AV_NOSYNC_THRESHOLD: the drift above which
// sync_to_slave adopts the slave's reading outright instead of leaving the
// clock alone.
const NoSyncThreshold = 10.0

// Now returns the current wall-clock time in fractional seconds, the Go
// equivalent of av_gettime_relative()/1e6.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Clock is the (pts, pts_drift, last_updated, speed, serial, paused) tuple
// from spec §3. All methods are safe for concurrent use; callers needing
// to read-then-write atomically (e.g. SetSpeed) take the lock internally.
type Clock struct {
	mu          sync.Mutex
	pts         float64
	ptsDrift    float64
	lastUpdated float64
	speed       float64
	serial      int
	paused      bool
}

// New returns a clock initialized to (NaN, NaN, now, 1.0, -1, false), per
// spec §3's lifecycle.
func New() *Clock {
	c := &Clock{speed: 1.0, serial: -1}
	c.setAt(math.NaN(), -1, Now())
	return c
}

// Read returns pts when paused, else pts_drift + now - (now -
// last_updated)*(1-speed) as specified.
func (c *Clock) Read() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *Clock) read() float64 {
	if c.paused {
		return c.pts
	}
	now := Now()
	return c.ptsDrift + now - (now-c.lastUpdated)*(1.0-c.speed)
}

// SetAt adopts pts/serial with an explicit wall-clock timestamp.
func (c *Clock) SetAt(pts float64, serial int, lastUpdated float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAt(pts, serial, lastUpdated)
}

func (c *Clock) setAt(pts float64, serial int, lastUpdated float64) {
	c.pts = pts
	c.lastUpdated = lastUpdated
	c.ptsDrift = c.pts - lastUpdated
	c.serial = serial
}

// Set is SetAt with last_updated = now.
func (c *Clock) Set(pts float64, serial int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAt(pts, serial, Now())
}

// SetSpeed freezes the current reading via Set, then installs the new
// speed, so playback rate changes don't discontinuously jump pts.
func (c *Clock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAt(c.read(), c.serial, Now())
	c.speed = speed
}

// Speed returns the clock's current playback speed multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Serial returns the clock's last-adopted serial.
func (c *Clock) Serial() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serial
}

// LastUpdated returns the wall-clock timestamp of the last Set/SetAt call,
// used by pause/unpause to re-anchor the video frame timer (spec §4.8).
func (c *Clock) LastUpdated() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// SetPaused pauses or unpauses the clock in place: Read() switches between
// the frozen pts and the drift-compensated formula.
func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if paused == c.paused {
		return
	}
	if paused {
		c.pts = c.read()
	}
	c.paused = paused
}

// Paused reports whether the clock is currently paused.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SyncToSlave adopts slave's reading and serial if this clock is NaN or
// the two differ by more than NoSyncThreshold; otherwise it is a no-op.
// This is how the external clock tracks whichever stream is master.
func (c *Clock) SyncToSlave(slave *Clock) {
	clock := c.Read()
	slaveClock := slave.Read()
	if !math.IsNaN(slaveClock) && (math.IsNaN(clock) || math.Abs(clock-slaveClock) > NoSyncThreshold) {
		c.Set(slaveClock, slave.Serial())
	}
}
