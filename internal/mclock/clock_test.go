package mclock

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClockIsNaNAndUnpaused(t *testing.T) {
	c := New()
	require.True(t, math.IsNaN(c.Read()))
	require.False(t, c.Paused())
	require.Equal(t, -1, c.Serial())
}

func TestSetAndRead(t *testing.T) {
	c := New()
	c.Set(10.0, 3)
	require.InDelta(t, 10.0, c.Read(), 0.01)
	require.Equal(t, 3, c.Serial())
}

func TestReadAdvancesWithWallClockWhileUnpaused(t *testing.T) {
	c := New()
	c.Set(5.0, 0)
	time.Sleep(20 * time.Millisecond)
	require.Greater(t, c.Read(), 5.0)
}

// TestPauseIdempotence exercises property 5 from spec §8: pause; pause
// returns to playing, and the clock's value is unaffected by the pair.
func TestPauseIdempotence(t *testing.T) {
	c := New()
	c.Set(5.0, 0)
	before := c.Read()

	c.SetPaused(true)
	c.SetPaused(false)

	require.InDelta(t, before, c.Read(), 0.02)
}

func TestPauseFreezesReading(t *testing.T) {
	c := New()
	c.Set(5.0, 0)
	c.SetPaused(true)
	v1 := c.Read()
	time.Sleep(20 * time.Millisecond)
	v2 := c.Read()
	require.Equal(t, v1, v2)
}

func TestSetSpeedFreezesThenChangesRate(t *testing.T) {
	c := New()
	c.Set(0.0, 0)
	c.SetSpeed(2.0)
	require.InDelta(t, 0.0, c.Read(), 0.02)
	time.Sleep(50 * time.Millisecond)
	// at 2x speed, roughly twice the elapsed wall time should show up
	require.Greater(t, c.Read(), 0.09)
}

func TestSyncToSlaveAdoptsWhenNaN(t *testing.T) {
	master := New()
	slave := New()
	slave.Set(42.0, 7)

	master.SyncToSlave(slave)
	require.InDelta(t, 42.0, master.Read(), 0.05)
	require.Equal(t, 7, master.Serial())
}

func TestSyncToSlaveAdoptsWhenDriftExceedsThreshold(t *testing.T) {
	master := New()
	master.Set(0.0, 1)
	slave := New()
	slave.Set(NoSyncThreshold+1, 2)

	master.SyncToSlave(slave)
	require.InDelta(t, NoSyncThreshold+1, master.Read(), 0.05)
}

func TestSyncToSlaveNoopWhenWithinThreshold(t *testing.T) {
	master := New()
	master.Set(0.0, 1)
	slave := New()
	slave.Set(1.0, 2)

	master.SyncToSlave(slave)
	require.InDelta(t, 0.0, master.Read(), 0.05)
	require.Equal(t, 1, master.Serial())
}

func TestEffectiveSyncModeFallback(t *testing.T) {
	require.Equal(t, AudioMaster, Effective(VideoMaster, false, true))
	require.Equal(t, VideoMaster, Effective(VideoMaster, true, true))
	require.Equal(t, ExternalClock, Effective(AudioMaster, true, false))
	require.Equal(t, AudioMaster, Effective(AudioMaster, true, true))
	require.Equal(t, ExternalClock, Effective(ExternalClock, true, true))
}

func TestComputeTargetDelayVideoMasterPassesThrough(t *testing.T) {
	got := ComputeTargetDelay(0.04, VideoMaster, 10, 5, 10)
	require.Equal(t, 0.04, got)
}

func TestComputeTargetDelayBeyondMaxFrameDuration(t *testing.T) {
	got := ComputeTargetDelay(0.04, AudioMaster, 100, 0, 10)
	require.Equal(t, 0.04, got)
}

func TestComputeTargetDelayBehindMasterShrinks(t *testing.T) {
	// video behind master by more than the sync threshold: delay shrinks
	got := ComputeTargetDelay(0.04, AudioMaster, 0.0, 0.2, 10)
	require.InDelta(t, 0.0, got, 1e-9)
}

func TestComputeTargetDelayAheadLongFrameLetsItRun(t *testing.T) {
	got := ComputeTargetDelay(0.2, AudioMaster, 0.5, 0.0, 10)
	require.InDelta(t, 0.7, got, 1e-9)
}

func TestComputeTargetDelayAheadShortFrameDuplicates(t *testing.T) {
	got := ComputeTargetDelay(0.04, AudioMaster, 0.2, 0.0, 10)
	require.InDelta(t, 0.08, got, 1e-9)
}

func TestExternalClockSpeedAdjustSlowsDownWhenStarved(t *testing.T) {
	c := New()
	c.SetSpeed(1.0)
	ExternalClockSpeedAdjust(c, 1, 1, 10, 20)
	require.InDelta(t, 1.0-ExternalClockSpeedStep, c.Speed(), 1e-9)
}

func TestExternalClockSpeedAdjustSpeedsUpWhenFull(t *testing.T) {
	c := New()
	c.SetSpeed(1.0)
	ExternalClockSpeedAdjust(c, 30, 30, 10, 20)
	require.InDelta(t, 1.0+ExternalClockSpeedStep, c.Speed(), 1e-9)
}

func TestExternalClockSpeedAdjustDriftsBackToNeutral(t *testing.T) {
	c := New()
	c.SetSpeed(1.0 + ExternalClockSpeedStep)
	ExternalClockSpeedAdjust(c, 15, 15, 10, 20)
	require.InDelta(t, 1.0, c.Speed(), 1e-9)
}

func TestExternalClockSpeedAdjustRespectsBounds(t *testing.T) {
	c := New()
	c.SetSpeed(ExternalClockSpeedMin)
	ExternalClockSpeedAdjust(c, 0, 0, 10, 20)
	require.GreaterOrEqual(t, c.Speed(), ExternalClockSpeedMin)
}
