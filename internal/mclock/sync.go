package mclock

// SyncMode selects which logical clock other streams chase (spec §3's
// MasterSyncMode).
type SyncMode int

const (
	AudioMaster SyncMode = iota
	VideoMaster
	ExternalClock
)

func (m SyncMode) String() string {
	switch m {
	case AudioMaster:
		return "audio"
	case VideoMaster:
		return "video"
	case ExternalClock:
		return "external"
	default:
		return "unknown"
	}
}

// Effective applies spec §3's fallback rules: video master with no video
// stream falls back to audio master; audio master with no audio stream
// falls back to the external clock.
func Effective(requested SyncMode, hasVideo, hasAudio bool) SyncMode {
	switch requested {
	case VideoMaster:
		if !hasVideo {
			return AudioMaster
		}
		return VideoMaster
	case AudioMaster:
		if !hasAudio {
			return ExternalClock
		}
		return AudioMaster
	default:
		return ExternalClock
	}
}

// Sync thresholds and constants from spec §4.7 / original media.h.
const (
	// AVSyncThresholdMin is AV_SYNC_THRESHOLD_MIN: below this, no
	// correction against the master clock is applied.
	AVSyncThresholdMin = 0.04
	// AVSyncThresholdMax is AV_SYNC_THRESHOLD_MAX: above this, the frame
	// timer is resynced to now instead of drifting further.
	AVSyncThresholdMax = 0.1
	// AVSyncFramedupThreshold is AV_SYNC_FRAMEDUP_THRESHOLD: frames
	// longer than this are not duplicated to correct sync.
	AVSyncFramedupThreshold = 0.1
)

func clampDelay(delay float64) float64 {
	threshold := delay
	if threshold < AVSyncThresholdMin {
		threshold = AVSyncThresholdMin
	}
	if threshold > AVSyncThresholdMax {
		threshold = AVSyncThresholdMax
	}
	return threshold
}

// ComputeTargetDelay implements spec §4.7's compute_target_delay: when
// video is the effective master, delay passes through unchanged; otherwise
// it is stretched or shrunk against the diff between the video clock and
// the master clock.
func ComputeTargetDelay(delay float64, effective SyncMode, videoClockPts, masterClockPts, maxFrameDuration float64) float64 {
	if effective == VideoMaster {
		return delay
	}

	diff := videoClockPts - masterClockPts
	if abs(diff) >= maxFrameDuration {
		return delay
	}

	syncThreshold := clampDelay(delay)
	switch {
	case diff <= -syncThreshold:
		delay = max0(delay + diff)
	case diff >= syncThreshold && delay > AVSyncFramedupThreshold:
		delay = delay + diff
	case diff >= syncThreshold:
		delay = 2 * delay
	}
	return delay
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// External clock speed-adjustment constants, from original media.h. These
// back ExternalClockSpeedAdjust, a supplement from original_source: nudging
// the external clock's speed based on queue fullness when it is the
// effective master over realtime sources.
const (
	ExternalClockSpeedMin  = 0.900
	ExternalClockSpeedMax  = 1.010
	ExternalClockSpeedStep = 0.001
)

// ExternalClockSpeedAdjust nudges the external clock's speed towards 1.0
// or away from it based on how starved/full the audio and video queues
// are (the caller chooses the unit; a negative size means that stream is
// absent), following the original implementation's minFrames/maxFrames
// heuristic: a queue below minFrames slows the clock down (give decoders
// room to catch up), a queue above maxFrames on both streams speeds it up.
func ExternalClockSpeedAdjust(c *Clock, audioQueueSize, videoQueueSize, minFrames, maxFrames int) {
	speed := c.Speed()
	if (audioQueueSize >= 0 && audioQueueSize < minFrames) || (videoQueueSize >= 0 && videoQueueSize < minFrames) {
		speed = max2(ExternalClockSpeedMin, speed-ExternalClockSpeedStep)
	} else if (audioQueueSize < 0 || audioQueueSize > maxFrames) && (videoQueueSize < 0 || videoQueueSize > maxFrames) {
		speed = min2(ExternalClockSpeedMax, speed+ExternalClockSpeedStep)
	} else if speed != 1.0 {
		// drift back towards neutral when queues are comfortably in range
		if speed > 1.0 {
			speed = max2(1.0, speed-ExternalClockSpeedStep)
		} else {
			speed = min2(1.0, speed+ExternalClockSpeedStep)
		}
	}
	c.SetSpeed(speed)
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
