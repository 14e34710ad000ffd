// Package media holds the packet/frame data model (spec §3) and the
// per-stream metadata the rest of the pipeline needs, adapting the
// erparts/reisen demuxer/decoder library's types to the core's own
// refcounted, serial-tagged packets and frames.
package media

import (
	"time"

	"github.com/erparts/reisen"
)

// Kind identifies which logical stream a packet or frame belongs to.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindSubtitle
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// StreamMeta is the per-stream metadata spec §3's Media aggregate owns:
// time base, start pts, sample rate, channel layout, pixel format, sample
// aspect ratio, frame rate, and the derived max_frame_duration used to
// decide whether a gap between frames is a discontinuity.
type StreamMeta struct {
	Kind Kind

	// video
	Width, Height     int
	FrameRateNum      int
	FrameRateDenom    int
	SampleAspectRatio float64

	// audio
	SampleRate int
	Channels   int

	// shared
	Duration time.Duration
}

// FrameDuration returns 1/frame_rate for video streams that advertise a
// rate, or 0 otherwise, per spec §3's Frame invariant.
func (m StreamMeta) FrameDuration() float64 {
	if m.Kind != KindVideo || m.FrameRateNum <= 0 || m.FrameRateDenom <= 0 {
		return 0
	}
	return float64(m.FrameRateDenom) / float64(m.FrameRateNum)
}

// MaxFrameDuration is the threshold above which a gap between successive
// frame pts is treated as a stream discontinuity rather than legitimate
// pacing (spec §4.7 step 5): 10s for discontinuous/live inputs, 3600s
// otherwise. We treat any stream lacking a fixed frame rate as the
// discontinuous case, matching live/irregular sources.
func (m StreamMeta) MaxFrameDuration() float64 {
	if m.Kind == KindVideo && m.FrameRateNum > 0 {
		return 3600.0
	}
	return 10.0
}

// VideoStreamMeta builds a StreamMeta from a reisen video stream.
func VideoStreamMeta(s *reisen.VideoStream) StreamMeta {
	num, denom := s.FrameRate()
	d, _ := s.Duration()
	return StreamMeta{
		Kind:           KindVideo,
		Width:          s.Width(),
		Height:         s.Height(),
		FrameRateNum:   num,
		FrameRateDenom: denom,
		Duration:       d,
	}
}

// AudioStreamMeta builds a StreamMeta from a reisen audio stream.
func AudioStreamMeta(s *reisen.AudioStream) StreamMeta {
	d, _ := s.Duration()
	return StreamMeta{
		Kind:       KindAudio,
		SampleRate: s.SampleRate(),
		Duration:   d,
	}
}
