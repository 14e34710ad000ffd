package media

import (
	"math"

	"github.com/erparts/reisen"

	"github.com/avplay-go/avplay/internal/refcount"
)

// Frame is spec §3's Frame: decoded payload + format descriptor + pts
// (seconds, may be NaN) + estimated duration + inherited serial +
// refcount. Exactly one of VideoFrame/AudioFrame is set, per Kind; a
// subtitle Frame carries neither (spec treats subtitle presentation as
// out of scope, spec §1/§9, but still queues the decoded event).
type Frame struct {
	handle *refcount.Handle[struct{}]

	Kind     Kind
	Serial   int
	PTS      float64 // seconds; may be NaN
	Duration float64 // seconds

	VideoFrame *reisen.VideoFrame
	AudioFrame *reisen.AudioFrame
}

// NewVideoFrame wraps a decoded video frame. duration defaults to
// 1/frame_rate when the stream advertises one (spec §3).
func NewVideoFrame(f *reisen.VideoFrame, serial int, pts float64, duration float64) *Frame {
	fr := &Frame{Kind: KindVideo, Serial: serial, PTS: pts, Duration: duration, VideoFrame: f}
	fr.handle = refcount.New(struct{}{}, func(struct{}) {})
	return fr
}

// NewAudioFrame wraps a decoded audio frame. duration = nb_samples /
// sample_rate (spec §3).
func NewAudioFrame(f *reisen.AudioFrame, serial int, pts float64, duration float64) *Frame {
	fr := &Frame{Kind: KindAudio, Serial: serial, PTS: pts, Duration: duration, AudioFrame: f}
	fr.handle = refcount.New(struct{}{}, func(struct{}) {})
	return fr
}

// NewSubtitleFrame wraps a subtitle event marker. Presentation is left
// unimplemented (spec §9's open question, resolved in DESIGN.md); only the
// queueing/serial-invalidation machinery is exercised for it.
func NewSubtitleFrame(serial int, pts float64, duration float64) *Frame {
	fr := &Frame{Kind: KindSubtitle, Serial: serial, PTS: pts, Duration: duration}
	fr.handle = refcount.New(struct{}{}, func(struct{}) {})
	return fr
}

// Acquire increments the frame's refcount; ok is false if the frame is
// concurrently being released.
func (f *Frame) Acquire() (*Frame, bool) {
	if _, ok := f.handle.Acquire(); !ok {
		return nil, false
	}
	return f, true
}

// Release decrements the frame's refcount, freeing it when it reaches
// zero.
func (f *Frame) Release() {
	f.handle.Release()
}

// HasValidPTS reports whether PTS is a real timestamp, not NaN.
func (f *Frame) HasValidPTS() bool {
	return !math.IsNaN(f.PTS)
}
