package decode

import (
	"github.com/erparts/reisen"

	"github.com/avplay-go/avplay/internal/media"
)

// NewVideoDecode adapts a reisen video stream to the Decode contract. Each
// call drains exactly one decoded video frame (reisen's ReadVideoFrame
// already performs "submit packet, receive frame" internally; see
// internal/media.Packet's doc comment for why this core doesn't see raw
// compressed payloads for video/audio). frameDuration is the stream's
// 1/frame_rate fallback (spec §3's Frame.duration default).
func NewVideoDecode(stream *reisen.VideoStream, frameDuration float64) Decode {
	return func(pkt *media.Packet) ([]*media.Frame, bool, error) {
		frame, found, err := stream.ReadVideoFrame()
		if err != nil {
			// codec fatal: stop this decoder task (spec §4.5 step 4)
			return nil, true, err
		}
		if !found || frame == nil {
			// packet consumed, no frame produced yet (B-frame reordering)
			return nil, false, nil
		}

		presOffset, err := frame.PresentationOffset()
		if err != nil {
			return nil, false, err
		}
		f := media.NewVideoFrame(frame, pkt.Serial, presOffset.Seconds(), frameDuration)
		return []*media.Frame{f}, false, nil
	}
}
