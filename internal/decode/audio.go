package decode

import (
	"github.com/erparts/reisen"

	"github.com/avplay-go/avplay/internal/media"
)

// bytesPerSample is the PCM frame stride this core assumes for audio
// frames coming out of reisen: 16-bit stereo, matching the L16 format the
// audio presenter feeds to ebiten's audio device (spec §6's "accept only
// S16 native-endian").
const bytesPerSample = 4 // 2 bytes * 2 channels

// NewAudioDecode adapts a reisen audio stream to the Decode contract.
// duration is estimated as nb_samples/sample_rate (spec §3), where
// nb_samples is derived from the decoded frame's byte length since reisen
// doesn't expose a sample count directly.
func NewAudioDecode(stream *reisen.AudioStream, sampleRate int) Decode {
	return func(pkt *media.Packet) ([]*media.Frame, bool, error) {
		frame, found, err := stream.ReadAudioFrame()
		if err != nil {
			return nil, true, err
		}
		if !found || frame == nil {
			return nil, false, nil
		}

		presOffset, err := frame.PresentationOffset()
		if err != nil {
			return nil, false, err
		}

		nbSamples := len(frame.Data()) / bytesPerSample
		duration := 0.0
		if sampleRate > 0 {
			duration = float64(nbSamples) / float64(sampleRate)
		}

		f := media.NewAudioFrame(frame, pkt.Serial, presOffset.Seconds(), duration)
		return []*media.Frame{f}, false, nil
	}
}
