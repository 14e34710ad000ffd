// Package audio implements the audio presenter (spec §4.6): an io.Reader
// the ebiten audio device pulls PCM from, draining decoded frames from
// the audio frame queue, mixing in volume/mute, and setting the audio
// clock from each frame's end timestamp. The number of samples served is
// never corrected against the master clock.
package audio

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/mclock"
	"github.com/avplay-go/avplay/internal/queue"
)

// BytesPerSample matches decode.bytesPerSample: 16-bit stereo PCM, the
// only format this core negotiates with the audio device (spec §6).
const BytesPerSample = 4

// SampleCorrectionPercentMax is the original implementation's
// SAMPLE_CORRECTION_PERCENT_MAX: audio-to-master resampling never
// stretches/shrinks a buffer by more than this fraction (spec §11
// supplement).
const SampleCorrectionPercentMax = 0.10

// VolumeStepDB is SDL_VOLUME_STEP from the original sources: one
// volume-adjustment step corresponds to 0.75 dB (spec §11 supplement).
const VolumeStepDB = 0.75

// MaxVolume is SDL mixer's SDL_MIX_MAXVOLUME, the internal volume scale
// this core's 0-100 CLI/UI volume is mapped onto.
const MaxVolume = 128

// Presenter implements io.Reader for the ebiten audio device's pull
// callback, matching the teacher's videoWithAudioController.Read shape.
type Presenter struct {
	mu sync.Mutex

	Frames     *queue.Bounded[*media.Frame]
	AudioClock *mclock.Clock
	SampleRate int

	// EffectiveMode and MasterClockPTS are set by the controller; Read
	// does not consult them.
	EffectiveMode  mclock.SyncMode
	MasterClockPTS func() float64

	Muted  bool
	Volume float64 // 0.0-1.0

	Paused func() bool

	// SyncExternal, if set, is called with the audio clock after it is
	// updated so the external clock can track it when audio isn't the
	// effective master (mirrors the video presenter's hook).
	SyncExternal func(slave *mclock.Clock)

	Log *slog.Logger

	leftover []byte
	serial   int
}

// NewPresenter builds an audio presenter at 1.0 volume, unmuted.
func NewPresenter(frames *queue.Bounded[*media.Frame], audioClock *mclock.Clock, sampleRate int, log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{
		Frames:     frames,
		AudioClock: audioClock,
		SampleRate: sampleRate,
		Volume:     1.0,
		Log:        log.With("component", "audio-presenter"),
	}
}

// Read implements io.Reader, serving decoded PCM to the ebiten audio
// device. It never waits for frames: an empty queue or a paused
// controller yields silence for the rest of buf.
func (p *Presenter) Read(buf []byte) (int, error) {
	if rem := len(buf) % BytesPerSample; rem != 0 {
		buf = buf[:len(buf)-rem]
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var served int
	if len(p.leftover) > 0 {
		n := copy(buf, p.leftover)
		p.leftover = p.leftover[n:]
		buf = buf[n:]
		served += n
	}

	for len(buf) > 0 {
		if p.Paused != nil && p.Paused() {
			// serve silence while paused rather than blocking the device
			for i := range buf {
				buf[i] = 0
			}
			return served + len(buf), nil
		}

		frame, ok := p.Frames.TryPopHead()
		if !ok {
			// starvation: serve silence for the remainder of this buffer
			// rather than blocking the audio device thread
			for i := range buf {
				buf[i] = 0
			}
			return served + len(buf), nil
		}

		if frame.Kind != media.KindAudio || frame.AudioFrame == nil {
			frame.Release()
			continue
		}

		data := p.decodeOneFrame(frame)
		frame.Release()

		n := copy(buf, data)
		buf = buf[n:]
		served += n
		if n < len(data) {
			p.leftover = append(p.leftover[:0], data[n:]...)
		}
	}

	return served, nil
}

// decodeOneFrame mixes volume/mute into a frame's PCM and advances the
// audio clock from its presentation timestamp, matching spec §4.6's
// decode_one_audio_frame.
func (p *Presenter) decodeOneFrame(f *media.Frame) []byte {
	data := f.AudioFrame.Data()
	out := data
	if p.Muted {
		out = make([]byte, len(data))
	} else if p.Volume < 0.999 {
		out = mixVolume(data, p.Volume)
	}

	if f.HasValidPTS() {
		// spec §4.6 step 6: audio_clock tracks the frame's *end*, not its
		// start, so it reflects what the device will actually be playing
		// once this frame's samples drain.
		p.AudioClock.Set(f.PTS+f.Duration, f.Serial)
		if p.SyncExternal != nil {
			p.SyncExternal(p.AudioClock)
		}
	}
	p.serial = f.Serial
	return out
}

// mixVolume scales 16-bit signed little-endian stereo PCM by volume in
// [0,1], matching the teacher's audioPlayer.SetVolume scale but applied
// in software since this core mixes ahead of the device player.
func mixVolume(data []byte, volume float64) []byte {
	out := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		scaled := int32(float64(sample) * volume)
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		out[i] = byte(uint16(scaled))
		out[i+1] = byte(uint16(scaled) >> 8)
	}
	return out
}

// clipWantedSamples implements the original's wanted-sample-count clip
// formula for resampling the audio buffer to chase the master clock when
// audio is not the effective master (spec §11 supplement): the diff
// between the audio clock and master clock is clamped to
// SampleCorrectionPercentMax of the buffer's sample count before being
// applied, so a single correction step never produces an audible glitch.
// This core doesn't resample (device and stream sample rates are
// required to match, as in the teacher), and Read does not call this
// function.
func clipWantedSamples(nbSamples int, clockDiff float64, sampleRate int) int {
	if sampleRate <= 0 || nbSamples <= 0 {
		return nbSamples
	}
	wanted := nbSamples + int(clockDiff*float64(sampleRate))
	minSamples := int(float64(nbSamples) * (1 - SampleCorrectionPercentMax))
	maxSamples := int(float64(nbSamples) * (1 + SampleCorrectionPercentMax))
	if wanted < minSamples {
		wanted = minSamples
	}
	if wanted > maxSamples {
		wanted = maxSamples
	}
	return wanted
}

// ensure io.Reader is satisfied
var _ io.Reader = (*Presenter)(nil)
