// Package demux implements the packet grabber (spec §4.4): the single
// task reading packets from the opened input, decoding them, and routing
// the resulting frames to the video/audio frame queues, tagged with the
// packet queue's current serial. Packets of any other stream, subtitles
// included, are dropped.
//
// reisen conflates "read one packet" and "decode one frame": calling
// Media.ReadPacket() stores the packet in the matching stream's internal
// slot, and the stream's ReadVideoFrame/ReadAudioFrame decodes exactly
// that stored packet. There is no independently-held, inspectable packet
// object to hand to a separate decoder goroutine — if anything else
// calls ReadPacket before the matching ReadXFrame runs, the previous
// packet's slot is silently overwritten, and if ReadPacket/ReadXFrame/
// Rewind ever run concurrently on two goroutines, reisen's underlying
// libav contexts race. The teacher's controller_no_audio.go and
// controller_yes_audio.go both read and decode in lockstep on one
// goroutine for exactly this reason (see internalReadVideoFrame /
// internalReadAudioFrame). Grabber.Run follows the same discipline:
// every ReadPacket is immediately followed, on the same goroutine, by
// the matching stream's decode call, before the loop reads another
// packet or applies a pending seek.
package demux

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/erparts/reisen"

	"github.com/avplay-go/avplay/internal/decode"
	"github.com/avplay-go/avplay/internal/media"
	"github.com/avplay-go/avplay/internal/queue"
)

// PacketFullBackoff is the retry sleep used when a destination packet
// queue is momentarily full (spec §4.2: "~100ms for packet queues").
// Since decode follows immediately on the same goroutine, the packet
// token is only ever queued for the instant between push and pop, so
// the grabber itself never leaves the queue full.
const PacketFullBackoff = 100 * time.Millisecond

// FrameFullBackoff is the retry sleep used when a destination frame
// queue is full (spec §4.2: "~1s for frame queues"). Since decoding now
// happens on the grabber's own goroutine, a full frame queue blocks the
// grabber itself rather than a separate decoder task.
const FrameFullBackoff = time.Second

// Queues is the subset of the controller's packet and frame queues the
// grabber reads from and decodes into. A nil frame queue means that
// stream kind was not selected; the grabber drops packets for it instead
// of decoding them.
type Queues struct {
	VideoPackets, AudioPackets, SubtitlePackets *queue.Bounded[*media.Packet]
	VideoFrames, AudioFrames                    *queue.Bounded[*media.Frame]
}

// Decoders holds the per-stream decode functions the grabber calls in
// lockstep with reisen's packet reads. Either may be nil if that stream
// kind was not selected.
type Decoders struct {
	Video decode.Decode
	Audio decode.Decode
}

// SeekRequest carries a pending seek (spec §4.8) for the grabber to pick
// up on its next loop iteration.
type SeekRequest struct {
	TargetSeconds float64
	RelSeconds    float64
	ByBytes       bool
}

// Controller is the subset of controller behavior the grabber needs: a
// way to notice & apply a pending seek, and a way to know it should stop.
type Controller interface {
	// TakeSeekRequest returns a pending seek request and clears it, or
	// ok=false if none is pending.
	TakeSeekRequest() (SeekRequest, bool)
	// ApplySeek performs the seek against the underlying reisen streams
	// and invalidates queues (spec §4.8 steps 1-4). It is provided by the
	// controller because only it knows every selected stream.
	ApplySeek(req SeekRequest) error
}

// Grabber is the packet-grabber-and-decoder task: the sole goroutine
// touching the underlying reisen.Media and its streams.
type Grabber struct {
	media      *reisen.Media
	videoIndex int // -1 if not selected
	audioIndex int

	queues   Queues
	decoders Decoders

	controller Controller
	log        *slog.Logger

	stopped atomic.Bool
}

// NewGrabber builds a grabber. videoIndex/audioIndex are the reisen
// stream indices selected for decoding, or -1 if a kind was
// disabled/unavailable.
func NewGrabber(m *reisen.Media, videoIndex, audioIndex int, queues Queues, decoders Decoders, controller Controller, log *slog.Logger) *Grabber {
	if log == nil {
		log = slog.Default()
	}
	return &Grabber{
		media:      m,
		videoIndex: videoIndex,
		audioIndex: audioIndex,
		queues:     queues,
		decoders:   decoders,
		controller: controller,
		log:        log.With("component", "grabber"),
	}
}

// Stopped reports whether the grabber has exited.
func (g *Grabber) Stopped() bool { return g.stopped.Load() }

// Run is the grabber's main loop (spec §4.4, folding in §4.5's decode
// step): pump pending seeks, read one packet, decode it in lockstep on
// this same goroutine, route the resulting frames by stream, back off on
// a full frame queue, exit on EOF or fatal error.
func (g *Grabber) Run(ctx context.Context) error {
	defer g.stopped.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if req, ok := g.controller.TakeSeekRequest(); ok {
			if err := g.controller.ApplySeek(req); err != nil {
				g.log.Warn("seek failed, continuing from current position", "error", err)
			}
		}

		packet, found, err := g.media.ReadPacket()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			g.log.Info("demuxer stopped", "error", err)
			return err
		}
		if !found {
			// end of file
			g.log.Info("end of stream")
			return nil
		}

		kind, pq, fq, dec := g.route(packet)
		if fq == nil {
			// stream not selected; nothing to release since reisen
			// doesn't hand us an inspectable packet object (see
			// internal/media.Packet's doc comment)
			continue
		}

		pkt := media.NewPacket(kind, packet.StreamIndex(), pq.Serial())
		if err := g.pushPacket(ctx, pq, pkt); err != nil {
			return err
		}

		// Immediately decode the packet we just queued, on this same
		// goroutine: this is the lockstep step reisen requires (see the
		// package doc). The packet queue still exists so seeks can
		// invalidate in-flight tokens by serial, same as the frame
		// queues, but nothing is ever left queued across goroutines.
		popped, ok := pq.TryPopHead()
		if !ok {
			// a concurrent seek cleared the queue between our push and
			// pop; the packet is already stale, move on
			continue
		}

		frames, fatal, err := dec(popped)
		popped.Release()
		if err != nil {
			g.log.Warn("decode error", "error", err)
			if fatal {
				return err
			}
			continue
		}
		if fatal {
			return nil
		}

		for _, f := range frames {
			if err := g.pushFrame(ctx, fq, f); err != nil {
				return err
			}
		}
	}
}

func (g *Grabber) pushPacket(ctx context.Context, q *queue.Bounded[*media.Packet], p *media.Packet) error {
	for !q.TryPushTail(p) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(PacketFullBackoff):
		}
	}
	return nil
}

func (g *Grabber) pushFrame(ctx context.Context, q *queue.Bounded[*media.Frame], f *media.Frame) error {
	for !q.TryPushTail(f) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(FrameFullBackoff):
		}
	}
	return nil
}

func (g *Grabber) route(packet *reisen.Packet) (media.Kind, *queue.Bounded[*media.Packet], *queue.Bounded[*media.Frame], decode.Decode) {
	switch packet.Type() {
	case reisen.StreamVideo:
		if packet.StreamIndex() == g.videoIndex {
			return media.KindVideo, g.queues.VideoPackets, g.queues.VideoFrames, g.decoders.Video
		}
	case reisen.StreamAudio:
		if packet.StreamIndex() == g.audioIndex {
			return media.KindAudio, g.queues.AudioPackets, g.queues.AudioFrames, g.decoders.Audio
		}
	}
	return 0, nil, nil, nil
}
