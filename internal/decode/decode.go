// Package decode supplies the per-stream decode functions the packet
// grabber calls in lockstep with reisen's packet reads (spec §4.5):
// reisen conflates "read one packet" and "decode one frame" behind
// Stream.ReadVideoFrame/ReadAudioFrame, so decoding cannot be split onto
// a goroutine separate from the one calling Media.ReadPacket without
// racing reisen's per-stream decode state (see internal/demux.Grabber).
package decode

import "github.com/avplay-go/avplay/internal/media"

// Decode is supplied per stream kind: given the packet token that was
// just read for this stream, it must decode zero or more frames and
// return them tagged with the packet's serial. Decode may return a
// transient error (logged and skipped) or report done=true on a fatal
// codec error that should stop the grabber.
type Decode func(pkt *media.Packet) (frames []*media.Frame, done bool, err error)
