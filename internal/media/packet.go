package media

import "github.com/avplay-go/avplay/internal/refcount"

// Packet is spec §3's Packet: opaque compressed payload + stream index +
// pts (left to the decoder, which derives it from the stream time base) +
// serial + refcount. The serial is assigned once, when the packet leaves
// the demuxer, and never changes afterwards.
//
// reisen (the demuxer/decoder library this core is built on) conflates
// "read one packet" and "decode one frame" behind Stream.ReadVideoFrame /
// ReadAudioFrame: Media.ReadPacket() only tells us which stream has data
// ready, it doesn't hand back an inspectable, independently-freeable
// packet object. Packet here is therefore a lightweight token: its
// identity (stream kind/index + serial) is what the pipeline needs to
// route and invalidate; its refcount still exists so queue clearing and
// concurrent inspection follow the same acquire/release discipline as
// frames (spec §4.1), even though "releasing" a packet has no underlying
// libav resource to free.
type Packet struct {
	handle *refcount.Handle[struct{}]

	Kind        Kind
	StreamIndex int
	Serial      int
}

// NewPacket creates a packet token with an initial refcount of 1.
func NewPacket(kind Kind, streamIndex, serial int) *Packet {
	p := &Packet{Kind: kind, StreamIndex: streamIndex, Serial: serial}
	p.handle = refcount.New(struct{}{}, func(struct{}) {})
	return p
}

// Acquire increments the packet's refcount; ok is false if the packet is
// concurrently being released.
func (p *Packet) Acquire() (*Packet, bool) {
	if _, ok := p.handle.Acquire(); !ok {
		return nil, false
	}
	return p, true
}

// Release decrements the packet's refcount, freeing it when it reaches
// zero.
func (p *Packet) Release() {
	p.handle.Release()
}
