package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketAcquireReleaseTracksRefcount(t *testing.T) {
	p := NewPacket(KindVideo, 0, 7)
	require.EqualValues(t, 1, p.handle.Refcount())

	p2, ok := p.Acquire()
	require.True(t, ok)
	require.Same(t, p, p2)
	require.EqualValues(t, 2, p.handle.Refcount())

	p.Release()
	p2.Release()
	require.EqualValues(t, 0, p.handle.Refcount())
}

func TestFrameHasValidPTS(t *testing.T) {
	f := NewVideoFrame(nil, 0, 1.5, 0.04)
	require.True(t, f.HasValidPTS())

	nanFrame := NewAudioFrame(nil, 0, nanValue(), 0)
	require.False(t, nanFrame.HasValidPTS())
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
