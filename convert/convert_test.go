package convert

import (
	"testing"

	"github.com/agalue/maudio/pcm"
	"github.com/agalue/maudio/resample"
	"github.com/stretchr/testify/require"
)

func stereoF32(t *testing.T) pcm.Layout {
	t.Helper()
	l, err := pcm.NewLayout(2, nil)
	require.NoError(t, err)
	return l
}

func TestIdentityCompositionCollapsesToCopy(t *testing.T) {
	layout := stereoF32(t)
	dc, err := Build(Config{
		InFormat: pcm.FormatF32, InLayout: layout, InRate: 48000,
		OutFormat: pcm.FormatF32, OutLayout: layout, OutRate: 48000,
	})
	require.NoError(t, err)

	in := make([]byte, 4*4) // 4 frames * 2ch * 4 bytes
	for i := range in {
		in[i] = byte(i)
	}
	out := make([]byte, len(in))

	consumed, produced, err := dc.Process(in, 4, out, 4)
	require.NoError(t, err)
	require.Equal(t, 4, consumed)
	require.Equal(t, 4, produced)
	require.Equal(t, in, out)
}

func TestRequiredInputFrameCountIsDeterministic(t *testing.T) {
	mono, err := pcm.NewLayout(1, nil)
	require.NoError(t, err)

	dc, err := Build(Config{
		InFormat: pcm.FormatF32, InLayout: mono, InRate: 44100,
		OutFormat: pcm.FormatF32, OutLayout: mono, OutRate: 48000,
		ResampleAlgorithm: resample.AlgorithmLinear,
	})
	require.NoError(t, err)

	a := dc.RequiredInputFrameCount(1000)
	b := dc.RequiredInputFrameCount(1000)
	require.Equal(t, a, b)
	require.Greater(t, a, 0)
}

func TestFlushIsNoopForIdentityConversion(t *testing.T) {
	layout := stereoF32(t)
	dc, err := Build(Config{
		InFormat: pcm.FormatF32, InLayout: layout, InRate: 48000,
		OutFormat: pcm.FormatF32, OutLayout: layout, OutRate: 48000,
	})
	require.NoError(t, err)

	out := make([]byte, 64)
	produced, err := dc.Flush(out, 4)
	require.NoError(t, err)
	require.Equal(t, 0, produced)
}

func TestFlushDrainsResamplerTail(t *testing.T) {
	mono, err := pcm.NewLayout(1, nil)
	require.NoError(t, err)

	dc, err := Build(Config{
		InFormat: pcm.FormatF32, InLayout: mono, InRate: 1,
		OutFormat: pcm.FormatF32, OutLayout: mono, OutRate: 4,
		ResampleAlgorithm: resample.AlgorithmLinear,
	})
	require.NoError(t, err)

	in := make([]byte, 3*4)
	out := make([]byte, 16*4)
	_, produced, err := dc.Process(in, 3, out, 16)
	require.NoError(t, err)
	require.Greater(t, produced, 0)

	tail := make([]byte, 8*4)
	tailProduced, err := dc.Flush(tail, 8)
	require.NoError(t, err)
	require.GreaterOrEqual(t, tailProduced, 0)
}

func TestFormatAndChannelConversion(t *testing.T) {
	stereo := stereoF32(t)
	mono, err := pcm.NewLayout(1, nil)
	require.NoError(t, err)

	dc, err := Build(Config{
		InFormat: pcm.FormatS16, InLayout: stereo, InRate: 48000,
		OutFormat: pcm.FormatF32, OutLayout: mono, OutRate: 48000,
	})
	require.NoError(t, err)
	dc.PreallocateFrames(16)

	in := make([]byte, 4*2*2) // 4 frames, stereo s16
	out := make([]byte, 4*1*4)
	consumed, produced, err := dc.Process(in, 4, out, 4)
	require.NoError(t, err)
	require.Equal(t, 4, consumed)
	require.Equal(t, 4, produced)
}
