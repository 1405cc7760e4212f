package memio

import (
	"testing"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/pcm"
	"github.com/stretchr/testify/require"
)

func TestSliceSourceReadStopsAtEndWhenNotLooping(t *testing.T) {
	src := NewSliceSource([]float32{1, 2, 3}, false)
	out := make([]float32, 5)
	n := src.Read(out)
	require.Equal(t, 3, n)
}

func TestSliceSourceLoopsWhenConfigured(t *testing.T) {
	src := NewSliceSource([]float32{1, 2}, true)
	out := make([]float32, 5)
	n := src.Read(out)
	require.Equal(t, 5, n)
	require.Equal(t, []float32{1, 2, 1, 2, 1}, out)
}

func TestSliceSinkWrapsAndReportsWritten(t *testing.T) {
	sink := NewSliceSink(2, 1)
	n := sink.Write([]float32{1, 2, 3})
	require.Equal(t, 3, n)
	require.Equal(t, []float32{1, 2}, sink.Written())
}

func TestContextInitRespectsFailureConfig(t *testing.T) {
	vt := New(Config{FailContextInit: true})
	_, err := vt.ContextInit()
	require.Error(t, err)
}

func TestEnumerateDevicesReportsConfiguredDefault(t *testing.T) {
	vt := New(Config{})
	var seen int
	err := vt.EnumerateDevices(nil, backend.RolePlayback, func(di backend.DeviceInfo) error {
		seen++
		require.Equal(t, backend.RolePlayback, di.Role)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, seen)
}

func TestPumpRoutesSourceThroughCallbackIntoSink(t *testing.T) {
	vt := New(Config{})
	ctx, err := vt.ContextInit()
	require.NoError(t, err)

	var gotFrames int
	handle, _, grantedCapture, err := vt.DeviceInit(ctx,
		&backend.StreamConfig{Format: pcm.FormatF32, Channels: 1, PeriodFrames: 4},
		&backend.StreamConfig{Format: pcm.FormatF32, Channels: 1, PeriodFrames: 4},
		func(out, in []byte, frameCount int) {
			gotFrames = frameCount
			copy(out, in) // passthrough: playback mirrors capture
		}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, grantedCapture.PeriodFrames)

	stream := handle.(*Stream)
	source := NewSliceSource([]float32{0.1, 0.2, 0.3, 0.4}, false)
	sink := NewSliceSink(4, 1)
	stream.Attach(sink, source)

	require.NoError(t, vt.DeviceStart(handle))
	stream.Pump(4)

	require.Equal(t, 4, gotFrames)
	written := sink.Written()
	require.Len(t, written, 4)
	require.InDelta(t, 0.1, written[0], 1e-6)
	require.InDelta(t, 0.4, written[3], 1e-6)
}

func TestStepRequiresStartedStream(t *testing.T) {
	vt := New(Config{})
	ctx, err := vt.ContextInit()
	require.NoError(t, err)

	handle, _, _, err := vt.DeviceInit(ctx,
		&backend.StreamConfig{Format: pcm.FormatF32, Channels: 1, PeriodFrames: 4}, nil,
		func(out, in []byte, frameCount int) {}, nil)
	require.NoError(t, err)

	require.Error(t, vt.Step(handle, false))
	require.NoError(t, vt.DeviceStart(handle))
	require.NoError(t, vt.Step(handle, false))
}
