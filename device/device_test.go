package device

import (
	"testing"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/backend/memio"
	"github.com/agalue/maudio/pcm"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, vt backend.VTable) *Context {
	t.Helper()
	ctx, err := NewContext(ContextConfig{Backends: []backend.VTable{vt}})
	require.NoError(t, err)
	return ctx
}

func TestInitRequiresContextAndAtLeastOneDescriptor(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	_, err := Init(Config{})
	require.Error(t, err)

	_, err = Init(Config{Context: ctx})
	require.Error(t, err)
}

func TestInitNegotiatesFormatAndStartsStopsUninit(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	dev, err := Init(Config{
		Context:  ctx,
		Playback: &Descriptor{},
		OnData:   func(*Device, []byte, []byte, int) {},
	})
	require.NoError(t, err)
	require.Equal(t, StateStopped, dev.State())
	require.Equal(t, pcm.FormatF32, dev.Playback().Format)
	require.Equal(t, 2, dev.Playback().Channels)
	require.Equal(t, 48000, dev.Playback().SampleRate)

	require.NoError(t, dev.Start())
	require.Equal(t, StateStarted, dev.State())
	require.NoError(t, dev.Start()) // no-op when already started

	require.NoError(t, dev.Stop())
	require.Equal(t, StateStopped, dev.State())
	require.NoError(t, dev.Stop()) // no-op when already stopped

	require.NoError(t, dev.Uninit())
	require.Equal(t, StateUninitialized, dev.State())
}

func TestStartPropagatesBackendFailureAndRevertsState(t *testing.T) {
	vt := memio.New(memio.Config{FailDeviceStart: true})
	ctx := newTestContext(t, vt)

	dev, err := Init(Config{Context: ctx, Playback: &Descriptor{}})
	require.NoError(t, err)

	err = dev.Start()
	require.Error(t, err)
	require.Equal(t, StateStopped, dev.State())
}

func TestStopOnAlreadyStoppedDeviceIsNoOp(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))
	dev, err := Init(Config{Context: ctx, Capture: &Descriptor{}})
	require.NoError(t, err)

	// stopLocked treats not-started as a no-op success, matching spec §4.J
	// "No-op if already stopped".
	require.NoError(t, dev.Stop())
}

func TestOnDataPassesThroughWhenBothDirectionsPresent(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	var gotOut, gotIn []byte
	var gotFrames int
	dev, err := Init(Config{
		Context:  ctx,
		Playback: &Descriptor{},
		Capture:  &Descriptor{},
		OnData: func(_ *Device, out, in []byte, frameCount int) {
			gotOut, gotIn, gotFrames = out, in, frameCount
		},
	})
	require.NoError(t, err)

	out := make([]byte, 16)
	in := make([]byte, 16)
	dev.onBackendData(out, in, 2)

	require.Equal(t, out, gotOut)
	require.Equal(t, in, gotIn)
	require.Equal(t, 2, gotFrames)
}

func TestDuplexRingCouplesSeparateCaptureAndPlaybackInvocations(t *testing.T) {
	vt := memio.New(memio.Config{})
	ctx := newTestContext(t, vt)

	var gotIn []byte
	dev, err := Init(Config{
		Context:  ctx,
		Playback: &Descriptor{},
		Capture:  &Descriptor{},
		OnData: func(_ *Device, out, in []byte, frameCount int) {
			gotIn = append([]byte(nil), in...)
		},
	})
	require.NoError(t, err)
	require.NotNil(t, dev.duplexRing)

	captured := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dev.onBackendData(nil, captured, 1)

	out := make([]byte, len(captured))
	dev.onBackendData(out, nil, 1)

	require.Equal(t, captured, gotIn)
}

func TestDuplexRingUnderflowZeroFillsSynthesizedInput(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	var gotIn []byte
	dev, err := Init(Config{
		Context:  ctx,
		Playback: &Descriptor{},
		Capture:  &Descriptor{},
		OnData: func(_ *Device, out, in []byte, frameCount int) {
			gotIn = append([]byte(nil), in...)
		},
	})
	require.NoError(t, err)

	out := make([]byte, 8)
	dev.onBackendData(out, nil, 1)

	for _, b := range gotIn {
		require.Equal(t, byte(0), b)
	}
}

func TestDuplexRingOverflowDropsOldestAndReportsXrun(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	var notified backend.NotificationKind
	var notifiedCount int
	dev, err := Init(Config{
		Context:  ctx,
		Playback: &Descriptor{},
		Capture:  &Descriptor{},
		OnData:   func(*Device, []byte, []byte, int) {},
		OnNotify: func(kind backend.NotificationKind, err error) {
			notified = kind
			notifiedCount++
		},
	})
	require.NoError(t, err)

	ringCap := dev.duplexRing.Cap()
	huge := make([]byte, ringCap*2)
	for i := range huge {
		huge[i] = byte(i)
	}
	dev.onBackendData(nil, huge, len(huge)/dev.duplexBytesPerFrame)

	require.Equal(t, backend.NotificationErrored, notified)
	require.GreaterOrEqual(t, notifiedCount, 1)
}

func TestStepRequiresSingleThreadedModeAndStepperCapability(t *testing.T) {
	ctx := newTestContext(t, noStepperVTable{})
	dev, err := Init(Config{Context: ctx, Playback: &Descriptor{}})
	require.NoError(t, err)

	err = dev.Step(false)
	require.Error(t, err)

	dev.cfg.Threading = SingleThreaded
	err = dev.Step(false)
	require.Error(t, err) // noStepperVTable does not implement backend.Stepper
}

func TestHandleRerouteOnlyUpdatesUnspecifiedFields(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	explicit := &Descriptor{
		DeviceID:         backend.DeviceID{Backend: "memio", Opaque: []byte("pinned")},
		Format:           pcm.FormatS16,
		Channels:         1,
		SampleRate:       16000,
		UseDefaultDevice: false,
	}
	dev, err := Init(Config{Context: ctx, Playback: explicit})
	require.NoError(t, err)

	dev.handleReroute()
	require.Equal(t, pcm.FormatS16, dev.Playback().Format)
	require.Equal(t, 1, dev.Playback().Channels)
	require.Equal(t, 16000, dev.Playback().SampleRate)
}

func TestHandleRerouteUpdatesDefaultDescriptorLeftUnspecified(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))

	def := &Descriptor{UseDefaultDevice: true}
	dev, err := Init(Config{Context: ctx, Playback: def})
	require.NoError(t, err)

	dev.handleReroute()
	require.Equal(t, pcm.FormatF32, dev.Playback().Format)
	require.Equal(t, 2, dev.Playback().Channels)
}

func TestOnBackendNotifyStopsDeviceOnErrored(t *testing.T) {
	ctx := newTestContext(t, memio.New(memio.Config{}))
	dev, err := Init(Config{Context: ctx, Playback: &Descriptor{}})
	require.NoError(t, err)
	require.NoError(t, dev.Start())

	dev.onBackendNotify(backend.NotificationErrored, nil)
	require.Equal(t, StateStopped, dev.State())
}
