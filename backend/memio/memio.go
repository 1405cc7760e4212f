// Package memio implements backend.VTable as a pure-Go, allocation-free
// loopback backend: playback frames are decoded and written into a
// caller-supplied Sink, capture frames are read from a caller-supplied
// Source and encoded back out, and no real hardware or OS audio API is ever
// touched (spec §4.K "backend/memio... used by every device test so the
// test suite never touches real hardware"). It plays the same role for this
// repository's test suite that original_source's tests/deviceio/deviceio.c
// harness plays for miniaudio's own C test suite: a backend whose data
// actually flows somewhere inspectable instead of a stub that only records
// that it was called.
package memio

import (
	"sync"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
)

// Sink receives playback frames decoded to interleaved f32, one Write call
// per period. Implementations must not allocate (spec §4.K).
type Sink interface {
	Write(frames []float32) (framesWritten int)
}

// Source supplies capture frames as interleaved f32, one Read call per
// period. Read fills frames and returns the number of frames actually
// produced; fewer than len(frames)/channels signals exhaustion.
// Implementations must not allocate (spec §4.K).
type Source interface {
	Read(frames []float32) (framesRead int)
}

// SliceSink is a Sink writing into a fixed, preallocated []float32 backing
// array — the allocation-free stand-in for "play this out loud" a test can
// inspect afterward. Samples of one Write that do not fit in the remaining
// space are dropped; once the array is full, the next Write starts again
// at the front.
type SliceSink struct {
	mu   sync.Mutex
	buf  []float32
	next int
}

// NewSliceSink preallocates a sink with room for capacityFrames frames of
// channels samples each.
func NewSliceSink(capacityFrames, channels int) *SliceSink {
	return &SliceSink{buf: make([]float32, capacityFrames*channels)}
}

func (s *SliceSink) Write(frames []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.buf) {
		s.next = 0
	}
	n := copy(s.buf[s.next:], frames)
	s.next += n
	return len(frames)
}

// Written returns a copy of the samples written since the sink last
// started again at the front, in write order. Allocates; test-only.
func (s *SliceSink) Written() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, s.next)
	copy(out, s.buf[:s.next])
	return out
}

// SliceSource is a Source reading from a fixed []float32, optionally
// looping back to the start once exhausted.
type SliceSource struct {
	mu   sync.Mutex
	data []float32
	pos  int
	loop bool
}

// NewSliceSource wraps data as a Source. If loop is false, Read returns
// fewer frames than requested once data is exhausted and zero thereafter.
func NewSliceSource(data []float32, loop bool) *SliceSource {
	return &SliceSource{data: data, loop: loop}
}

func (s *SliceSource) Read(frames []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return 0
	}
	n := 0
	for n < len(frames) {
		if s.pos >= len(s.data) {
			if !s.loop {
				break
			}
			s.pos = 0
		}
		frames[n] = s.data[s.pos]
		n++
		s.pos++
	}
	return n
}

// Config configures a VTable's simulated failure modes and enumerated
// devices.
type Config struct {
	Name            string // backend name reported by BackendInfo; defaults to "memio"
	FailContextInit bool
	FailDeviceStart bool
	Devices         []backend.DeviceInfo // defaults to one stereo f32 default device
}

// VTable implements backend.VTable (and backend.Stepper) purely in Go over
// Sink/Source loopback, with no dependency on any real audio API.
type VTable struct {
	cfg Config

	mu      sync.Mutex
	streams map[*Stream]struct{}
}

// New returns a memio-backed backend.VTable.
func New(cfg Config) *VTable {
	if cfg.Name == "" {
		cfg.Name = "memio"
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = []backend.DeviceInfo{{
			ID:   backend.DeviceID{Backend: cfg.Name, Opaque: []byte("default")},
			Name: "memio loopback device",
			Formats: []backend.NativeDataFormat{{
				Format: pcm.FormatF32, Channels: 2, MinRate: 8000, MaxRate: 192000, IsDefault: true,
			}},
		}}
	}
	return &VTable{cfg: cfg}
}

func (v *VTable) BackendInfo() backend.Info { return backend.Info{Name: v.cfg.Name} }

func (v *VTable) ContextInit() (backend.ContextHandle, error) {
	if v.cfg.FailContextInit {
		return nil, maresult.New("memio", maresult.CodeNoBackend, "memio configured to fail ContextInit")
	}
	return v, nil
}

func (v *VTable) ContextUninit(backend.ContextHandle) error { return nil }

func (v *VTable) EnumerateDevices(_ backend.ContextHandle, role backend.Role, fn func(backend.DeviceInfo) error) error {
	for _, d := range v.cfg.Devices {
		d.Role = role
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (v *VTable) GetDeviceInfo(ctx backend.ContextHandle, id backend.DeviceID, role backend.Role) (backend.DeviceInfo, error) {
	var found backend.DeviceInfo
	ok := false
	err := v.EnumerateDevices(ctx, role, func(di backend.DeviceInfo) error {
		if !ok && (len(id.Opaque) == 0 || string(di.ID.Opaque) == string(id.Opaque)) {
			found, ok = di, true
		}
		return nil
	})
	if err != nil {
		return backend.DeviceInfo{}, err
	}
	if !ok {
		return backend.DeviceInfo{}, maresult.New("memio", maresult.CodeDeviceTypeNotSupported, "no matching device")
	}
	return found, nil
}

func fillDefaults(c *backend.StreamConfig) backend.StreamConfig {
	out := *c
	if !out.Format.Valid() {
		out.Format = pcm.FormatF32
	}
	if out.Channels <= 0 {
		out.Channels = 2
	}
	if out.SampleRate <= 0 {
		out.SampleRate = 48000
	}
	if out.PeriodFrames <= 0 {
		out.PeriodFrames = 480
	}
	if out.PeriodCount <= 0 {
		out.PeriodCount = 3
	}
	return out
}

// Stream is the backend.StreamHandle memio hands back from DeviceInit.
// Tests drive it either directly (Push, mirroring a real backend's audio
// thread invoking the data callback) or through an attached Sink/Source
// pair (Attach + Pump, exercising the loopback path spec §4.K describes).
type Stream struct {
	vt      *VTable
	data    backend.DataCallback
	notify  backend.NotificationCallback
	started bool

	playback *backend.StreamConfig
	capture  *backend.StreamConfig

	sink   Sink
	source Source

	// scratch is grown once to the largest frameCount Pump has seen and
	// reused after that, so Pump's steady-state calls don't allocate.
	scratchFrames int
	captureBytes  []byte
	captureF32    []float32
	playbackBytes []byte
	playbackF32   []float32
}

// Attach installs the Sink/Source Pump drains into and fills from. Either
// may be nil to leave that direction untouched (the data callback still
// receives zero-filled or discarded buffers as appropriate).
func (s *Stream) Attach(sink Sink, source Source) {
	s.sink = sink
	s.source = source
}

// Push invokes the stream's data callback directly with caller-owned
// buffers, the way a real backend's audio thread would -- the same shape
// the teacher's old fakeStream.push gave device package tests.
func (s *Stream) Push(out, in []byte, frameCount int) {
	s.data(out, in, frameCount)
}

// PushNotify invokes the stream's notification callback, if one was
// installed.
func (s *Stream) PushNotify(kind backend.NotificationKind, err error) {
	if s.notify != nil {
		s.notify(kind, err)
	}
}

func (s *Stream) ensureScratch(frameCount int) {
	if frameCount <= s.scratchFrames {
		return
	}
	s.scratchFrames = frameCount
	if s.capture != nil {
		s.captureBytes = make([]byte, frameCount*s.capture.Channels*s.capture.Format.BytesPerSample())
		s.captureF32 = make([]float32, frameCount*s.capture.Channels)
	}
	if s.playback != nil {
		s.playbackBytes = make([]byte, frameCount*s.playback.Channels*s.playback.Format.BytesPerSample())
		s.playbackF32 = make([]float32, frameCount*s.playback.Channels)
	}
}

// Pump drives one period end-to-end through the attached Source/Sink: it
// reads frameCount frames from source (zero-filling past exhaustion),
// invokes the data callback, and writes whatever playback frames were
// produced into sink. This is the loopback path spec §4.K's backend/memio
// entry describes; use Push instead for tests that want to hand the
// callback specific raw bytes.
func (s *Stream) Pump(frameCount int) {
	s.ensureScratch(frameCount)

	var outBytes, inBytes []byte
	if s.playback != nil {
		outBytes = s.playbackBytes[:frameCount*s.playback.Channels*s.playback.Format.BytesPerSample()]
	}
	if s.capture != nil {
		inBytes = s.captureBytes[:frameCount*s.capture.Channels*s.capture.Format.BytesPerSample()]
		n := 0
		if s.source != nil {
			frames := s.captureF32[:frameCount*s.capture.Channels]
			n = s.source.Read(frames)
			pcm.EncodeF32(s.capture.Format, s.capture.Channels, frames, inBytes, n)
		}
		for i := n * s.capture.Channels * s.capture.Format.BytesPerSample(); i < len(inBytes); i++ {
			inBytes[i] = 0
		}
	}

	s.data(outBytes, inBytes, frameCount)

	if s.playback != nil && s.sink != nil {
		frames := s.playbackF32[:frameCount*s.playback.Channels]
		if err := pcm.DecodeF32(s.playback.Format, s.playback.Channels, outBytes, frames, frameCount); err == nil {
			s.sink.Write(frames)
		}
	}
}

func (v *VTable) DeviceInit(ctx backend.ContextHandle, playback, capture *backend.StreamConfig, data backend.DataCallback, notify backend.NotificationCallback) (backend.StreamHandle, backend.StreamConfig, backend.StreamConfig, error) {
	var grantedPlayback, grantedCapture backend.StreamConfig
	s := &Stream{vt: v, data: data, notify: notify}
	if playback != nil {
		grantedPlayback = fillDefaults(playback)
		s.playback = &grantedPlayback
	}
	if capture != nil {
		grantedCapture = fillDefaults(capture)
		s.capture = &grantedCapture
	}
	v.mu.Lock()
	if v.streams == nil {
		v.streams = map[*Stream]struct{}{}
	}
	v.streams[s] = struct{}{}
	v.mu.Unlock()
	return s, grantedPlayback, grantedCapture, nil
}

func (v *VTable) DeviceUninit(h backend.StreamHandle) error {
	s := h.(*Stream)
	v.mu.Lock()
	delete(v.streams, s)
	v.mu.Unlock()
	return nil
}

func (v *VTable) DeviceStart(h backend.StreamHandle) error {
	if v.cfg.FailDeviceStart {
		return maresult.New("memio", maresult.CodeFailedToOpenBackendDevice, "memio configured to fail DeviceStart")
	}
	h.(*Stream).started = true
	return nil
}

func (v *VTable) DeviceStop(h backend.StreamHandle) error {
	h.(*Stream).started = false
	return nil
}

func (v *VTable) DeviceName(h backend.StreamHandle, role backend.Role) (string, error) {
	return v.cfg.Name + "-" + role.String(), nil
}

// Step implements backend.Stepper by pumping exactly one period from the
// stream's attached Source/Sink (or zero-filling/discarding the direction
// that has none attached), supporting device.Device.Step in single-threaded
// mode without a real backend. blocking is accepted for interface
// compatibility; memio never has anything to wait for.
func (v *VTable) Step(h backend.StreamHandle, blocking bool) error {
	s := h.(*Stream)
	if !s.started {
		return maresult.New("memio", maresult.CodeInvalidOperation, "Step requires a started stream")
	}
	period := 0
	if s.playback != nil {
		period = s.playback.PeriodFrames
	} else if s.capture != nil {
		period = s.capture.PeriodFrames
	}
	if period <= 0 {
		period = 480
	}
	s.Pump(period)
	return nil
}

// Wakeup is a no-op: memio's Step never blocks, so there's nothing to
// unblock (spec §5 "the only cancellation primitive is device_wakeup").
func (v *VTable) Wakeup(h backend.StreamHandle) error {
	return nil
}
