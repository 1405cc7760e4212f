package device

import (
	"sync"
	"sync/atomic"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/malog"
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
	"github.com/agalue/maudio/ringbuf"
)

// ThreadingMode selects who drives the data callback (spec §4.J).
type ThreadingMode int

const (
	// MultiThreaded: the backend (or the engine) spawns an audio thread
	// that invokes the data callback. Start returns once that thread is
	// running; Stop returns once it has drained.
	MultiThreaded ThreadingMode = iota
	// SingleThreaded: no thread is spawned. The application drives
	// progress by calling Device.Step on a thread of its own choosing.
	SingleThreaded
)

// State is the device lifecycle state machine (spec §4.J):
//
//	uninitialized --init--> stopped
//	stopped --start--> starting --(backend ready)--> started
//	started --stop--> stopping --(drain)--> stopped
//	any --uninit--> uninitialized
type State int32

const (
	StateUninitialized State = iota
	StateStopped
	StateStarting
	StateStarted
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	default:
		return "unknown-state"
	}
}

// DataCallback is the application's realtime callback (spec §4.J
// "Callback contract"). For playback, in is nil; for capture, out is nil;
// for duplex, both are non-nil and refer to distinct buffers of the same
// frameCount. frameCount may be smaller than the configured period; the
// callback must not assume a fixed value.
//
// realtime-safe requirement on the implementation: must not block,
// allocate, or take contended locks (spec §4.J/§5).
type DataCallback func(d *Device, out, in []byte, frameCount int)

// NotificationCallback receives asynchronous device events, delivered
// synchronously from whichever thread observed them (spec §4.J).
type NotificationCallback func(kind backend.NotificationKind, err error)

// Config describes a Device to be opened (spec §3 "Device").
type Config struct {
	Context      *Context
	Playback     *Descriptor // nil if not opening a playback stream
	Capture      *Descriptor // nil if not opening a capture stream
	Threading    ThreadingMode
	OnData       DataCallback
	OnNotify     NotificationCallback
	// DuplexRingPeriods sizes the capture->playback coupling ring, in
	// multiples of the capture period, used only when the backend
	// delivers capture and playback as separate invocations (spec §4.J
	// "Duplex coupling"). Defaults to 4 periods of headroom if <= 0.
	DuplexRingPeriods int
}

// Device is a realtime audio stream: open, start/stop/step, with duplex
// coupling and reroute handling (spec §3/§4.J). It generalizes the
// teacher's Capturer and Player -- each a standalone malgo wrapper with its
// own context and lock-free ring -- into one backend-agnostic type whose
// ring buffer is used only for duplex coupling, not for basic
// capture/playback (the backend vtable delivers those directly to
// DataCallback).
type Device struct {
	ctx    *Context
	cfg    Config
	handle backend.StreamHandle

	mu    sync.Mutex // serializes Init/Start/Stop/Uninit; the audio thread never takes this (spec §5)
	state atomic.Int32

	playback *Descriptor
	capture  *Descriptor

	// duplexRing couples capture->playback when the backend invokes the
	// data callback separately for each direction (spec §4.J). Allocated
	// whenever both directions are open; a combined duplex invocation
	// bypasses it.
	duplexRing          *ringbuf.Ring
	duplexRingBuf       []byte // backing storage, kept to hand back to ctx.Free on Uninit
	duplexBytesPerFrame int
	xrunReported        atomic.Bool
	// synthInBuf is the scratch buffer onBackendData reads duplex-ring
	// content into for a playback-only callback. Sized once in
	// setupDuplexRing to the configured period so the realtime path never
	// allocates (spec §5).
	synthInBuf []byte

	log *malog.Bus
}

// Init opens the backend stream(s) described by cfg. On success the device
// is in StateStopped. On failure, no partial state remains (spec §7
// "Fatal init errors").
func Init(cfg Config) (*Device, error) {
	if cfg.Context == nil {
		return nil, maresult.New("device", maresult.CodeInvalidArgs, "context required")
	}
	if cfg.Playback == nil && cfg.Capture == nil {
		return nil, maresult.New("device", maresult.CodeInvalidArgs, "at least one of Playback/Capture required")
	}

	d := &Device{ctx: cfg.Context, cfg: cfg, log: cfg.Context.log}
	d.state.Store(int32(StateUninitialized))

	var playbackReq, captureReq *backend.StreamConfig
	if cfg.Playback != nil {
		d.playback = &Descriptor{}
		*d.playback = *cfg.Playback
		rc := d.playback.requestConfig()
		playbackReq = &rc
	}
	if cfg.Capture != nil {
		d.capture = &Descriptor{}
		*d.capture = *cfg.Capture
		rc := d.capture.requestConfig()
		captureReq = &rc
	}

	handle, grantedPlayback, grantedCapture, err := cfg.Context.vtable.DeviceInit(
		cfg.Context.handle, playbackReq, captureReq, d.onBackendData, d.onBackendNotify)
	if err != nil {
		return nil, maresult.Wrap("device", maresult.CodeFailedToOpenBackendDevice, "backend device_init failed", err)
	}
	d.handle = handle
	if d.playback != nil {
		d.playback.applyGranted(grantedPlayback)
	}
	if d.capture != nil {
		d.capture.applyGranted(grantedCapture)
	}

	if d.playback != nil && d.capture != nil {
		d.setupDuplexRing()
	}

	d.state.Store(int32(StateStopped))
	return d, nil
}

func (d *Device) setupDuplexRing() {
	bpf, err := pcm.BytesPerFrame(d.capture.Format, d.capture.Channels)
	if err != nil || bpf == 0 {
		return
	}
	periods := d.cfg.DuplexRingPeriods
	if periods <= 0 {
		periods = 4
	}
	period := d.capture.PeriodFrames
	if period <= 0 {
		period = 480
	}
	d.duplexBytesPerFrame = bpf

	// Ring/synth-in backing storage is requested through the Context's
	// AllocCallbacks (spec §3 "Context") so a caller can swap in a tracked
	// pool in tests; both are sized once here and never again from the
	// audio thread.
	ringBytes := ringbuf.RoundUpPow2(bpf * period * periods)
	if ringBuf, err := d.ctx.Allocate(ringBytes); err == nil {
		if r, err := ringbuf.NewFrom(ringBuf); err == nil {
			d.duplexRing = r
			d.duplexRingBuf = ringBuf
		}
	}
	if d.duplexRing == nil {
		d.duplexRing = ringbuf.New(ringBytes)
	}

	if synthBuf, err := d.ctx.Allocate(bpf * period); err == nil {
		d.synthInBuf = synthBuf
	} else {
		d.synthInBuf = make([]byte, bpf*period)
	}
}

// Uninit closes the backend stream. Stops first if still started.
func (d *Device) Uninit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if State(d.state.Load()) == StateStarted {
		if err := d.stopLocked(); err != nil {
			return err
		}
	}
	if State(d.state.Load()) == StateUninitialized {
		return nil
	}
	if err := d.ctx.vtable.DeviceUninit(d.handle); err != nil {
		return err
	}
	if d.duplexRingBuf != nil {
		d.ctx.Free(d.duplexRingBuf)
		d.duplexRingBuf = nil
	}
	if d.synthInBuf != nil {
		d.ctx.Free(d.synthInBuf)
		d.synthInBuf = nil
	}
	d.state.Store(int32(StateUninitialized))
	return nil
}

// Start transitions stopped->starting->started. No-op if already started
// (spec §4.J).
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch State(d.state.Load()) {
	case StateStarted:
		return nil
	case StateStopped:
		// proceed
	default:
		return maresult.New("device", maresult.CodeInvalidOperation, "start requires stopped state")
	}
	d.state.Store(int32(StateStarting))
	if err := d.ctx.vtable.DeviceStart(d.handle); err != nil {
		d.state.Store(int32(StateStopped))
		return maresult.Wrap("device", maresult.CodeFailedToOpenBackendDevice, "backend device_start failed", err)
	}
	d.state.Store(int32(StateStarted))
	return nil
}

// Stop transitions started->stopping->stopped. No-op if already stopped
// (spec §4.J).
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *Device) stopLocked() error {
	switch State(d.state.Load()) {
	case StateStopped, StateUninitialized:
		return nil
	case StateStarted:
		// proceed
	default:
		return maresult.New("device", maresult.CodeInvalidOperation, "stop requires started state")
	}
	d.state.Store(int32(StateStopping))
	if err := d.ctx.vtable.DeviceStop(d.handle); err != nil {
		return maresult.Wrap("device", maresult.CodeInvalidOperation, "backend device_stop failed", err)
	}
	d.state.Store(int32(StateStopped))
	return nil
}

// State returns the device's current lifecycle state.
func (d *Device) State() State { return State(d.state.Load()) }

// Playback returns the negotiated playback descriptor, or nil if this
// device has no playback side.
func (d *Device) Playback() *Descriptor { return d.playback }

// Capture returns the negotiated capture descriptor, or nil if this device
// has no capture side.
func (d *Device) Capture() *Descriptor { return d.capture }

// GetName returns the backend's human-readable name for the given role.
func (d *Device) GetName(role backend.Role) (string, error) {
	return d.ctx.vtable.DeviceName(d.handle, role)
}

// Step processes at most one period in single-threaded mode (spec §4.J).
// Returns ErrInvalidOperation if the device was configured MultiThreaded,
// or ErrNotSupported if the backend has no Stepper capability.
func (d *Device) Step(blocking bool) error {
	if d.cfg.Threading != SingleThreaded {
		return maresult.New("device", maresult.CodeInvalidOperation, "Step requires SingleThreaded mode")
	}
	stepper, ok := d.ctx.vtable.(backend.Stepper)
	if !ok {
		return backend.ErrNotSupported()
	}
	return stepper.Step(d.handle, blocking)
}

// Wakeup unblocks a pending blocking Step call without changing device
// state (spec §5 "the only cancellation primitive is device_wakeup").
func (d *Device) Wakeup() error {
	stepper, ok := d.ctx.vtable.(backend.Stepper)
	if !ok {
		return backend.ErrNotSupported()
	}
	return stepper.Wakeup(d.handle)
}

// onBackendData is the function handed to the backend as its DataCallback.
// It implements duplex coupling when the backend delivers capture and
// playback as separate invocations (spec §4.J "Duplex coupling"):
// capture-only invocations are written into duplexRing; playback-only
// invocations read a matching span out of it, synthesizing the duplex call
// the application callback expects.
//
// realtime-safe: no allocation, no lock; duplexRing is a lock-free SPSC
// ring with this function as its sole producer and sole consumer,
// alternating roles by invocation kind (never concurrently both, since a
// backend serializes its own callback invocations).
func (d *Device) onBackendData(out, in []byte, frameCount int) {
	if d.cfg.OnData == nil {
		return
	}
	if d.duplexRing == nil || (out != nil && in != nil) {
		// Either not duplex, or the backend already delivers a combined
		// duplex invocation -- pass straight through.
		d.cfg.OnData(d, out, in, frameCount)
		return
	}

	switch {
	case in != nil && out == nil:
		// Capture-only invocation: stash into the ring. On overflow the
		// oldest frames are dropped and an xrun notification is raised
		// (spec §4.J).
		want := len(in)
		written := d.duplexRing.Write(in)
		if written < want {
			dropped := want - written
			d.dropOldest(dropped)
			d.duplexRing.Write(in[written:])
			d.reportXrun()
		}
	case out != nil && in == nil:
		// Playback-only invocation: synthesize the duplex call by reading
		// a matching span from the ring. Underflow passes a zero-filled
		// in_ptr (spec §4.J).
		want := frameCount * d.duplexBytesPerFrame
		if want > cap(d.synthInBuf) {
			// frameCount exceeded the period setupDuplexRing sized for;
			// only path that can allocate, and only off the configured
			// period.
			d.synthInBuf = make([]byte, want)
		}
		synthIn := d.synthInBuf[:want]
		got := d.duplexRing.Read(synthIn)
		if got < len(synthIn) {
			for i := got; i < len(synthIn); i++ {
				synthIn[i] = 0
			}
		}
		d.cfg.OnData(d, out, synthIn, frameCount)
	}
}

// dropOldest discards n bytes of the oldest buffered data to make room for
// an incoming write that would otherwise overflow (spec §4.J: "If it
// overflows, the oldest frames are dropped").
func (d *Device) dropOldest(n int) {
	avail := d.duplexRing.BytesInRing()
	if n > avail {
		n = avail
	}
	buf, err := d.duplexRing.AcquireRead(n)
	if err != nil {
		return
	}
	d.duplexRing.CommitRead(len(buf))
	if len(buf) < n {
		// wrapped: drop the remainder from the wrap-around segment too
		rest := n - len(buf)
		buf2, err := d.duplexRing.AcquireRead(rest)
		if err == nil {
			d.duplexRing.CommitRead(len(buf2))
		}
	}
}

func (d *Device) reportXrun() {
	if d.cfg.OnNotify != nil {
		d.cfg.OnNotify(backend.NotificationErrored, maresult.New("device", maresult.CodeUnavailable, "xrun-capture"))
	}
	d.log.EmitRealtime(malog.LevelWarn, "xrun-capture: duplex ring overflow, dropped frames")
}

// onBackendNotify is the function handed to the backend as its
// NotificationCallback. It forwards to the application callback and
// handles the device-level reactions spec §4.J requires: a reroute
// re-negotiates format on descriptors left unspecified; an errored
// notification stops the device (spec §7 "Fatal-runtime").
func (d *Device) onBackendNotify(kind backend.NotificationKind, err error) {
	switch kind {
	case backend.NotificationRerouted:
		d.handleReroute()
	case backend.NotificationErrored:
		d.mu.Lock()
		if State(d.state.Load()) == StateStarted {
			d.state.Store(int32(StateStopped))
		}
		d.mu.Unlock()
	}
	if d.cfg.OnNotify != nil {
		d.cfg.OnNotify(kind, err)
	}
}

// handleReroute re-queries the backend for the granted format on a
// default-device change. The callback contract (format/channel count) is
// preserved unless the application left the corresponding descriptor
// fields unspecified (spec §4.J "Reroute handling").
func (d *Device) handleReroute() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playback != nil && d.playback.rerouteAllowed() {
		if info, err := d.ctx.GetDeviceInfo(backend.DeviceID{}, backend.RolePlayback); err == nil && len(info.Formats) > 0 {
			d.playback.applyRerouted(info.Formats[0])
		}
	}
	if d.capture != nil && d.capture.rerouteAllowed() {
		if info, err := d.ctx.GetDeviceInfo(backend.DeviceID{}, backend.RoleCapture); err == nil && len(info.Formats) > 0 {
			d.capture.applyRerouted(info.Formats[0])
		}
	}
}
