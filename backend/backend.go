// Package backend declares the uniform vtable every OS-specific audio API
// port must implement (spec §4.K). Everything in device/ is OS-agnostic and
// talks to the hardware only through this interface; a VTable is stateless
// between calls (it returns opaque per-context/per-device state that the
// caller threads back through every subsequent call), mirroring the
// teacher's own backend, malgo, which is itself one such vtable wrapping
// miniaudio's C implementation.
package backend

import (
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
)

// Role names which direction(s) a device descriptor or stream serves (spec §3).
type Role int

const (
	RolePlayback Role = iota
	RoleCapture
	RoleDuplex
	RoleLoopback
)

func (r Role) String() string {
	switch r {
	case RolePlayback:
		return "playback"
	case RoleCapture:
		return "capture"
	case RoleDuplex:
		return "duplex"
	case RoleLoopback:
		return "loopback"
	default:
		return "unknown-role"
	}
}

// ShareMode selects exclusive vs shared access to the underlying device
// (spec §3).
type ShareMode int

const (
	ShareModeShared ShareMode = iota
	ShareModeExclusive
)

// DeviceID opaquely identifies one physical/logical device as reported by a
// backend's enumeration. Backends are free to pack whatever identifying
// data they need (a CoreAudio AudioObjectID, an ALSA card/device pair, a
// WASAPI endpoint GUID string, ...); the core never interprets the bytes.
type DeviceID struct {
	Backend string
	Opaque  []byte
}

// NativeDataFormat is one format/channel/rate combination a physical device
// supports natively, as reported by enumeration (spec §4.I).
type NativeDataFormat struct {
	Format    pcm.Format
	Channels  int
	MinRate   int
	MaxRate   int
	Map       pcm.ChannelMap
	IsDefault bool
}

// DeviceInfo describes one enumerated device for a given role.
type DeviceInfo struct {
	ID      DeviceID
	Name    string
	Role    Role
	Formats []NativeDataFormat
}

// StreamConfig is what the core asks a backend to open. Zero-valued Channels
// or SampleRate means "let the backend/OS decide" (spec §4.J reroute: "if
// and only if the application opted in by leaving the corresponding
// descriptor fields unspecified").
type StreamConfig struct {
	DeviceID     DeviceID // zero value selects the default device
	Format       pcm.Format
	Channels     int
	SampleRate   int
	Map          pcm.ChannelMap
	PeriodFrames int
	PeriodCount  int
	ShareMode    ShareMode
	UseDefault   bool // true when DeviceID was left unspecified
}

// DataCallback is invoked by the backend (on whatever thread it owns in
// multi-threaded mode) once per period. out/in are nil when not applicable
// to the role of the stream that triggered the call; frameCount may be
// smaller than the configured period (spec §4.J).
type DataCallback func(out, in []byte, frameCount int)

// NotificationKind enumerates the asynchronous events a backend can raise
// outside the data callback (spec §4.J).
type NotificationKind int

const (
	NotificationStarted NotificationKind = iota
	NotificationStopped
	NotificationRerouted
	NotificationInterruptionBegan
	NotificationInterruptionEnded
	NotificationUnlocked
	NotificationErrored
)

func (n NotificationKind) String() string {
	switch n {
	case NotificationStarted:
		return "started"
	case NotificationStopped:
		return "stopped"
	case NotificationRerouted:
		return "rerouted"
	case NotificationInterruptionBegan:
		return "interruption_began"
	case NotificationInterruptionEnded:
		return "interruption_ended"
	case NotificationUnlocked:
		return "unlocked"
	case NotificationErrored:
		return "errored"
	default:
		return "unknown-notification"
	}
}

// NotificationCallback is invoked synchronously from the backend thread that
// observed the event; handlers must be non-blocking (spec §4.J).
type NotificationCallback func(kind NotificationKind, err error)

// StreamHandle is the opaque per-open-stream state returned by DeviceInit.
// The core never inspects it; it's threaded back through Start/Stop/Uninit.
type StreamHandle any

// ContextHandle is the opaque per-backend context state returned by
// ContextInit.
type ContextHandle any

// VTable is the uniform contract every backend implements (spec §4.K). A
// VTable's methods are pure functions of their arguments plus the opaque
// handles they're given -- a VTable value itself holds no per-context or
// per-device state, so one VTable can back any number of contexts.
type VTable interface {
	// BackendInfo reports the backend's name, used for priority-list
	// selection and log/diagnostic output.
	BackendInfo() Info

	// ContextInit prepares backend-global state (e.g. opening a connection
	// to the platform's audio server). Returns ErrNoBackend if the backend
	// has no presence on this platform/build.
	ContextInit() (ContextHandle, error)
	ContextUninit(ctx ContextHandle) error

	// EnumerateDevices calls fn once per device available for role. A
	// non-nil error from fn stops enumeration early and is returned as-is.
	EnumerateDevices(ctx ContextHandle, role Role, fn func(DeviceInfo) error) error

	// GetDeviceInfo probes a single device by ID (DeviceID{} for the
	// default device of that role).
	GetDeviceInfo(ctx ContextHandle, id DeviceID, role Role) (DeviceInfo, error)

	// DeviceInit opens a stream. Exactly one of playback/capture may be
	// nil (the unused role); both non-nil requests a duplex stream.
	// granted* report the format actually negotiated, which may differ
	// from the request when UseDefault fields were left unspecified.
	DeviceInit(ctx ContextHandle, playback, capture *StreamConfig, data DataCallback, notify NotificationCallback) (handle StreamHandle, grantedPlayback, grantedCapture StreamConfig, err error)
	DeviceUninit(handle StreamHandle) error
	DeviceStart(handle StreamHandle) error
	DeviceStop(handle StreamHandle) error

	// DeviceName returns the human-readable name the stream was opened
	// against, for the given role.
	DeviceName(handle StreamHandle, role Role) (string, error)
}

// Info identifies a backend implementation.
type Info struct {
	Name string
}

// Stepper is an optional capability: backends that support single-threaded
// mode (device_read/device_write/device_wakeup, spec §4.K "Optional")
// implement it so device.Device.Step has something to call. A backend that
// only supports multi-threaded mode (spawns its own audio thread) need not
// implement Stepper.
type Stepper interface {
	// Step processes at most one period. blocking selects whether Step
	// waits for a period to become available (spec §4.J). It returns
	// ErrTimeout if non-blocking and nothing was ready.
	Step(handle StreamHandle, blocking bool) error
	// Wakeup unblocks a pending blocking Step call without changing state
	// (spec §5 "the only cancellation primitive is device_wakeup").
	Wakeup(handle StreamHandle) error
}

// errNotSupported is returned by helpers below for VTable implementations
// that leave an optional method unimplemented.
var errNotSupported = maresult.New("backend", maresult.CodeDeviceTypeNotSupported, "optional vtable method not implemented")

// ErrNotSupported is returned by Stepper-less backends asked to Step.
func ErrNotSupported() error { return errNotSupported }
