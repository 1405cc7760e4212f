package device

import (
	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/malog"
	"github.com/agalue/maudio/maresult"
)

// AllocCallbacks lets a caller override how Context-owned realtime buffers
// are allocated and freed, mirroring miniaudio's ma_allocation_callbacks
// (spec §3 "Context": an optional func(size int) ([]byte, error) /
// func([]byte) pair). Both fields are optional; a nil Alloc falls back to
// make([]byte, size) and a nil Free is a no-op (ordinary GC reclaims the
// slice).
type AllocCallbacks struct {
	Alloc func(size int) ([]byte, error)
	Free  func([]byte)
}

func (a AllocCallbacks) allocate(size int) ([]byte, error) {
	if a.Alloc != nil {
		return a.Alloc(size)
	}
	return make([]byte, size), nil
}

func (a AllocCallbacks) free(buf []byte) {
	if a.Free != nil {
		a.Free(buf)
	}
}

// ContextConfig configures a Context. Backends is tried in priority order at
// Init; the first backend whose ContextInit succeeds is selected (spec §4.I,
// §9 "Open questions: first-priority-backend-with-a-default").
type ContextConfig struct {
	Backends []backend.VTable
	Log      *malog.Bus
	// Alloc, if set, is used for every buffer a Device produced from this
	// Context allocates outside of a single Process call (the duplex ring
	// and its synth-in scratch buffer); see AllocCallbacks.
	Alloc AllocCallbacks
}

// Context owns the selected backend and its opaque per-backend state for
// the lifetime of every Device it produces (spec §3 "Context").
type Context struct {
	vtable      backend.VTable
	handle      backend.ContextHandle
	log         *malog.Bus
	backendName string
	alloc       AllocCallbacks
}

// NewContext probes cfg.Backends in order and selects the first one whose
// ContextInit succeeds. Returns maresult.ErrNoBackend if none do.
func NewContext(cfg ContextConfig) (*Context, error) {
	if len(cfg.Backends) == 0 {
		return nil, maresult.New("device", maresult.CodeInvalidArgs, "at least one backend required")
	}
	log := cfg.Log
	if log == nil {
		log = malog.NewBus()
	}
	var lastErr error
	for _, vt := range cfg.Backends {
		handle, err := vt.ContextInit()
		if err != nil {
			lastErr = err
			log.Emit(malog.LevelDebug, "backend probe failed", "backend", vt.BackendInfo().Name, "err", err)
			continue
		}
		log.Emit(malog.LevelInfo, "backend selected", "backend", vt.BackendInfo().Name)
		return &Context{vtable: vt, handle: handle, log: log, backendName: vt.BackendInfo().Name, alloc: cfg.Alloc}, nil
	}
	if lastErr != nil {
		return nil, maresult.Wrap("device", maresult.CodeNoBackend, "no backend probed successfully", lastErr)
	}
	return nil, maresult.New("device", maresult.CodeNoBackend, "no backend probed successfully")
}

// Uninit releases the selected backend's context state. The Context must
// not be used afterward; any Device it produced must already be uninited.
func (c *Context) Uninit() error {
	return c.vtable.ContextUninit(c.handle)
}

// BackendName returns the name of the backend this context selected.
func (c *Context) BackendName() string { return c.backendName }

// EnumerateDevices calls fn once per device available for role on the
// selected backend (spec §4.I).
func (c *Context) EnumerateDevices(role backend.Role, fn func(backend.DeviceInfo) error) error {
	return c.vtable.EnumerateDevices(c.handle, role, fn)
}

// GetDeviceInfo probes a single device by ID for the given role.
func (c *Context) GetDeviceInfo(id backend.DeviceID, role backend.Role) (backend.DeviceInfo, error) {
	return c.vtable.GetDeviceInfo(c.handle, id, role)
}

// Allocate grows a buffer of size bytes through this Context's
// AllocCallbacks (spec §3 "Context"). Devices use this for buffers set up
// once outside the audio callback, never from the callback itself.
func (c *Context) Allocate(size int) ([]byte, error) {
	return c.alloc.allocate(size)
}

// Free releases a buffer previously returned by Allocate through this
// Context's AllocCallbacks.
func (c *Context) Free(buf []byte) {
	c.alloc.free(buf)
}
