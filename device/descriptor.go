// Package device implements the realtime device abstraction: descriptor
// negotiation, the context that selects a backend, and the Device itself
// with its start/stop/step loop, duplex coupling, and reroute handling
// (spec §3, §4.I, §4.J). It generalizes the teacher's two bespoke,
// malgo-specific types -- internal/audio.Capturer and internal/audio.Player,
// each opening its own *malgo.AllocatedContext and *malgo.Device -- into a
// single backend-agnostic Device driven through the backend.VTable
// interface, so the same Device implementation serves any backend.VTable
// (malgo today; any other port tomorrow) without change.
package device

import (
	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/pcm"
)

// ShareMode re-exports backend.ShareMode for callers that only import
// device.
type ShareMode = backend.ShareMode

const (
	ShareModeShared    = backend.ShareModeShared
	ShareModeExclusive = backend.ShareModeExclusive
)

// Role re-exports backend.Role.
type Role = backend.Role

const (
	RolePlayback = backend.RolePlayback
	RoleCapture  = backend.RoleCapture
	RoleDuplex   = backend.RoleDuplex
	RoleLoopback = backend.RoleLoopback
)

// Descriptor is one side (playback or capture) of a device configuration:
// both the values requested by the application and the values actually
// granted after backend negotiation (spec §3 "Device descriptor").
type Descriptor struct {
	DeviceID     backend.DeviceID
	Format       pcm.Format
	Channels     int
	SampleRate   int
	Map          pcm.ChannelMap
	PeriodFrames int
	PeriodCount  int
	ShareMode    ShareMode

	// UseDefaultDevice is true when DeviceID was left unspecified by the
	// caller, making this descriptor eligible for transparent reroute on a
	// default-device change (spec §4.J "Reroute handling").
	UseDefaultDevice bool
	// fieldsUnspecified records which of Format/Channels/SampleRate/Map the
	// caller left zero-valued at request time, so a post-reroute
	// re-negotiation knows which fields it's still free to change (spec
	// §4.J: "the callback may observe a different sample rate or channel
	// count after a reroute if and only if the application opted in by
	// leaving the corresponding descriptor fields unspecified").
	formatUnspecified   bool
	channelsUnspecified bool
	rateUnspecified     bool
	mapUnspecified      bool
}

// requestConfig builds the backend.StreamConfig this descriptor requests,
// and records which fields were left to the backend to decide.
func (d *Descriptor) requestConfig() backend.StreamConfig {
	d.formatUnspecified = !d.Format.Valid()
	d.channelsUnspecified = d.Channels <= 0
	d.rateUnspecified = d.SampleRate <= 0
	d.mapUnspecified = len(d.Map) == 0
	return backend.StreamConfig{
		DeviceID:     d.DeviceID,
		Format:       d.Format,
		Channels:     d.Channels,
		SampleRate:   d.SampleRate,
		Map:          d.Map,
		PeriodFrames: d.PeriodFrames,
		PeriodCount:  d.PeriodCount,
		ShareMode:    d.ShareMode,
		UseDefault:   d.UseDefaultDevice,
	}
}

// applyGranted copies backend-negotiated values back into the descriptor.
func (d *Descriptor) applyGranted(g backend.StreamConfig) {
	d.Format = g.Format
	d.Channels = g.Channels
	d.SampleRate = g.SampleRate
	d.Map = g.Map
	d.PeriodFrames = g.PeriodFrames
	d.PeriodCount = g.PeriodCount
}

// rerouteAllowed reports whether any of format/channels/rate/map may change
// after a reroute; the *Unspecified flags record which of them may.
func (d *Descriptor) rerouteAllowed() bool {
	return d.UseDefaultDevice && (d.formatUnspecified || d.channelsUnspecified || d.rateUnspecified || d.mapUnspecified)
}

// applyRerouted takes the new default device's native format for exactly
// the fields the caller left unspecified.
func (d *Descriptor) applyRerouted(f backend.NativeDataFormat) {
	if d.formatUnspecified {
		d.Format = f.Format
	}
	if d.channelsUnspecified {
		d.Channels = f.Channels
	}
	if d.rateUnspecified {
		d.SampleRate = f.MaxRate
	}
	if d.mapUnspecified {
		d.Map = f.Map
	}
}
