package device

import (
	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
)

// noStepperVTable is a minimal backend.VTable stand-in with no
// backend.Stepper implementation, used only to exercise
// TestStepRequiresSingleThreadedModeAndStepperCapability's negative case.
// Every other device test drives a real loopback backend via
// github.com/agalue/maudio/backend/memio, which does implement Stepper.
type noStepperVTable struct{}

func (noStepperVTable) BackendInfo() backend.Info { return backend.Info{Name: "no-stepper"} }

func (noStepperVTable) ContextInit() (backend.ContextHandle, error) { return noStepperVTable{}, nil }

func (noStepperVTable) ContextUninit(backend.ContextHandle) error { return nil }

func (noStepperVTable) EnumerateDevices(backend.ContextHandle, backend.Role, func(backend.DeviceInfo) error) error {
	return nil
}

func (noStepperVTable) GetDeviceInfo(backend.ContextHandle, backend.DeviceID, backend.Role) (backend.DeviceInfo, error) {
	return backend.DeviceInfo{}, maresult.New("no-stepper", maresult.CodeDeviceTypeNotSupported, "no devices")
}

func (noStepperVTable) DeviceInit(_ backend.ContextHandle, playback, capture *backend.StreamConfig, _ backend.DataCallback, _ backend.NotificationCallback) (backend.StreamHandle, backend.StreamConfig, backend.StreamConfig, error) {
	var grantedPlayback, grantedCapture backend.StreamConfig
	if playback != nil {
		grantedPlayback = *playback
		if !grantedPlayback.Format.Valid() {
			grantedPlayback.Format = pcm.FormatF32
		}
		if grantedPlayback.Channels <= 0 {
			grantedPlayback.Channels = 2
		}
	}
	if capture != nil {
		grantedCapture = *capture
	}
	return struct{}{}, grantedPlayback, grantedCapture, nil
}

func (noStepperVTable) DeviceUninit(backend.StreamHandle) error { return nil }
func (noStepperVTable) DeviceStart(backend.StreamHandle) error  { return nil }
func (noStepperVTable) DeviceStop(backend.StreamHandle) error   { return nil }
func (noStepperVTable) DeviceName(backend.StreamHandle, backend.Role) (string, error) {
	return "no-stepper", nil
}
