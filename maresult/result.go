// Package maresult defines the typed result/error taxonomy shared by every
// public operation in the engine. No operation in this module returns a bare
// bool or swallows a failure; every fallible call returns an error that can
// be inspected with errors.Is/errors.As against the sentinels below.
package maresult

import (
	"errors"
	"fmt"
)

// Code is a closed set of result kinds. Zero value is CodeSuccess.
type Code int

const (
	CodeSuccess Code = iota
	CodeOutOfMemory
	CodeInvalidArgs
	CodeInvalidOperation
	CodeDeviceNotInitialized
	CodeDeviceAlreadyInitialized
	CodeDeviceNotStarted
	CodeDeviceNotStopped
	CodeFailedToOpenBackendDevice
	CodeDeviceTypeNotSupported
	CodeFormatNotSupported
	CodeShareModeNotSupported
	CodeNoBackend
	CodeTimeout
	CodeAtEnd
	CodeBusy
	CodeCancelled
	CodeUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeOutOfMemory:
		return "out-of-memory"
	case CodeInvalidArgs:
		return "invalid-args"
	case CodeInvalidOperation:
		return "invalid-operation"
	case CodeDeviceNotInitialized:
		return "device-not-initialized"
	case CodeDeviceAlreadyInitialized:
		return "device-already-initialized"
	case CodeDeviceNotStarted:
		return "device-not-started"
	case CodeDeviceNotStopped:
		return "device-not-stopped"
	case CodeFailedToOpenBackendDevice:
		return "failed-to-open-backend-device"
	case CodeDeviceTypeNotSupported:
		return "device-type-not-supported"
	case CodeFormatNotSupported:
		return "format-not-supported"
	case CodeShareModeNotSupported:
		return "share-mode-not-supported"
	case CodeNoBackend:
		return "no-backend"
	case CodeTimeout:
		return "timeout"
	case CodeAtEnd:
		return "at-end"
	case CodeBusy:
		return "busy"
	case CodeCancelled:
		return "cancelled"
	case CodeUnavailable:
		return "unavailable"
	default:
		return "unknown-result-code"
	}
}

// Error is a typed result wrapped as a standard Go error. Component and
// Message mirror the "named, structured" error style used throughout the
// corpus (e.g. birdnet-go's errors.New(...).Component(...).Context(...)),
// kept minimal here since the rest of the taxonomy lives in Code/Cause.
type Error struct {
	Code      Code
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Code, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Code, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Component, e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, maresult.ErrAtEnd) match any *Error with the same
// Code regardless of component/message/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an *Error for the given component and code.
func New(component string, code Code, message string) *Error {
	return &Error{Code: code, Component: component, Message: message}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(component string, code Code, message string, cause error) *Error {
	return &Error{Code: code, Component: component, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err, or CodeSuccess/true if err is nil, and
// CodeInvalidOperation/false if it is a non-nil error that isn't ours.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return CodeSuccess, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return CodeInvalidOperation, false
}

// Sentinels usable with errors.Is. Component is left blank so Is() only
// compares Code (see (*Error).Is above).
var (
	ErrOutOfMemory               = &Error{Code: CodeOutOfMemory}
	ErrInvalidArgs               = &Error{Code: CodeInvalidArgs}
	ErrInvalidOperation          = &Error{Code: CodeInvalidOperation}
	ErrDeviceNotInitialized      = &Error{Code: CodeDeviceNotInitialized}
	ErrDeviceAlreadyInitialized  = &Error{Code: CodeDeviceAlreadyInitialized}
	ErrDeviceNotStarted          = &Error{Code: CodeDeviceNotStarted}
	ErrDeviceNotStopped          = &Error{Code: CodeDeviceNotStopped}
	ErrFailedToOpenBackendDevice = &Error{Code: CodeFailedToOpenBackendDevice}
	ErrDeviceTypeNotSupported    = &Error{Code: CodeDeviceTypeNotSupported}
	ErrFormatNotSupported        = &Error{Code: CodeFormatNotSupported}
	ErrShareModeNotSupported     = &Error{Code: CodeShareModeNotSupported}
	ErrNoBackend                 = &Error{Code: CodeNoBackend}
	ErrTimeout                   = &Error{Code: CodeTimeout}
	ErrAtEnd                     = &Error{Code: CodeAtEnd}
	ErrBusy                      = &Error{Code: CodeBusy}
	ErrCancelled                 = &Error{Code: CodeCancelled}
	ErrUnavailable               = &Error{Code: CodeUnavailable}
)
