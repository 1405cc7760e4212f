// Package pcm defines the sample format, channel position, channel map, and
// frame/byte accounting primitives shared by every other package (spec §3).
package pcm

import "github.com/agalue/maudio/maresult"

// Format is the closed set of sample formats the engine understands. F32 is
// the canonical intermediate form used for gain, mixing, and the node graph
// (spec §3).
type Format int

const (
	// FormatUnknown is the zero value and is not Valid; a descriptor or
	// stream config holding it leaves the sample format unspecified.
	FormatUnknown Format = iota
	FormatU8
	FormatS16
	FormatS24 // packed 3-byte little-endian
	FormatS32
	FormatF32
)

func (f Format) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24_packed"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown-format"
	}
}

// BytesPerSample returns the fixed byte width of one sample in this format.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32:
		return 4
	case FormatF32:
		return 4
	default:
		return 0
	}
}

// Valid reports whether f is one of the declared formats.
func (f Format) Valid() bool {
	return f >= FormatU8 && f <= FormatF32
}

// BytesPerFrame returns bytesPerSample(format) * channels, or an error if
// format is invalid or channels <= 0.
func BytesPerFrame(format Format, channels int) (int, error) {
	if !format.Valid() {
		return 0, maresult.New("pcm", maresult.CodeFormatNotSupported, format.String())
	}
	if channels <= 0 {
		return 0, maresult.New("pcm", maresult.CodeInvalidArgs, "channels must be > 0")
	}
	return format.BytesPerSample() * channels, nil
}

// FramesToBytes converts a frame count to a byte count for the given
// format/channels.
func FramesToBytes(format Format, channels int, frames int) (int, error) {
	bpf, err := BytesPerFrame(format, channels)
	if err != nil {
		return 0, err
	}
	return bpf * frames, nil
}

// BytesToFrames converts a byte count to a whole frame count, truncating any
// partial trailing frame.
func BytesToFrames(format Format, channels int, bytes int) (int, error) {
	bpf, err := BytesPerFrame(format, channels)
	if err != nil {
		return 0, err
	}
	if bpf == 0 {
		return 0, nil
	}
	return bytes / bpf, nil
}
