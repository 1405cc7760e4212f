package pcm

import (
	"encoding/binary"
	"math"

	"github.com/agalue/maudio/maresult"
)

// u8ToF32, s16ToF32, etc. convert one sample between a fixed-point wire
// format and the f32 canonical form used internally (spec §3: "f32 is the
// canonical intermediate form"). The byte <-> float32 bit pattern here
// generalizes the teacher's bytesToFloat32/math.Float32bits round trip
// (internal/audio/capture.go, playback.go) from "f32 wire format only" to
// all five declared formats.

func u8ToF32(u uint8) float32 {
	return float32(u)/127.5 - 1
}

func f32ToU8(f float32) uint8 {
	f = clamp(f, -1, 1)
	v := int32(math.Round(float64(f+1) * 127.5))
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func s16ToF32(s int16) float32 {
	if s < 0 {
		return float32(s) / 32768
	}
	return float32(s) / 32767
}

func f32ToS16(f float32) int16 {
	f = clamp(f, -1, 1)
	if f < 0 {
		return int16(f * 32768)
	}
	return int16(f * 32767)
}

func s32ToF32(s int32) float32 {
	if s < 0 {
		return float32(float64(s) / 2147483648.0)
	}
	return float32(float64(s) / 2147483647.0)
}

func f32ToS32(f float32) int32 {
	f = clamp(f, -1, 1)
	if f < 0 {
		return int32(float64(f) * 2147483648.0)
	}
	return int32(float64(f) * 2147483647.0)
}

func s24ToF32(lo, mid, hi byte) float32 {
	v := int32(lo) | int32(mid)<<8 | int32(hi)<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xFFFFFF) // sign extend
	}
	if v < 0 {
		return float32(v) / 8388608
	}
	return float32(v) / 8388607
}

func f32ToS24(f float32) (lo, mid, hi byte) {
	f = clamp(f, -1, 1)
	var v int32
	if f < 0 {
		v = int32(f * 8388608)
	} else {
		v = int32(f * 8388607)
	}
	return byte(v), byte(v >> 8), byte(v >> 16)
}

func clamp(f, lo, hi float32) float32 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// DecodeF32 reads frameCount*channels samples from src (encoded in format,
// little-endian, interleaved) into dst as f32. dst must have capacity for
// frameCount*channels float32s.
//
// realtime-safe: no allocation, pure arithmetic over caller-owned slices.
func DecodeF32(format Format, channels int, src []byte, dst []float32, frameCount int) error {
	n := frameCount * channels
	if len(dst) < n {
		return maresult.New("pcm", maresult.CodeInvalidArgs, "dst too small")
	}
	bps := format.BytesPerSample()
	if len(src) < n*bps {
		return maresult.New("pcm", maresult.CodeInvalidArgs, "src too small")
	}
	switch format {
	case FormatU8:
		for i := 0; i < n; i++ {
			dst[i] = u8ToF32(src[i])
		}
	case FormatS16:
		for i := 0; i < n; i++ {
			dst[i] = s16ToF32(int16(binary.LittleEndian.Uint16(src[i*2:])))
		}
	case FormatS24:
		for i := 0; i < n; i++ {
			o := i * 3
			dst[i] = s24ToF32(src[o], src[o+1], src[o+2])
		}
	case FormatS32:
		for i := 0; i < n; i++ {
			dst[i] = s32ToF32(int32(binary.LittleEndian.Uint32(src[i*4:])))
		}
	case FormatF32:
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	default:
		return maresult.New("pcm", maresult.CodeFormatNotSupported, format.String())
	}
	return nil
}

// EncodeF32 is the inverse of DecodeF32: writes frameCount*channels f32
// samples from src into dst encoded as format, little-endian, interleaved.
//
// realtime-safe: no allocation, pure arithmetic over caller-owned slices.
func EncodeF32(format Format, channels int, src []float32, dst []byte, frameCount int) error {
	n := frameCount * channels
	if len(src) < n {
		return maresult.New("pcm", maresult.CodeInvalidArgs, "src too small")
	}
	bps := format.BytesPerSample()
	if len(dst) < n*bps {
		return maresult.New("pcm", maresult.CodeInvalidArgs, "dst too small")
	}
	switch format {
	case FormatU8:
		for i := 0; i < n; i++ {
			dst[i] = f32ToU8(src[i])
		}
	case FormatS16:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(f32ToS16(src[i])))
		}
	case FormatS24:
		for i := 0; i < n; i++ {
			lo, mid, hi := f32ToS24(src[i])
			o := i * 3
			dst[o], dst[o+1], dst[o+2] = lo, mid, hi
		}
	case FormatS32:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(f32ToS32(src[i])))
		}
	case FormatF32:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
		}
	default:
		return maresult.New("pcm", maresult.CodeFormatNotSupported, format.String())
	}
	return nil
}
