package source

import (
	"math"

	"github.com/agalue/maudio/maresult"
)

// Waveform selects the shape Sine generates. Named after, and ported from,
// original_source's ma_waveform (the source feeding examples/duplex_effect.c).
type Waveform int

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformTriangle
	WaveformSawtooth
)

// Sine is an infinite, non-seekable Source generating a periodic waveform
// at a declared amplitude/frequency, identical in role to original_source's
// ma_waveform (the underlying data source of duplex_effect.c's source
// node). Every channel carries the same signal.
type Sine struct {
	format    Format
	waveform  Waveform
	frequency float64
	amplitude float32
	phase     float64 // radians, carried across Read calls
}

// NewSine builds a waveform source at the given native format/rate.
func NewSine(format Format, waveform Waveform, frequencyHz float64, amplitude float32) (*Sine, error) {
	if format.SampleRate <= 0 {
		return nil, maresult.New("source", maresult.CodeInvalidArgs, "sample rate must be > 0")
	}
	if format.Layout.Channels <= 0 {
		return nil, maresult.New("source", maresult.CodeInvalidArgs, "channels must be > 0")
	}
	return &Sine{format: format, waveform: waveform, frequency: frequencyHz, amplitude: amplitude}, nil
}

func (s *Sine) NativeFormat() Format { return s.format }

// Read is realtime-safe: pure arithmetic over the caller-owned buf, no
// allocation. Sine never returns ErrAtEnd; it is an infinite source.
func (s *Sine) Read(buf []float32, frameCap int) (int, error) {
	ch := s.format.Layout.Channels
	if len(buf) < frameCap*ch {
		return 0, maresult.New("source", maresult.CodeInvalidArgs, "buf too small")
	}
	step := 2 * math.Pi * s.frequency / float64(s.format.SampleRate)
	for f := 0; f < frameCap; f++ {
		v := s.amplitude * float32(s.shape(s.phase))
		for c := 0; c < ch; c++ {
			buf[f*ch+c] = v
		}
		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return frameCap, nil
}

func (s *Sine) shape(phase float64) float64 {
	switch s.waveform {
	case WaveformSquare:
		if math.Sin(phase) >= 0 {
			return 1
		}
		return -1
	case WaveformTriangle:
		return 2 / math.Pi * math.Asin(math.Sin(phase))
	case WaveformSawtooth:
		return 2 * (phase/(2*math.Pi) - math.Floor(phase/(2*math.Pi)+0.5))
	case WaveformSine:
		fallthrough
	default:
		return math.Sin(phase)
	}
}

// Reset zeroes phase, matching a fresh Sine's starting state.
func (s *Sine) Reset() { s.phase = 0 }
