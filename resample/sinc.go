package resample

import (
	"math"

	"github.com/agalue/maudio/maresult"
)

// sincResampler is a streaming, multi-channel windowed-sinc FIR resampler,
// generalizing the teacher's PolyphaseResampler (internal/audio/polyphase.go)
// from a fixed 64-tap Hamming-windowed downsampler-only filter to an
// arbitrary-ratio, arbitrary-tap, arbitrary-window, multi-channel streaming
// kernel satisfying the full Resampler interface.
type sincResampler struct {
	inRate, outRate int
	channels        int
	taps            int
	window          Window
	filter          []float32 // taps coefficients, designed for the current rate pair
	fracPos         float64
	// history holds, per channel, the last `taps` input samples seen so far
	// (zero-initialized), used as left-context for the FIR so a stream
	// doesn't need to be padded by the caller (spec §3: "a window of prior
	// input samples long enough for the chosen kernel").
	history [][]float32
}

func newSinc(inRate, outRate, channels, taps int, window Window) *sincResampler {
	s := &sincResampler{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		taps:     taps,
		window:   window,
	}
	s.designFilter()
	s.history = make([][]float32, channels)
	for c := range s.history {
		s.history[c] = make([]float32, taps)
	}
	return s
}

// designFilter builds a normalized, windowed low-pass sinc kernel cut off at
// the lower of the two Nyquist frequencies (spec §4.D kernel description;
// ported directly from the teacher's NewPolyphaseResampler filter design).
func (s *sincResampler) designFilter() {
	ratio := float64(s.outRate) / float64(s.inRate)
	cutoff := 0.5
	if ratio < 1.0 {
		cutoff = ratio * 0.5
	}

	filter := make([]float32, s.taps)
	for i := 0; i < s.taps; i++ {
		n := float64(i) - float64(s.taps-1)/2.0
		if n == 0 {
			filter[i] = float32(2.0 * cutoff)
		} else {
			sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
			filter[i] = float32(sinc * s.windowAt(i))
		}
	}

	var sum float32
	for _, f := range filter {
		sum += f
	}
	if sum != 0 {
		for i := range filter {
			filter[i] /= sum
		}
	}
	s.filter = filter
}

func (s *sincResampler) windowAt(i int) float64 {
	n := float64(s.taps - 1)
	switch s.window {
	case WindowBlackman:
		x := 2.0 * math.Pi * float64(i) / n
		return 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	case WindowHamming:
		fallthrough
	default:
		return 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/n)
	}
}

func (s *sincResampler) Channels() int { return s.channels }

func (s *sincResampler) Reset() {
	s.fracPos = 0
	for c := range s.history {
		for i := range s.history[c] {
			s.history[c][i] = 0
		}
	}
}

func (s *sincResampler) SetRate(inRate, outRate int) error {
	if inRate <= 0 || outRate <= 0 {
		return maresult.New("resample", maresult.CodeInvalidArgs, "rates must be > 0")
	}
	s.inRate, s.outRate = inRate, outRate
	s.designFilter()
	return nil
}

func (s *sincResampler) Process(in, out []float32) (int, int, error) {
	ch := s.channels
	inFrames := len(in) / ch
	outCap := len(out) / ch

	if inFrames == 0 || outCap == 0 {
		return 0, 0, nil
	}

	if s.inRate == s.outRate {
		n := inFrames
		if n > outCap {
			n = outCap
		}
		copy(out[:n*ch], in[:n*ch])
		s.pushHistory(in, n)
		return n, n, nil
	}

	step := float64(s.inRate) / float64(s.outRate)
	pos := s.fracPos
	outIdx := 0

	for outIdx < outCap {
		srcIdx := int(math.Floor(pos))
		if srcIdx+1 >= inFrames {
			break
		}
		for c := 0; c < ch; c++ {
			out[outIdx*ch+c] = s.convolve(in, c, srcIdx)
		}
		outIdx++
		pos += step
	}

	consumed := int(math.Floor(pos))
	if consumed > inFrames {
		consumed = inFrames
	}
	if consumed < 0 {
		consumed = 0
	}
	s.fracPos = pos - float64(consumed)
	s.pushHistory(in, consumed)
	return consumed, outIdx, nil
}

// convolve applies the FIR filter centered at conceptual index srcIdx of
// channel c, drawing left-context samples from history when srcIdx-k is
// negative.
func (s *sincResampler) convolve(in []float32, c, srcIdx int) float32 {
	var acc float32
	half := s.taps / 2
	for j := 0; j < s.taps; j++ {
		idx := srcIdx - half + j
		var sample float32
		switch {
		case idx < 0:
			hlen := len(s.history[c])
			hIdx := hlen + idx
			if hIdx >= 0 && hIdx < hlen {
				sample = s.history[c][hIdx]
			}
		case idx < len(in)/s.channels:
			sample = in[idx*s.channels+c]
		default:
			sample = 0
		}
		acc += sample * s.filter[j]
	}
	return acc
}

// pushHistory slides the last `taps` samples of the just-consumed input
// (or, if fewer than taps frames were consumed, the tail of the old history
// plus the new input) into history, per channel.
func (s *sincResampler) pushHistory(in []float32, consumed int) {
	if consumed <= 0 {
		return
	}
	ch := s.channels
	taps := s.taps
	for c := 0; c < ch; c++ {
		if consumed >= taps {
			for i := 0; i < taps; i++ {
				srcFrame := consumed - taps + i
				s.history[c][i] = in[srcFrame*ch+c]
			}
			continue
		}
		shift := consumed
		copy(s.history[c], s.history[c][shift:])
		for i := 0; i < shift; i++ {
			s.history[c][taps-shift+i] = in[i*ch+c]
		}
	}
}

// Flush drains the filter's remaining lookahead: with no further input, the
// taps that would have read real future samples read zero instead (the same
// zero-padding convolve already does for srcIdx beyond the end of in), while
// taps still reaching back into history keep contributing. Output continues
// until the kernel's leftmost tap no longer overlaps any buffered history
// sample, at which point every further frame would be silence (spec §4.D
// "Tail flush... produces remaining output from internal history without
// consuming new input").
func (s *sincResampler) Flush(out []float32) (int, error) {
	ch := s.channels
	outCap := len(out) / ch
	if s.inRate == s.outRate {
		// Identity passthrough keeps no filter history beyond the plain
		// sample copy, so there's no tail to derive output from.
		s.Reset()
		return 0, nil
	}

	half := s.taps / 2
	step := float64(s.inRate) / float64(s.outRate)
	pos := s.fracPos
	outIdx := 0

	for outIdx < outCap {
		srcIdx := int(math.Floor(pos))
		if srcIdx >= half {
			break
		}
		for c := 0; c < ch; c++ {
			out[outIdx*ch+c] = s.convolve(nil, c, srcIdx)
		}
		outIdx++
		pos += step
	}

	s.Reset()
	return outIdx, nil
}
