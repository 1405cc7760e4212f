package resample

import (
	"math"

	"github.com/agalue/maudio/maresult"
)

// linearResampler is a streaming, multi-channel linear interpolator,
// generalizing the teacher's mono-only Resampler (internal/audio/resampler.go)
// to N channels and to the Resampler interface's Flush/Reset/SetRate
// contract. Phase is accumulated in double precision per spec §4.D
// ("sinc path uses double-precision phase accumulation" — applied here too
// since linear shares the same streaming-position bookkeeping).
type linearResampler struct {
	inRate, outRate int
	channels        int
	ratio           float64 // outRate / inRate
	fracPos         float64 // carryover position, in input-frame units, in [0, 1)
	history         []float32
}

func newLinear(inRate, outRate, channels int) *linearResampler {
	return &linearResampler{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		ratio:    float64(outRate) / float64(inRate),
		history:  make([]float32, channels),
	}
}

func (r *linearResampler) Channels() int { return r.channels }

func (r *linearResampler) Reset() {
	r.fracPos = 0
	for i := range r.history {
		r.history[i] = 0
	}
}

func (r *linearResampler) SetRate(inRate, outRate int) error {
	if inRate <= 0 || outRate <= 0 {
		return maresult.New("resample", maresult.CodeInvalidArgs, "rates must be > 0")
	}
	r.inRate, r.outRate = inRate, outRate
	r.ratio = float64(outRate) / float64(inRate)
	return nil
}

func (r *linearResampler) Process(in, out []float32) (int, int, error) {
	ch := r.channels
	inFrames := len(in) / ch
	outCap := len(out) / ch

	if inFrames == 0 || outCap == 0 {
		return 0, 0, nil
	}

	if r.inRate == r.outRate {
		n := inFrames
		if n > outCap {
			n = outCap
		}
		copy(out[:n*ch], in[:n*ch])
		if n > 0 {
			copy(r.history, in[(n-1)*ch:n*ch])
		}
		return n, n, nil
	}

	step := float64(r.inRate) / float64(r.outRate) // input-frame advance per output frame
	pos := r.fracPos
	outIdx := 0

	for outIdx < outCap {
		srcIdx := int(math.Floor(pos))
		frac := float32(pos - float64(srcIdx))
		if srcIdx+1 >= inFrames {
			break
		}
		for c := 0; c < ch; c++ {
			s0 := r.sampleAt(in, srcIdx, c)
			s1 := r.sampleAt(in, srcIdx+1, c)
			out[outIdx*ch+c] = s0 + (s1-s0)*frac
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
	r.fracPos = pos - float64(consumed)
	if consumed > 0 {
		copy(r.history, in[(consumed-1)*ch:consumed*ch])
	}
	return consumed, outIdx, nil
}

// sampleAt returns the sample at conceptual index idx (which may be -1,
// meaning "the last sample carried over from the previous call").
func (r *linearResampler) sampleAt(in []float32, idx, channel int) float32 {
	if idx < 0 {
		return r.history[channel]
	}
	return in[idx*r.channels+channel]
}

// Flush drains the interpolator's one frame of held-over history: with no
// further input, the "next" sample an in-flight interpolation was heading
// toward is silence, so Flush keeps producing the ramp from the held
// history sample down to zero for as long as the carried fractional
// position still falls within that single interpolation interval (spec
// §4.D "Tail flush... produces remaining output from internal history
// without consuming new input").
func (r *linearResampler) Flush(out []float32) (int, error) {
	ch := r.channels
	outCap := len(out) / ch
	if r.inRate == r.outRate {
		// Identity passthrough carries no interpolation state to drain.
		r.Reset()
		return 0, nil
	}

	step := float64(r.inRate) / float64(r.outRate)
	pos := r.fracPos
	outIdx := 0

	for outIdx < outCap && pos < 1 {
		frac := float32(pos)
		for c := 0; c < ch; c++ {
			out[outIdx*ch+c] = r.history[c] * (1 - frac)
		}
		outIdx++
		pos += step
	}

	r.Reset()
	return outIdx, nil
}
