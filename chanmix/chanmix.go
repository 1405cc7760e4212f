// Package chanmix maps N input channels to M output channels via an
// identity pass-through, a documented standard mixdown, or an explicit
// weight matrix (spec §4.E).
package chanmix

import (
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
)

// Mode selects how a Converter maps input channels to output channels.
type Mode int

const (
	ModeIdentity Mode = iota
	ModeMixdownStandard
	ModeWeightedMatrix
)

// Converter maps frames from an input layout to an output layout. Built
// once, then Process is stateless and realtime-safe (spec §4.E: "Operation
// process(...) is stateless").
type Converter struct {
	in, out Layout
	mode    Mode
	// weights[o][i] is the contribution of input channel i to output
	// channel o. nil when mode == ModeIdentity (in == out channel count,
	// handled by a direct copy).
	weights [][]float32
}

// Layout is a minimal restatement of pcm.Layout kept local so chanmix
// doesn't need its callers to import pcm just to build one.
type Layout = pcm.Layout

// New builds a Converter for the identity or standard-mixdown modes. For
// ModeWeightedMatrix use NewWithMatrix instead.
func New(in, out Layout, mode Mode) (*Converter, error) {
	switch mode {
	case ModeIdentity:
		if in.Channels != out.Channels {
			return nil, maresult.New("chanmix", maresult.CodeInvalidArgs, "identity mode requires equal channel counts")
		}
		return &Converter{in: in, out: out, mode: mode}, nil
	case ModeMixdownStandard:
		w, err := standardMixdownWeights(in, out)
		if err != nil {
			return nil, err
		}
		return &Converter{in: in, out: out, mode: mode, weights: w}, nil
	default:
		return nil, maresult.New("chanmix", maresult.CodeInvalidArgs, "use NewWithMatrix for ModeWeightedMatrix")
	}
}

// NewMixdownWithOptions builds a ModeMixdownStandard Converter with tunable
// options (e.g. enabling LFE folding), per spec §4.E.
func NewMixdownWithOptions(in, out Layout, opts MixdownOptions) (*Converter, error) {
	w, err := standardMixdownWeightsWithOptions(in, out, opts)
	if err != nil {
		return nil, err
	}
	return &Converter{in: in, out: out, mode: ModeMixdownStandard, weights: w}, nil
}

// NewWithMatrix builds a Converter from an explicit weight matrix
// (weights[o][i]), resolving the §9 open question on exotic layouts: the
// engine refuses to guess past the documented standard table, and this is
// the documented escape hatch for callers who know their own layout.
func NewWithMatrix(in, out Layout, weights [][]float32) (*Converter, error) {
	if len(weights) != out.Channels {
		return nil, maresult.New("chanmix", maresult.CodeInvalidArgs, "weights must have out.Channels rows")
	}
	for _, row := range weights {
		if len(row) != in.Channels {
			return nil, maresult.New("chanmix", maresult.CodeInvalidArgs, "each weights row must have in.Channels columns")
		}
	}
	return &Converter{in: in, out: out, mode: ModeWeightedMatrix, weights: weights}, nil
}

// InChannels/OutChannels report the converter's fixed channel counts.
func (c *Converter) InChannels() int  { return c.in.Channels }
func (c *Converter) OutChannels() int { return c.out.Channels }

// Process converts frameCount interleaved f32 frames from in to out.
//
// realtime-safe: no allocation; identity mode is a single copy, weighted
// modes iterate output channels outermost for cache locality (spec §4.E).
func (c *Converter) Process(in, out []float32, frameCount int) error {
	inCh, outCh := c.in.Channels, c.out.Channels
	if len(in) < frameCount*inCh {
		return maresult.New("chanmix", maresult.CodeInvalidArgs, "in too short")
	}
	if len(out) < frameCount*outCh {
		return maresult.New("chanmix", maresult.CodeInvalidArgs, "out too short")
	}

	if c.mode == ModeIdentity {
		copy(out[:frameCount*outCh], in[:frameCount*inCh])
		return nil
	}

	for o := 0; o < outCh; o++ {
		row := c.weights[o]
		for f := 0; f < frameCount; f++ {
			var acc float32
			base := f * inCh
			for i := 0; i < inCh; i++ {
				w := row[i]
				if w != 0 {
					acc += in[base+i] * w
				}
			}
			out[f*outCh+o] = acc
		}
	}
	return nil
}
