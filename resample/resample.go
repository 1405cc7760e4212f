// Package resample implements arbitrary in->out sample-rate conversion with
// streaming state (spec §4.D), generalizing the teacher's two resamplers
// (internal/audio/resampler.go's linear-interpolation Resampler and
// internal/audio/polyphase.go's windowed-sinc PolyphaseResampler) from
// mono-only, one-shot helpers into multi-channel, streaming implementations
// of a single Resampler interface.
package resample

import "github.com/agalue/maudio/maresult"

// Resampler converts interleaved, multi-channel f32 frames from one sample
// rate to another, maintaining internal phase/history across calls (spec
// §3 "Resampler state").
type Resampler interface {
	// Process consumes from in (up to len(in)/Channels() frames) and
	// produces into out (up to len(out)/Channels() frames), returning the
	// number of input frames consumed and output frames produced. It
	// produces up to cap(out) frames or until input is exhausted,
	// whichever comes first (spec §4.D).
	//
	// realtime-safe: no allocation once the Resampler has been built.
	Process(in []float32, out []float32) (inConsumed, outProduced int, err error)

	// Flush produces any remaining output derived purely from internal
	// history, without consuming new input, and leaves the resampler at a
	// well-defined zero-phase state (spec §4.D "Tail flush").
	Flush(out []float32) (outProduced int, err error)

	// Reset clears internal history/phase to the zero-phase state.
	Reset()

	// SetRate changes the input/output rates, preserving phase unless the
	// caller also calls Reset (spec §4.D).
	SetRate(inRate, outRate int) error

	Channels() int
}

// Algorithm selects the resampling kernel.
type Algorithm int

const (
	// AlgorithmLinear is a fast, low-quality linear interpolator.
	AlgorithmLinear Algorithm = iota
	// AlgorithmSinc is a windowed-sinc FIR interpolator with configurable
	// tap count and window.
	AlgorithmSinc
)

// Window selects the FIR window function used by AlgorithmSinc (spec §4.D
// "sinc(taps, window)"). Ported from the teacher's hard-coded Hamming
// window (internal/audio/polyphase.go) generalized to a documented choice
// of two windows, since the real miniaudio resampling backend this spec is
// modeled on supports more than one.
type Window int

const (
	WindowHamming Window = iota
	WindowBlackman
)

// Config configures New.
type Config struct {
	InRate    int
	OutRate   int
	Channels  int
	Algorithm Algorithm

	// Taps is the FIR tap count for AlgorithmSinc. Ignored for
	// AlgorithmLinear. Defaults to 64 (the teacher's polyphase filter
	// length) if zero.
	Taps int
	// WindowFunc selects the FIR window for AlgorithmSinc. Ignored for
	// AlgorithmLinear.
	WindowFunc Window
}

// New builds a Resampler per cfg, returning maresult.ErrInvalidArgs for a
// non-positive rate or channel count (spec §4.D edge case).
func New(cfg Config) (Resampler, error) {
	if cfg.InRate <= 0 || cfg.OutRate <= 0 {
		return nil, maresult.New("resample", maresult.CodeInvalidArgs, "rates must be > 0")
	}
	if cfg.Channels <= 0 {
		return nil, maresult.New("resample", maresult.CodeInvalidArgs, "channels must be > 0")
	}
	switch cfg.Algorithm {
	case AlgorithmLinear:
		return newLinear(cfg.InRate, cfg.OutRate, cfg.Channels), nil
	case AlgorithmSinc:
		taps := cfg.Taps
		if taps == 0 {
			taps = 64
		}
		return newSinc(cfg.InRate, cfg.OutRate, cfg.Channels, taps, cfg.WindowFunc), nil
	default:
		return nil, maresult.New("resample", maresult.CodeInvalidArgs, "unknown algorithm")
	}
}
