// Package convert implements the Data Conversion Pipeline: a single
// streaming stage composing sample-format conversion, channel remix, and
// resampling with exact frame accounting (spec §4.F). It generalizes the
// teacher's ad hoc per-call conversions (bytesToFloat32 in capture.go,
// binary.LittleEndian.PutUint32 in playback.go, ResampleInPlace/
// PolyphaseResampler) into one composed, reusable stage.
package convert

import (
	"github.com/agalue/maudio/chanmix"
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
	"github.com/agalue/maudio/resample"
)

// Config describes the full input->output conversion a DataConverter
// performs in one Process call.
type Config struct {
	InFormat  pcm.Format
	InLayout  pcm.Layout
	InRate    int
	OutFormat pcm.Format
	OutLayout pcm.Layout
	OutRate   int

	ResampleAlgorithm resample.Algorithm
	ResampleTaps      int
	ResampleWindow    resample.Window

	// ChanMixMode selects how InLayout is mapped to OutLayout when channel
	// counts differ. Defaults to ModeMixdownStandard if zero-valued and
	// channel counts differ, ModeIdentity if they match.
	ChanMixMode chanmix.Mode
	// ChanMixMatrix is used when ChanMixMode == ModeWeightedMatrix.
	ChanMixMatrix [][]float32
}

// DataConverter composes (format-in -> f32) -> channel-pre -> resampler ->
// channel-post -> (f32 -> format-out) into a single streaming stage (spec
// §4.F). The resampler always operates at min(InLayout.Channels,
// OutLayout.Channels) channels, so the pre-converter remixes to that count
// before resampling and the post-converter remixes from it afterward.
type DataConverter struct {
	cfg Config

	identity bool // true when format, channels, and rate are all unchanged

	preMix  *chanmix.Converter // InLayout -> midLayout (channels = min(in,out))
	postMix *chanmix.Converter // midLayout -> OutLayout
	mid     pcm.Layout

	resampler resample.Resampler

	// scratch buffers, sized once at Build and reused across Process calls
	// (no allocation on the audio path, spec §9).
	inF32   []float32 // decoded input, InLayout.Channels wide
	midIn   []float32 // pre-mixed, mid.Channels wide, pre-resample
	midOut  []float32 // resampled, mid.Channels wide, post-resample
	outF32  []float32 // post-mixed, OutLayout.Channels wide
	scratch int        // frame capacity the scratch buffers were sized for
}

// Build constructs a DataConverter from cfg.
func Build(cfg Config) (*DataConverter, error) {
	if cfg.InRate <= 0 || cfg.OutRate <= 0 {
		return nil, maresult.New("convert", maresult.CodeInvalidArgs, "rates must be > 0")
	}
	if !cfg.InFormat.Valid() || !cfg.OutFormat.Valid() {
		return nil, maresult.New("convert", maresult.CodeFormatNotSupported, "")
	}

	dc := &DataConverter{cfg: cfg}

	midChannels := cfg.InLayout.Channels
	if cfg.OutLayout.Channels < midChannels {
		midChannels = cfg.OutLayout.Channels
	}
	mid, err := pcm.NewLayout(midChannels, nil)
	if err != nil {
		return nil, err
	}
	dc.mid = mid

	preMix, err := buildMix(cfg.InLayout, mid, cfg)
	if err != nil {
		return nil, err
	}
	dc.preMix = preMix

	postMix, err := buildMix(mid, cfg.OutLayout, cfg)
	if err != nil {
		return nil, err
	}
	dc.postMix = postMix

	algo := cfg.ResampleAlgorithm
	resampler, err := resample.New(resample.Config{
		InRate:     cfg.InRate,
		OutRate:    cfg.OutRate,
		Channels:   midChannels,
		Algorithm:  algo,
		Taps:       cfg.ResampleTaps,
		WindowFunc: cfg.ResampleWindow,
	})
	if err != nil {
		return nil, err
	}
	dc.resampler = resampler

	dc.identity = cfg.InFormat == cfg.OutFormat &&
		cfg.InLayout.Channels == cfg.OutLayout.Channels &&
		cfg.InRate == cfg.OutRate

	return dc, nil
}

func buildMix(in, out pcm.Layout, cfg Config) (*chanmix.Converter, error) {
	if in.Channels == out.Channels {
		return chanmix.New(in, out, chanmix.ModeIdentity)
	}
	mode := cfg.ChanMixMode
	if mode == chanmix.ModeWeightedMatrix {
		return chanmix.NewWithMatrix(in, out, cfg.ChanMixMatrix)
	}
	return chanmix.New(in, out, chanmix.ModeMixdownStandard)
}

// ensureScratch grows (never shrinks) the scratch buffers to accommodate at
// least frames input frames (and a commensurate amount of output). This may
// allocate; callers that need a hard realtime guarantee should call
// PreallocateFrames once up front before using Process from the audio
// thread (analogous to the node graph's one-shot scratch pool, spec §4.H).
func (dc *DataConverter) ensureScratch(frames int) {
	if frames <= dc.scratch {
		return
	}
	dc.scratch = frames
	dc.inF32 = make([]float32, frames*dc.cfg.InLayout.Channels)
	dc.midIn = make([]float32, frames*dc.mid.Channels)
	// Output frame count can exceed input frame count when upsampling;
	// size generously to the larger of the two rates' ratio.
	outCapacityFrames := frames
	if dc.cfg.OutRate > dc.cfg.InRate {
		outCapacityFrames = frames*dc.cfg.OutRate/dc.cfg.InRate + 8
	}
	dc.midOut = make([]float32, outCapacityFrames*dc.mid.Channels)
	dc.outF32 = make([]float32, outCapacityFrames*dc.cfg.OutLayout.Channels)
}

// PreallocateFrames grows the internal scratch buffers up front so later
// Process calls up to maxFrames input frames never allocate.
//
// realtime-safe to call once during setup; not realtime-safe itself (it
// allocates).
func (dc *DataConverter) PreallocateFrames(maxFrames int) {
	dc.ensureScratch(maxFrames)
}

// Process converts inFrames frames of raw bytes in from cfg.InFormat to
// cfg.OutFormat, writing as many frames as fit in out (capacity outFrames),
// and returns the number of input frames consumed and output frames
// produced (spec §4.F / §6).
func (dc *DataConverter) Process(in []byte, inFrames int, out []byte, outFrames int) (inConsumed, outProduced int, err error) {
	if dc.identity {
		bpf, ferr := pcm.BytesPerFrame(dc.cfg.InFormat, dc.cfg.InLayout.Channels)
		if ferr != nil {
			return 0, 0, ferr
		}
		n := inFrames
		if n > outFrames {
			n = outFrames
		}
		copy(out[:n*bpf], in[:n*bpf])
		return n, n, nil
	}

	dc.ensureScratch(maxInt(inFrames, outFrames))

	if err := pcm.DecodeF32(dc.cfg.InFormat, dc.cfg.InLayout.Channels, in, dc.inF32, inFrames); err != nil {
		return 0, 0, err
	}

	if err := dc.preMix.Process(dc.inF32, dc.midIn, inFrames); err != nil {
		return 0, 0, err
	}

	consumed, produced, err := dc.resampler.Process(
		dc.midIn[:inFrames*dc.mid.Channels],
		dc.midOut[:cap(dc.midOut)],
	)
	if err != nil {
		return 0, 0, err
	}
	if produced > outFrames {
		produced = outFrames
	}

	if err := dc.postMix.Process(dc.midOut, dc.outF32, produced); err != nil {
		return 0, 0, err
	}

	if err := pcm.EncodeF32(dc.cfg.OutFormat, dc.cfg.OutLayout.Channels, dc.outF32, out, produced); err != nil {
		return 0, 0, err
	}

	return consumed, produced, nil
}

// Flush drains any output the resampler stage is still holding back from
// internal history after the last Process call in a stream (spec §4.D "Tail
// flush"), routing it through the same post-mix and encode stages Process
// uses so the tail reaches the caller in cfg.OutFormat/cfg.OutLayout. Call
// at most once per stream, after the final Process call and before
// discarding or reusing the DataConverter for a new stream.
func (dc *DataConverter) Flush(out []byte, outFrames int) (outProduced int, err error) {
	if dc.identity {
		return 0, nil
	}
	dc.ensureScratch(outFrames)

	produced, err := dc.resampler.Flush(dc.midOut[:cap(dc.midOut)])
	if err != nil {
		return 0, err
	}
	if produced > outFrames {
		produced = outFrames
	}

	if err := dc.postMix.Process(dc.midOut, dc.outF32, produced); err != nil {
		return 0, err
	}
	if err := pcm.EncodeF32(dc.cfg.OutFormat, dc.cfg.OutLayout.Channels, dc.outF32, out, produced); err != nil {
		return 0, err
	}
	return produced, nil
}

// RequiredInputFrameCount returns the number of input frames needed to
// produce at least outFrames output frames, deterministically, including
// resampler lookahead (spec §4.F/§8).
func (dc *DataConverter) RequiredInputFrameCount(outFrames int) int {
	if dc.cfg.InRate == dc.cfg.OutRate {
		return outFrames
	}
	n := ceilDiv(outFrames*dc.cfg.InRate, dc.cfg.OutRate)
	return n + resamplerLookahead(dc.cfg)
}

// ExpectedOutputFrameCount returns the number of output frames Process is
// expected to produce given inFrames input frames (spec §8 invariant:
// expected_output_frames(n) <= n*(out/in) + lookahead).
func (dc *DataConverter) ExpectedOutputFrameCount(inFrames int) int {
	if dc.cfg.InRate == dc.cfg.OutRate {
		return inFrames
	}
	n := inFrames * dc.cfg.OutRate / dc.cfg.InRate
	return n + resamplerLookahead(dc.cfg)
}

func resamplerLookahead(cfg Config) int {
	if cfg.ResampleAlgorithm == resample.AlgorithmSinc {
		taps := cfg.ResampleTaps
		if taps == 0 {
			taps = 64
		}
		return taps / 2
	}
	return 1
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
