package graph

import (
	"errors"

	"github.com/agalue/maudio/chanmix"
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
	"github.com/agalue/maudio/resample"
	"github.com/agalue/maudio/source"
)

// SourceNodeConfig describes the format a sourceNode's output bus runs at.
// When it differs from src.NativeFormat(), the node builds its own
// channel-remix and/or resample stage: the same two building blocks
// convert.DataConverter composes, used here directly in f32 since graph
// buses never carry encoded bytes (spec §4.H/§4.F).
type SourceNodeConfig struct {
	OutLayout        pcm.Layout
	OutRate          int
	MaxFramesPerPull int

	ResampleAlgorithm resample.Algorithm
	ResampleTaps      int
	ResampleWindow    resample.Window
	ChanMixMode       chanmix.Mode
	ChanMixMatrix     [][]float32
}

// sourceNode wraps a source.Source as a zero-input, one-output graph node,
// grounded on examples/duplex_effect.c's role for ma_waveform: a node with
// nothing upstream that simply keeps pulling from its backing source each
// period.
type sourceNode struct {
	src source.Source

	mix       *chanmix.Converter // nil if channel counts already match
	resampler resample.Resampler // nil if rates already match

	nativeChannels int
	outChannels    int
	nativeBuf      []float32 // source's native-rate/channel read, reused each Process
	mixedBuf       []float32 // after channel remix, native rate, outChannels wide

	atEnd bool
}

// advanceChain switches sn.src to the next source in line if the current
// one implements source.Chained and has one (spec §3 "chained sources
// expose next-source transition"). Chained sources must share the original
// source's native channel count; sourceNode's remix/resample stages were
// built once at construction for that format and are never rebuilt.
func (sn *sourceNode) advanceChain() bool {
	ch, ok := sn.src.(source.Chained)
	if !ok {
		return false
	}
	next, ok := ch.NextSource()
	if !ok {
		return false
	}
	sn.src = next
	sn.atEnd = false
	return true
}

// NewSourceNode builds a Config for a node that reads from src, inserting a
// channel-remix and/or resample stage when src's native format doesn't
// match cfg.
func NewSourceNode(src source.Source, cfg SourceNodeConfig) (Config, error) {
	native := src.NativeFormat()
	sn := &sourceNode{
		src:            src,
		nativeChannels: native.Layout.Channels,
		outChannels:    cfg.OutLayout.Channels,
	}

	if native.Layout.Channels != cfg.OutLayout.Channels {
		var mix *chanmix.Converter
		var err error
		if cfg.ChanMixMode == chanmix.ModeWeightedMatrix {
			mix, err = chanmix.NewWithMatrix(native.Layout, cfg.OutLayout, cfg.ChanMixMatrix)
		} else {
			mix, err = chanmix.New(native.Layout, cfg.OutLayout, chanmix.ModeMixdownStandard)
		}
		if err != nil {
			return Config{}, err
		}
		sn.mix = mix
	}

	if native.SampleRate != cfg.OutRate {
		r, err := resample.New(resample.Config{
			InRate:     native.SampleRate,
			OutRate:    cfg.OutRate,
			Channels:   cfg.OutLayout.Channels,
			Algorithm:  cfg.ResampleAlgorithm,
			Taps:       cfg.ResampleTaps,
			WindowFunc: cfg.ResampleWindow,
		})
		if err != nil {
			return Config{}, err
		}
		sn.resampler = r
	}

	maxFrames := cfg.MaxFramesPerPull
	if maxFrames <= 0 {
		maxFrames = 4096
	}
	if native.SampleRate < cfg.OutRate {
		// Upsampling needs fewer native-rate frames than output frames;
		// size the native buffer to that ratio plus a few frames of slack.
		maxFrames = maxFrames*native.SampleRate/cfg.OutRate + 8
	}
	sn.nativeBuf = make([]float32, maxFrames*native.Layout.Channels)
	sn.mixedBuf = make([]float32, maxFrames*cfg.OutLayout.Channels)

	return Config{
		OutputBuses: []BusSpec{{Channels: cfg.OutLayout.Channels}},
		Processor:   sn,
	}, nil
}

// Process is realtime-safe: every stage below reuses a buffer sized at
// construction time.
func (sn *sourceNode) Process(inputs [][]float32, outputs [][]float32, frameCount int) (int, error) {
	if sn.atEnd {
		return 0, maresult.ErrAtEnd
	}
	out := outputs[0]

	if sn.mix == nil && sn.resampler == nil {
		n, err := sn.src.Read(out, frameCount)
		if err != nil && errors.Is(err, maresult.ErrAtEnd) {
			if sn.advanceChain() {
				n, err = sn.src.Read(out, frameCount)
			}
		}
		if err != nil && errors.Is(err, maresult.ErrAtEnd) {
			sn.atEnd = true
		} else if err != nil {
			return 0, err
		}
		return n, err
	}

	need := frameCount
	if capFrames := len(sn.nativeBuf) / sn.nativeChannels; need > capFrames {
		need = capFrames
	}

	read, readErr := sn.src.Read(sn.nativeBuf, need)
	if readErr != nil && errors.Is(readErr, maresult.ErrAtEnd) && sn.advanceChain() {
		read, readErr = sn.src.Read(sn.nativeBuf, need)
	}
	if readErr != nil && !errors.Is(readErr, maresult.ErrAtEnd) {
		return 0, readErr
	}
	if readErr != nil {
		sn.atEnd = true
	}

	stage := sn.nativeBuf[:read*sn.nativeChannels]
	if sn.mix != nil {
		if err := sn.mix.Process(stage, sn.mixedBuf, read); err != nil {
			return 0, err
		}
		stage = sn.mixedBuf[:read*sn.outChannels]
	}

	if sn.resampler == nil {
		n := read
		if n*sn.outChannels > len(out) {
			n = len(out) / sn.outChannels
		}
		copy(out[:n*sn.outChannels], stage[:n*sn.outChannels])
		return n, readErr
	}

	_, produced, err := sn.resampler.Process(stage, out)
	if err != nil {
		return 0, err
	}
	return produced, readErr
}
