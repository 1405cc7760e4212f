package graph

import (
	"errors"
	"testing"

	"github.com/agalue/maudio/maresult"
	"github.com/stretchr/testify/require"
)

func constantProcessor(v float32) Processor {
	return ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
		out := outputs[0]
		for i := 0; i < frameCount; i++ {
			out[i] = v
		}
		return frameCount, nil
	})
}

// TestGraphSummationIsExact covers spec §8 scenario 3: two sources of 0.5
// summed at a single bus must produce exactly 1.0 per sample, to 1e-6.
func TestGraphSummationIsExact(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 64, MaxChannels: 1, MaxSimultaneousBuses: 8})

	a, err := g.AddNode(Config{OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0.5)})
	require.NoError(t, err)
	b, err := g.AddNode(Config{OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0.5)})
	require.NoError(t, err)

	sum, err := g.AddNode(Config{
		InputBuses:  []BusSpec{{Channels: 1}},
		OutputBuses: []BusSpec{{Channels: 1}},
		Processor: ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
			copy(outputs[0], inputs[0][:frameCount])
			return frameCount, nil
		}),
	})
	require.NoError(t, err)

	require.NoError(t, g.AttachOutputBus(a, 0, sum, 0, 1.0))
	require.NoError(t, g.AttachOutputBus(b, 0, sum, 0, 1.0))
	require.NoError(t, g.SetEndpoint(sum))

	out := make([]float32, 32)
	n, err := g.ReadPCMFrames(out, 32)
	require.NoError(t, err)
	require.Equal(t, 32, n)
	for i, v := range out {
		require.InDelta(t, 1.0, v, 1e-6, "sample %d", i)
	}
}

// TestFanOutProcessesNodeOnce verifies a node attached to two different
// downstream buses runs its Processor exactly once per ReadPCMFrames call.
func TestFanOutProcessesNodeOnce(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 32, MaxChannels: 1, MaxSimultaneousBuses: 8})

	calls := 0
	src, err := g.AddNode(Config{
		OutputBuses: []BusSpec{{Channels: 1}},
		Processor: ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
			calls++
			for i := range outputs[0] {
				outputs[0][i] = 1
			}
			return frameCount, nil
		}),
	})
	require.NoError(t, err)

	passthrough := func() Processor {
		return ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
			copy(outputs[0], inputs[0][:frameCount])
			return frameCount, nil
		})
	}
	c1, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: passthrough()})
	require.NoError(t, err)
	c2, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: passthrough()})
	require.NoError(t, err)
	sum, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: passthrough()})
	require.NoError(t, err)

	require.NoError(t, g.AttachOutputBus(src, 0, c1, 0, 1.0))
	require.NoError(t, g.AttachOutputBus(src, 0, c2, 0, 1.0))
	require.NoError(t, g.AttachOutputBus(c1, 0, sum, 0, 1.0))
	require.NoError(t, g.AttachOutputBus(c2, 0, sum, 0, 1.0))
	require.NoError(t, g.SetEndpoint(sum))

	out := make([]float32, 16)
	_, err = g.ReadPCMFrames(out, 16)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "source node must be pulled exactly once despite two downstream consumers")
	for _, v := range out {
		require.InDelta(t, 2.0, v, 1e-6)
	}
}

// TestPartialOutputPropagates covers spec §8 scenario 4: an upstream source
// that runs out mid-period reports its reduced frame count, and the graph
// does not fabricate extra frames to fill the request; a subsequent pull
// reports zero frames with an at-end error.
func TestPartialOutputPropagates(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 256, MaxChannels: 1, MaxSimultaneousBuses: 8})

	remaining := 100
	src, err := g.AddNode(Config{
		OutputBuses: []BusSpec{{Channels: 1}},
		Processor: ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
			if remaining <= 0 {
				return 0, maresult.ErrAtEnd
			}
			n := frameCount
			if n > remaining {
				n = remaining
			}
			remaining -= n
			for i := 0; i < n; i++ {
				outputs[0][i] = 1
			}
			return n, nil
		}),
	})
	require.NoError(t, err)
	require.NoError(t, g.SetEndpoint(src))

	out := make([]float32, 200)
	n, err := g.ReadPCMFrames(out, 200)
	require.NoError(t, err)
	require.Equal(t, 100, n)

	n, err = g.ReadPCMFrames(out, 200)
	require.Equal(t, 0, n)
	require.True(t, errors.Is(err, maresult.ErrAtEnd))
}

func TestAttachRejectsChannelMismatch(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 32, MaxChannels: 2, MaxSimultaneousBuses: 4})
	a, err := g.AddNode(Config{OutputBuses: []BusSpec{{Channels: 2}}, Processor: constantProcessor(0)})
	require.NoError(t, err)
	b, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0)})
	require.NoError(t, err)

	err = g.AttachOutputBus(a, 0, b, 0, 1.0)
	require.Error(t, err)
	code, _ := maresult.CodeOf(err)
	require.Equal(t, maresult.CodeFormatNotSupported, code)
}

func TestAttachRejectsCycle(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 32, MaxChannels: 1, MaxSimultaneousBuses: 4})
	a, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0)})
	require.NoError(t, err)
	b, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0)})
	require.NoError(t, err)

	require.NoError(t, g.AttachOutputBus(a, 0, b, 0, 1.0))
	err = g.AttachOutputBus(b, 0, a, 0, 1.0)
	require.Error(t, err)
}

func TestDetachIsIdempotent(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 32, MaxChannels: 1, MaxSimultaneousBuses: 4})
	a, err := g.AddNode(Config{OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(1)})
	require.NoError(t, err)
	b, err := g.AddNode(Config{InputBuses: []BusSpec{{Channels: 1}}, OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(0)})
	require.NoError(t, err)

	require.NoError(t, g.AttachOutputBus(a, 0, b, 0, 1.0))
	require.NoError(t, g.DetachOutputBus(a, 0, b, 0))
	require.NoError(t, g.DetachOutputBus(a, 0, b, 0)) // no-op, must not error
}

func TestAllowNullInputPassesNilWhenDisconnected(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 16, MaxChannels: 1, MaxSimultaneousBuses: 4})
	sawNil := false
	n, err := g.AddNode(Config{
		InputBuses:  []BusSpec{{Channels: 1}},
		OutputBuses: []BusSpec{{Channels: 1}},
		Flags:       Flags{AllowNullInput: true},
		Processor: ProcessorFunc(func(inputs, outputs [][]float32, frameCount int) (int, error) {
			sawNil = inputs[0] == nil
			return frameCount, nil
		}),
	})
	require.NoError(t, err)
	require.NoError(t, g.SetEndpoint(n))

	out := make([]float32, 16)
	_, err = g.ReadPCMFrames(out, 16)
	require.NoError(t, err)
	require.True(t, sawNil)
}

func TestGainNodeScales(t *testing.T) {
	g := New(GraphConfig{MaxFramesPerPull: 16, MaxChannels: 1, MaxSimultaneousBuses: 4})
	src, err := g.AddNode(Config{OutputBuses: []BusSpec{{Channels: 1}}, Processor: constantProcessor(1.0)})
	require.NoError(t, err)
	gain, err := g.AddNode(NewGainNode(1, 0.25))
	require.NoError(t, err)
	require.NoError(t, g.AttachOutputBus(src, 0, gain, 0, 1.0))
	require.NoError(t, g.SetEndpoint(gain))

	out := make([]float32, 8)
	n, err := g.ReadPCMFrames(out, 8)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	for _, v := range out {
		require.InDelta(t, 0.25, v, 1e-6)
	}

	require.NoError(t, g.SetGain(gain, 0.5))
	_, err = g.ReadPCMFrames(out, 8)
	require.NoError(t, err)
	for _, v := range out {
		require.InDelta(t, 0.5, v, 1e-6)
	}
}
