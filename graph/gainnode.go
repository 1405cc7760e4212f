package graph

import "github.com/agalue/maudio/maresult"

// gainNode scales its single input bus by a fixed gain, passthrough in
// shape (same channel count in and out), grounded on
// examples/simple_spatialization.c's per-channel weighted playback volume.
type gainNode struct {
	gain float32
}

// NewGainNode builds a Config for a one-input, one-output gain node
// operating at channels-wide buses.
func NewGainNode(channels int, gain float32) Config {
	return Config{
		InputBuses:  []BusSpec{{Channels: channels}},
		OutputBuses: []BusSpec{{Channels: channels}},
		Processor:   &gainNode{gain: gain},
	}
}

func (n *gainNode) Process(inputs [][]float32, outputs [][]float32, frameCount int) (int, error) {
	in := inputs[0]
	out := outputs[0]
	if in == nil {
		for i := range out {
			out[i] = 0
		}
		return frameCount, nil
	}
	for i := 0; i < len(in) && i < len(out); i++ {
		out[i] = in[i] * n.gain
	}
	return frameCount, nil
}

// SetGain updates the node's gain. Safe to call from a control thread
// concurrently with ReadPCMFrames since it's a single aligned float32
// store.
func (n *gainNode) SetGain(gain float32) { n.gain = gain }

// SetGain updates a gain node's volume by NodeID. Returns
// maresult.ErrInvalidArgs if id doesn't name a node built with
// NewGainNode.
func (g *Graph) SetGain(id NodeID, gain float32) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	g.mu.Unlock()
	if !ok {
		return maresult.New("graph", maresult.CodeInvalidArgs, "unknown node")
	}
	gn, ok := n.proc.(*gainNode)
	if !ok {
		return maresult.New("graph", maresult.CodeInvalidArgs, "not a gain node")
	}
	gn.SetGain(gain)
	return nil
}
