// Package graph implements the pull-model node graph engine (spec §4.H): a
// DAG of DSP nodes, each with input/output buses carrying interleaved f32
// samples, driven by a single ReadPCMFrames call from the device callback.
package graph

import "github.com/agalue/maudio/maresult"

// NodeID addresses a node in a Graph's arena. Stable for the node's
// lifetime; never reused after RemoveNode, so a dangling NodeID is always
// detectable (spec §9: "store nodes in an arena addressed by stable
// indices... this eliminates any raw back-pointer cycle").
type NodeID uint64

// BusSpec declares one input or output bus's channel count. Flexible input
// buses accept a connection whose channel count doesn't match (spec §4.H:
// "Attach rejects... channel-count mismatches unless the destination bus is
// declared flexible").
type BusSpec struct {
	Channels int
	Flexible bool
}

// Flags are the per-node behavior switches named in spec §3.
type Flags struct {
	// Passthrough: when input/output bus shapes match, the graph routes
	// directly without invoking Process (spec §4.H).
	Passthrough bool
	// Continuous: always processed even with no downstream consumer
	// pulling this period, so sources that must not lose phase keep
	// advancing (spec §4.H).
	Continuous bool
	// AllowNullInput: a disconnected input bus is passed as nil instead
	// of a zeroed buffer; the node must tolerate that (spec §4.H).
	AllowNullInput bool
}

// State is a node's lifecycle state (spec §4.H: "initialized -> started <->
// stopped -> uninitialized").
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateStarted
	StateStopped
)

// Processor is the node's DSP callback. frameCount is the number of frames
// requested; a Processor may produce fewer (signaling partial output, spec
// §4.H) by returning processed < frameCount.
//
// realtime-safe: implementations must not allocate, block, or take
// contended locks; they run on the audio thread via Graph.ReadPCMFrames.
type Processor interface {
	Process(inputs [][]float32, outputs [][]float32, frameCount int) (processed int, err error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(inputs [][]float32, outputs [][]float32, frameCount int) (int, error)

func (f ProcessorFunc) Process(inputs, outputs [][]float32, frameCount int) (int, error) {
	return f(inputs, outputs, frameCount)
}

// node is the internal arena entry for one attached node.
type node struct {
	id          NodeID
	inputBuses  []BusSpec
	outputBuses []BusSpec
	proc        Processor
	flags       Flags
	state       State

	// cache* memoize one node's Process result for the current
	// ReadPCMFrames call, so a node with more than one downstream
	// consumer (fan-out across its output buses, or the same bus
	// attached to two destinations) runs its Processor exactly once per
	// period instead of once per puller (spec §4.H implies fan-out via
	// "per-output-bus connection list").
	cacheOuts      [][]float32
	cacheGen       uint64
	cacheProcessed int
	cacheErr       error

	// scratchInputs/scratchOuts are the per-pull [][]float32 headers
	// pull() fills in and hands to Processor.Process. Sized once to
	// len(inputBuses)/len(outputBuses) at AddNode time so a cache-miss
	// pull never allocates the outer slice-of-slices itself (spec §5/§9:
	// "audio path must be allocation-free"); only the per-bus backing
	// buffers come from the graph's scratch pool.
	scratchInputs [][]float32
	scratchOuts   [][]float32
}

func newNode(id NodeID, in, out []BusSpec, proc Processor, flags Flags) *node {
	return &node{id: id, inputBuses: in, outputBuses: out, proc: proc, flags: flags, state: StateStarted}
}

// Config describes a node to be added with Graph.AddNode.
type Config struct {
	InputBuses  []BusSpec
	OutputBuses []BusSpec
	Processor   Processor
	Flags       Flags
}

func validateConfig(cfg Config) error {
	if cfg.Processor == nil && !cfg.Flags.Passthrough {
		return maresult.New("graph", maresult.CodeInvalidArgs, "processor required unless passthrough")
	}
	for _, b := range cfg.InputBuses {
		if b.Channels <= 0 {
			return maresult.New("graph", maresult.CodeInvalidArgs, "bus channel count must be > 0")
		}
	}
	for _, b := range cfg.OutputBuses {
		if b.Channels <= 0 {
			return maresult.New("graph", maresult.CodeInvalidArgs, "bus channel count must be > 0")
		}
	}
	return nil
}
