package graph

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/agalue/maudio/maresult"
)

// Connection is one edge in the graph's DAG, stored by arena index rather
// than pointer so the structure can never contain a raw cycle the garbage
// collector would need to reason about (spec §9).
type Connection struct {
	UpstreamID    NodeID
	UpstreamBus   int
	DownstreamID  NodeID
	DownstreamBus int
	Gain          float32
}

// topology is the immutable snapshot swapped in atomically on every
// AttachOutputBus/DetachOutputBus/RemoveNode, so Graph.ReadPCMFrames (the
// audio thread) never observes a partially mutated connection list (spec
// §5: "every topology mutation is a single release-store of a new
// topology-generation counter that the audio thread tests on entry").
type topology struct {
	connections []Connection
	// incoming[id][bus] lists the connections feeding that input bus, in
	// attach order, so summation order is deterministic (spec §4.H).
	incoming map[NodeID]map[int][]Connection
}

func newTopology() *topology {
	return &topology{incoming: make(map[NodeID]map[int][]Connection)}
}

func (t *topology) clone() *topology {
	n := newTopology()
	n.connections = append(n.connections, t.connections...)
	for id, buses := range t.incoming {
		m := make(map[int][]Connection, len(buses))
		for bus, conns := range buses {
			m[bus] = append([]Connection(nil), conns...)
		}
		n.incoming[id] = m
	}
	return n
}

// Graph is a DAG of Processor nodes pulled synchronously from a single
// ReadPCMFrames call (spec §4.H). Control-side mutation (AddNode,
// AttachOutputBus, DetachOutputBus, SetOutputBusVolume) may run on any
// thread; the audio thread only ever calls ReadPCMFrames.
type Graph struct {
	mu       sync.Mutex // serializes control-side mutators only
	nodes    map[NodeID]*node
	nextID   NodeID
	topology atomic.Pointer[topology]

	maxFramesPerPull int
	scratch          [][]float32
	scratchNext      int
	endpoint         NodeID
	gen              uint64
}

// GraphConfig configures a Graph's scratch buffer pool sizing (spec §4.H: "a
// one-shot scratch-buffer pool sized to
// max_simultaneous_buses * max_frames_per_pull * bytes_per_frame_f32 * max_channels").
type GraphConfig struct {
	MaxSimultaneousBuses int
	MaxFramesPerPull     int
	MaxChannels          int
}

// New builds an empty Graph with a scratch pool pre-sized per cfg.
func New(cfg GraphConfig) *Graph {
	if cfg.MaxSimultaneousBuses <= 0 {
		cfg.MaxSimultaneousBuses = 32
	}
	if cfg.MaxFramesPerPull <= 0 {
		cfg.MaxFramesPerPull = 4096
	}
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = 8
	}
	g := &Graph{
		nodes:            make(map[NodeID]*node),
		maxFramesPerPull: cfg.MaxFramesPerPull,
		scratch:          make([][]float32, cfg.MaxSimultaneousBuses),
	}
	for i := range g.scratch {
		g.scratch[i] = make([]float32, cfg.MaxFramesPerPull*cfg.MaxChannels)
	}
	g.topology.Store(newTopology())
	return g
}

// AddNode attaches a new node to the arena and returns its stable ID.
func (g *Graph) AddNode(cfg Config) (NodeID, error) {
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := g.nextID
	n := newNode(id, cfg.InputBuses, cfg.OutputBuses, cfg.Processor, cfg.Flags)
	n.cacheOuts = make([][]float32, len(cfg.OutputBuses))
	for i, b := range cfg.OutputBuses {
		n.cacheOuts[i] = make([]float32, g.maxFramesPerPull*b.Channels)
	}
	n.scratchInputs = make([][]float32, len(cfg.InputBuses))
	n.scratchOuts = make([][]float32, len(cfg.OutputBuses))
	g.nodes[id] = n
	return id, nil
}

// RemoveNode detaches all connections touching id and removes it from the
// arena. id is never reused (spec §9).
func (g *Graph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return maresult.New("graph", maresult.CodeInvalidArgs, "unknown node")
	}
	cur := g.topology.Load()
	next := newTopology()
	for _, c := range cur.connections {
		if c.UpstreamID == id || c.DownstreamID == id {
			continue
		}
		next.addLocked(c)
	}
	g.topology.Store(next)
	delete(g.nodes, id)
	return nil
}

func (t *topology) addLocked(c Connection) {
	t.connections = append(t.connections, c)
	if t.incoming[c.DownstreamID] == nil {
		t.incoming[c.DownstreamID] = make(map[int][]Connection)
	}
	t.incoming[c.DownstreamID][c.DownstreamBus] = append(t.incoming[c.DownstreamID][c.DownstreamBus], c)
}

// AttachOutputBus connects upstream's output bus to downstream's input bus.
// Rejects a channel-count mismatch unless the destination bus is declared
// flexible, and rejects any connection that would introduce a cycle (spec
// §4.H).
func (g *Graph) AttachOutputBus(upstreamID NodeID, upstreamBus int, downstreamID NodeID, downstreamBus int, gain float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	up, ok := g.nodes[upstreamID]
	if !ok || upstreamBus < 0 || upstreamBus >= len(up.outputBuses) {
		return maresult.New("graph", maresult.CodeInvalidArgs, "invalid upstream bus")
	}
	down, ok := g.nodes[downstreamID]
	if !ok || downstreamBus < 0 || downstreamBus >= len(down.inputBuses) {
		return maresult.New("graph", maresult.CodeInvalidArgs, "invalid downstream bus")
	}
	dst := down.inputBuses[downstreamBus]
	src := up.outputBuses[upstreamBus]
	if !dst.Flexible && dst.Channels != src.Channels {
		return maresult.New("graph", maresult.CodeFormatNotSupported, "channel count mismatch on attach")
	}

	cur := g.topology.Load()
	next := cur.clone()
	c := Connection{UpstreamID: upstreamID, UpstreamBus: upstreamBus, DownstreamID: downstreamID, DownstreamBus: downstreamBus, Gain: gain}
	next.addLocked(c)
	if wouldCycle(next, downstreamID, make(map[NodeID]bool)) {
		return maresult.New("graph", maresult.CodeInvalidArgs, "connection would introduce a cycle")
	}
	g.topology.Store(next)
	return nil
}

// wouldCycle walks upstream from start through incoming connections looking
// for a path back to start itself.
func wouldCycle(t *topology, start NodeID, visiting map[NodeID]bool) bool {
	if visiting[start] {
		return true
	}
	visiting[start] = true
	for _, buses := range t.incoming[start] {
		for _, c := range buses {
			// start has c.UpstreamID as a dependency; walk further
			// upstream looking for start reappearing.
			if c.UpstreamID == start {
				return true
			}
			if wouldCycle(t, c.UpstreamID, visiting) {
				return true
			}
		}
	}
	delete(visiting, start)
	return false
}

// DetachOutputBus removes every connection matching the given endpoints.
// Re-detaching an already-detached bus is a no-op, matching the teacher's
// idempotent detach semantics (spec §4.H: "re-attach is idempotent").
func (g *Graph) DetachOutputBus(upstreamID NodeID, upstreamBus int, downstreamID NodeID, downstreamBus int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur := g.topology.Load()
	next := newTopology()
	for _, c := range cur.connections {
		if c.UpstreamID == upstreamID && c.UpstreamBus == upstreamBus &&
			c.DownstreamID == downstreamID && c.DownstreamBus == downstreamBus {
			continue
		}
		next.addLocked(c)
	}
	g.topology.Store(next)
	return nil
}

// SetOutputBusVolume updates the gain applied to every connection sourced
// from (nodeID, bus).
func (g *Graph) SetOutputBusVolume(nodeID NodeID, bus int, gain float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur := g.topology.Load()
	next := newTopology()
	for _, c := range cur.connections {
		if c.UpstreamID == nodeID && c.UpstreamBus == bus {
			c.Gain = gain
		}
		next.addLocked(c)
	}
	g.topology.Store(next)
	return nil
}

// SetEndpoint designates the node whose output bus 0 is read by
// ReadPCMFrames.
func (g *Graph) SetEndpoint(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return maresult.New("graph", maresult.CodeInvalidArgs, "unknown node")
	}
	g.endpoint = id
	return nil
}

// ReadPCMFrames pulls frameCount frames from the graph's endpoint node,
// recursively pulling each input connection first. It implements the
// four-step contract of spec §4.H:
//  1. gather each input bus's contributions (zeroed buffer, or nil when
//     AllowNullInput and the bus has no connections),
//  2. sum each connection's output scaled by its gain,
//  3. invoke the node's Processor (or passthrough),
//  4. propagate the minimum "processed" count seen from any required
//     upstream pull, so a partial/at-end upstream read surfaces to the
//     caller without the graph fabricating silence past it.
//
// After the endpoint pull, every Continuous node that pull did not reach is
// pulled as well (its output discarded), so it advances every period.
//
// realtime-safe: no allocation once the scratch pool covers the graph's
// simultaneous bus count. Per-node inputs/outs slice-of-slices headers are
// pre-sized at AddNode time (node.scratchInputs/scratchOuts); only the
// per-bus backing buffers are drawn from the scratch pool each pull.
func (g *Graph) ReadPCMFrames(out []float32, frameCount int) (int, error) {
	t := g.topology.Load()
	g.scratchNext = 0
	g.gen++
	got, err := g.pull(t, g.endpoint, 0, out, frameCount)
	for id, n := range g.nodes {
		if !n.flags.Continuous || n.cacheGen == g.gen || len(n.outputBuses) == 0 {
			continue
		}
		buf := n.cacheOuts[0][:frameCount*n.outputBuses[0].Channels]
		if _, cerr := g.pull(t, id, 0, buf, frameCount); cerr != nil && err == nil && !errors.Is(cerr, maresult.ErrAtEnd) {
			err = cerr
		}
	}
	return got, err
}

func (g *Graph) allocScratch(frames, channels int) []float32 {
	if g.scratchNext >= len(g.scratch) || frames*channels > len(g.scratch[g.scratchNext]) {
		return make([]float32, frames*channels) // pool exhausted: graph exceeds configured simultaneity
	}
	buf := g.scratch[g.scratchNext][:frames*channels]
	g.scratchNext++
	return buf
}

func (g *Graph) pull(t *topology, id NodeID, outBus int, out []float32, frameCount int) (int, error) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, maresult.New("graph", maresult.CodeInvalidArgs, "unknown node")
	}

	if n.cacheGen == g.gen {
		got := n.cacheProcessed
		channels := n.outputBuses[outBus].Channels
		copy(out, n.cacheOuts[outBus][:got*channels])
		return got, n.cacheErr
	}

	if n.state == StateStopped {
		// Not cached: a stopped node has no Processor side effects to
		// dedupe against, so each puller is simply handed silence.
		zero(out)
		return frameCount, nil
	}

	inputs := n.scratchInputs
	processed := frameCount
	haveRequired := false

	for bus, spec := range n.inputBuses {
		conns := t.incoming[id][bus]
		if len(conns) == 0 {
			if n.flags.AllowNullInput {
				inputs[bus] = nil
				continue
			}
			inputs[bus] = g.allocScratch(frameCount, spec.Channels)
			zero(inputs[bus])
			continue
		}
		mixed := g.allocScratch(frameCount, spec.Channels)
		zero(mixed)
		for _, c := range conns {
			contrib := g.allocScratch(frameCount, spec.Channels)
			got, err := g.pull(t, c.UpstreamID, c.UpstreamBus, contrib, frameCount)
			if err != nil && !errors.Is(err, maresult.ErrAtEnd) {
				return 0, err
			}
			if !haveRequired || got < processed {
				processed = got
				haveRequired = true
			}
			for i := 0; i < got*spec.Channels; i++ {
				mixed[i] += contrib[i] * c.Gain
			}
		}
		inputs[bus] = mixed
	}
	if !haveRequired {
		processed = frameCount
	}
	if n.flags.Continuous {
		processed = frameCount
	}

	outs := n.scratchOuts
	for bus, spec := range n.outputBuses {
		outs[bus] = n.cacheOuts[bus][:frameCount*spec.Channels]
	}

	var got int
	var err error
	if n.flags.Passthrough {
		got = processed
		if len(inputs) > 0 && inputs[0] != nil {
			channels := n.outputBuses[outBus].Channels
			copy(outs[outBus], inputs[0][:processed*channels])
		}
	} else {
		got, err = n.proc.Process(inputs, outs, processed)
		if err != nil && !errors.Is(err, maresult.ErrAtEnd) {
			return 0, err
		}
	}

	n.cacheGen, n.cacheProcessed, n.cacheErr = g.gen, got, err
	channels := n.outputBuses[outBus].Channels
	copy(out, outs[outBus][:got*channels])
	return got, err
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
