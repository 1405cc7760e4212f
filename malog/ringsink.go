package malog

import "sync/atomic"

// event is one buffered log record. Fields are pre-sized so RingSink.Log
// never allocates.
type event struct {
	level   Level
	message string
}

// RingSink is a lock-free, allocation-free, fixed-capacity sink safe to
// install on the audio thread (spec §5: "no allocation, no mutex, no I/O,
// no logging sink that blocks"). Overflow drops the incoming event and
// keeps the un-drained ones, rather than blocking the producer. The control thread periodically
// calls Drain to forward buffered events to a real sink (e.g. CharmSink).
type RingSink struct {
	buf  []event
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRingSink allocates a RingSink with room for capacity events. capacity
// is rounded up to the next power of two.
func NewRingSink(capacity int) *RingSink {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &RingSink{buf: make([]event, n)}
}

// Log implements Sink. realtime-safe: single producer (the audio thread),
// bounded, never blocks.
func (r *RingSink) Log(level Level, message string, kv ...any) {
	mask := uint64(len(r.buf) - 1)
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		// Full: drop the event rather than overwrite concurrently with a
		// racing Drain reader, keeping this single-producer/single-consumer.
		return
	}
	r.buf[head&mask] = event{level: level, message: message}
	r.head.Store(head + 1)
}

// Drain forwards all buffered events to dst, in order, and empties the
// ring. Call this from the control thread only (single reader).
func (r *RingSink) Drain(dst Sink) {
	mask := uint64(len(r.buf) - 1)
	head := r.head.Load()
	tail := r.tail.Load()
	for tail < head {
		e := r.buf[tail&mask]
		dst.Log(e.level, e.message)
		tail++
	}
	r.tail.Store(tail)
}
