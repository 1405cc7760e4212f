// Package ringbuf implements the single-producer/single-consumer lock-free
// ring buffer used to back duplex coupling and async I/O (spec §4.B). It
// generalizes the teacher's two bespoke, fixed-element ring buffers
// (internal/audio/capture.go's ringBuffer of audioChunk slots and
// internal/audio/playback.go's playbackRing of raw float32 samples) into one
// power-of-two byte ring with frame-aligned acquire/commit views, since the
// spec requires exact wrap-splitting semantics those two ad hoc buffers
// never needed.
package ringbuf

import (
	"sync/atomic"

	"github.com/agalue/maudio/maresult"
)

// Ring is a byte-oriented SPSC ring buffer. Capacity is rounded up to the
// next power of two at construction (spec §3: "power-of-two-sized byte
// buffer").
//
// Exactly one goroutine may call the Write* methods and exactly one
// goroutine may call the Read* methods; the two may differ (e.g. the audio
// thread writes, a control-thread goroutine reads). Cursor updates use
// release-on-commit / acquire-on-acquire ordering so buffer content written
// before a commit is visible to a reader that observes the new cursor value
// (spec §5 "Ordering guarantees").
type Ring struct {
	buf  []byte
	mask uint64

	// write and read are monotone byte cursors. Both only ever increase;
	// "bytes in ring" is (write - read), which is always in [0, capacity]
	// because Write refuses to overrun and Read refuses to overread.
	write atomic.Uint64
	read  atomic.Uint64
}

// RoundUpPow2 returns the smallest power of two >= n (at least 1).
func RoundUpPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New allocates a Ring with at least capacityBytes of storage (rounded up
// to a power of two). This is the ring's one allocation; the audio path
// never allocates again (spec §9 "Realtime discipline").
func New(capacityBytes int) *Ring {
	n := RoundUpPow2(capacityBytes)
	return &Ring{buf: make([]byte, n), mask: uint64(n - 1)}
}

// NewFrom builds a Ring over a caller-supplied, already power-of-two-sized
// buffer, so the backing storage can come from a Context's AllocCallbacks
// (spec §3 "Context") instead of Ring's own make([]byte, n). The ring takes
// ownership of buf; the caller must not touch it afterward.
func NewFrom(buf []byte) (*Ring, error) {
	n := len(buf)
	if n == 0 || n&(n-1) != 0 {
		return nil, maresult.New("ringbuf", maresult.CodeInvalidArgs, "buf length must be a power of two")
	}
	return &Ring{buf: buf, mask: uint64(n - 1)}, nil
}

// Cap returns the ring's capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// BytesInRing returns (write - read), i.e. the number of unread bytes
// currently buffered. Invariant (spec §8): 0 <= BytesInRing() <= Cap().
func (r *Ring) BytesInRing() int {
	return int(r.write.Load() - r.read.Load())
}

// BytesFree returns the remaining writable capacity.
func (r *Ring) BytesFree() int {
	return len(r.buf) - r.BytesInRing()
}

// AcquireWrite grants a contiguous span of up to n bytes for the producer to
// write into directly, returning the granted slice (len <= n); pass its
// length to CommitWrite. If less than n bytes are free, the call still
// grants whatever is available, and it never grants past the wrap boundary
// within a single call: a second AcquireWrite after CommitWrite yields the
// segment at the front of the buffer. Fails with ErrBusy only when zero
// bytes are free and n > 0.
//
// realtime-safe: no allocation, no lock; CAS-free because there is exactly
// one producer.
func (r *Ring) AcquireWrite(n int) ([]byte, error) {
	if n < 0 {
		return nil, maresult.New("ringbuf", maresult.CodeInvalidArgs, "n must be >= 0")
	}
	free := r.BytesFree()
	if free == 0 && n > 0 {
		return nil, maresult.New("ringbuf", maresult.CodeBusy, "ring full")
	}
	if n > free {
		n = free
	}
	write := r.write.Load()
	start := int(write & r.mask)
	// Grant only up to the end of the backing array; the caller may need a
	// second AcquireWrite call after CommitWrite to get the wrapped tail.
	avail := len(r.buf) - start
	if n > avail {
		n = avail
	}
	return r.buf[start : start+n], nil
}

// CommitWrite advances the write cursor by n bytes, publishing the bytes
// written since the matching AcquireWrite with release ordering (spec
// §4.B). n must not exceed the span most recently granted and not yet
// committed.
func (r *Ring) CommitWrite(n int) {
	r.write.Add(uint64(n))
}

// AcquireRead is the read-side symmetric operation of AcquireWrite: grants
// up to n bytes of the oldest unread data, contiguous up to the backing
// array boundary. Fails with ErrBusy if zero bytes are available and n > 0.
//
// realtime-safe: no allocation, no lock; single reader.
func (r *Ring) AcquireRead(n int) ([]byte, error) {
	if n < 0 {
		return nil, maresult.New("ringbuf", maresult.CodeInvalidArgs, "n must be >= 0")
	}
	avail := r.BytesInRing()
	if avail == 0 && n > 0 {
		return nil, maresult.New("ringbuf", maresult.CodeBusy, "ring empty")
	}
	if n > avail {
		n = avail
	}
	read := r.read.Load()
	start := int(read & r.mask)
	room := len(r.buf) - start
	if n > room {
		n = room
	}
	return r.buf[start : start+n], nil
}

// CommitRead advances the read cursor by n bytes with acquire ordering
// relative to the producer's release on CommitWrite (spec §4.B/§5).
func (r *Ring) CommitRead(n int) {
	r.read.Add(uint64(n))
}

// Write is a convenience wrapper that copies p into the ring across at most
// two AcquireWrite/CommitWrite calls (handling the wrap split internally),
// returning the number of bytes actually written (may be less than len(p)
// if the ring doesn't have room for all of it).
func (r *Ring) Write(p []byte) int {
	written := 0
	for written < len(p) {
		dst, err := r.AcquireWrite(len(p) - written)
		if err != nil || len(dst) == 0 {
			break
		}
		n := copy(dst, p[written:])
		r.CommitWrite(n)
		written += n
	}
	return written
}

// Read is the convenience inverse of Write: copies up to len(p) bytes out
// of the ring into p, across at most two AcquireRead/CommitRead calls,
// returning the number of bytes actually read.
func (r *Ring) Read(p []byte) int {
	readN := 0
	for readN < len(p) {
		src, err := r.AcquireRead(len(p) - readN)
		if err != nil || len(src) == 0 {
			break
		}
		n := copy(p[readN:], src)
		r.CommitRead(n)
		readN += n
	}
	return readN
}

// Reset discards all buffered data by moving the read cursor up to the
// write cursor. Not safe to call concurrently with an in-flight
// Acquire/Commit pair on either side; intended for use while the ring's
// producer and consumer are both stopped.
func (r *Ring) Reset() {
	r.read.Store(r.write.Load())
}

// PointerDistance returns write-cursor minus read-cursor as raw monotone
// counters (not wrapped to capacity), matching spec §4.B's
// pointer_distance().
func (r *Ring) PointerDistance() int64 {
	return int64(r.write.Load()) - int64(r.read.Load())
}

// SeekTarget selects which cursor Seek repositions.
type SeekTarget int

const (
	SeekRead SeekTarget = iota
	SeekWrite
)

// Seek moves the read or write cursor by delta bytes, matching spec §4.B's
// seek(read_or_write, delta). Positive delta advances the cursor, negative
// rewinds it. Seek only moves a cursor; it never touches buffer content, so
// rewinding the write cursor republishes bytes a prior AcquireWrite/
// CommitWrite already placed in the backing array, and rewinding the read
// cursor only re-exposes data still physically present (bounded by Cap()
// behind the write cursor). Fails with CodeInvalidArgs if delta would move
// the target cursor out of the [write-Cap, write] (read) or [read,
// read+Cap] (write) range the BytesInRing invariant requires.
//
// Not safe to call concurrently with an in-flight Acquire/Commit pair on
// the same side.
func (r *Ring) Seek(target SeekTarget, delta int64) error {
	read := int64(r.read.Load())
	write := int64(r.write.Load())
	cap := int64(len(r.buf))
	switch target {
	case SeekRead:
		next := read + delta
		if next > write || next < write-cap {
			return maresult.New("ringbuf", maresult.CodeInvalidArgs, "seek would violate read/write bounds")
		}
		r.read.Store(uint64(next))
	case SeekWrite:
		next := write + delta
		if next < read || next > read+cap {
			return maresult.New("ringbuf", maresult.CodeInvalidArgs, "seek would violate read/write bounds")
		}
		r.write.Store(uint64(next))
	default:
		return maresult.New("ringbuf", maresult.CodeInvalidArgs, "unknown seek target")
	}
	return nil
}
