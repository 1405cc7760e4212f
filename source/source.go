// Package source defines the data source trait: a lazy, optionally
// seekable, optionally finite producer of PCM frames in a declared native
// format (spec §4.G), in the capability-interface shape grounded on
// birdnet-go's AudioSource/AudioProcessor pair and dastard's data_source.go
// duck-typed reader (other_examples/).
package source

import (
	"github.com/agalue/maudio/maresult"
	"github.com/agalue/maudio/pcm"
)

// Source is the minimum capability every data source must implement: a
// lazy read of interleaved f32 frames in its NativeFormat's channel count.
type Source interface {
	// Read fills buf (capacity frameCap frames, interleaved at
	// NativeFormat().Channels) and returns the number of frames actually
	// read. result is maresult.ErrAtEnd only when framesRead == 0 and the
	// source is exhausted (spec §4.G).
	Read(buf []float32, frameCap int) (framesRead int, err error)

	// NativeFormat declares the format/channels/rate this source natively
	// produces; graph.NewSourceNode inserts a channel-remix and/or
	// resample stage when the node's output layout or rate differs.
	NativeFormat() Format
}

// Format is a source's declared native format.
type Format struct {
	SampleFormat pcm.Format
	Layout       pcm.Layout
	SampleRate   int
}

// Seeker is an optional capability: sources that can jump to an arbitrary
// frame index implement it.
type Seeker interface {
	Seek(frameIndex int64) error
}

// Cursor is an optional capability: sources that can report their current
// position implement it.
type Cursor interface {
	GetCursor() (int64, error)
}

// Lengther is an optional capability: sources with a known total length
// implement it. ok is false for sources with no fixed length (e.g. an
// infinite waveform generator).
type Lengther interface {
	GetLength() (length int64, ok bool, err error)
}

// Loopable is an optional capability: sources that can wrap reads at a
// declared range implement it (spec §4.G: "Loopable sources expose
// set_loop_range(begin, end) and wrap read at end").
type Loopable interface {
	SetLoopRange(begin, end int64) error
}

// Chained is an optional capability: a source that transitions to another
// source once exhausted (spec §3: "chained sources expose next-source
// transition").
type Chained interface {
	NextSource() (Source, bool)
}

// ErrAtEnd is returned (frames=0) once a finite source is exhausted.
var ErrAtEnd = maresult.ErrAtEnd
