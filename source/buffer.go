package source

import "github.com/agalue/maudio/maresult"

// Buffer is a finite, seekable, loopable Source wrapping an in-memory f32
// slice, the role original_source's ma_audio_buffer_ref plays as the
// "excite" source in examples/duplex_effect.c (there it's re-pointed at the
// device's capture buffer each callback; here it owns its own backing
// store, and a caller can still call SetData to re-point it without
// copying, matching that usage).
type Buffer struct {
	format    Format
	data      []float32 // interleaved, format.Layout.Channels wide
	cursor    int64     // frame index
	loopBegin int64
	loopEnd   int64 // end of the loop range; read only while looping is true
	looping   bool
}

// NewBuffer wraps data (interleaved at format.Layout.Channels) as a Source.
func NewBuffer(format Format, data []float32) (*Buffer, error) {
	if format.Layout.Channels <= 0 {
		return nil, maresult.New("source", maresult.CodeInvalidArgs, "channels must be > 0")
	}
	ch := format.Layout.Channels
	if len(data)%ch != 0 {
		return nil, maresult.New("source", maresult.CodeInvalidArgs, "data length must be a multiple of channels")
	}
	return &Buffer{format: format, data: data, loopEnd: int64(len(data) / ch)}, nil
}

func (b *Buffer) NativeFormat() Format { return b.format }

// SetData re-points the buffer at new backing data and resets the cursor,
// matching ma_audio_buffer_ref_set_data's role of re-pointing at a fresh
// block of capture data each device callback without reallocating the
// Buffer itself.
func (b *Buffer) SetData(data []float32) {
	b.data = data
	b.cursor = 0
	b.loopEnd = int64(len(data) / b.format.Layout.Channels)
}

// Read is realtime-safe (no allocation) once the backing data is set.
// Returns maresult.ErrAtEnd with framesRead==0 once the cursor reaches the
// end of a non-looping buffer (spec §4.G).
func (b *Buffer) Read(buf []float32, frameCap int) (int, error) {
	ch := b.format.Layout.Channels
	totalFrames := int64(len(b.data) / ch)
	if totalFrames == 0 {
		return 0, maresult.ErrAtEnd
	}

	end := totalFrames
	if b.looping {
		end = b.loopEnd
	}

	read := 0
	for read < frameCap {
		if b.cursor >= end {
			if b.looping {
				b.cursor = b.loopBegin
				continue
			}
			break
		}
		n := frameCap - read
		remaining := end - b.cursor
		if int64(n) > remaining {
			n = int(remaining)
		}
		copy(buf[read*ch:(read+n)*ch], b.data[b.cursor*int64(ch):(b.cursor+int64(n))*int64(ch)])
		b.cursor += int64(n)
		read += n
		if !b.looping {
			break
		}
	}

	if read == 0 {
		return 0, maresult.ErrAtEnd
	}
	return read, nil
}

func (b *Buffer) Seek(frameIndex int64) error {
	totalFrames := int64(len(b.data) / b.format.Layout.Channels)
	if frameIndex < 0 || frameIndex > totalFrames {
		return maresult.New("source", maresult.CodeInvalidArgs, "frame index out of range")
	}
	b.cursor = frameIndex
	return nil
}

func (b *Buffer) GetCursor() (int64, error) { return b.cursor, nil }

func (b *Buffer) GetLength() (int64, bool, error) {
	return int64(len(b.data) / b.format.Layout.Channels), true, nil
}

// SetLoopRange enables looping between [begin, end) frames (spec §4.G).
func (b *Buffer) SetLoopRange(begin, end int64) error {
	totalFrames := int64(len(b.data) / b.format.Layout.Channels)
	if begin < 0 || end > totalFrames || begin >= end {
		return maresult.New("source", maresult.CodeInvalidArgs, "invalid loop range")
	}
	b.loopBegin, b.loopEnd = begin, end
	b.looping = true
	return nil
}
