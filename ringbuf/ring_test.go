package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := New(10)
	require.Equal(t, 16, r.Cap())
}

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(8)
	n := r.Write([]byte{1, 2, 3, 4})
	require.Equal(t, 4, n)
	require.Equal(t, 4, r.BytesInRing())

	out := make([]byte, 4)
	got := r.Read(out)
	require.Equal(t, 4, got)
	require.Equal(t, []byte{1, 2, 3, 4}, out)
	require.Equal(t, 0, r.BytesInRing())
}

func TestAcquireWriteFailsBusyWhenFull(t *testing.T) {
	r := New(4)
	require.Equal(t, 4, r.Write([]byte{1, 2, 3, 4}))
	_, err := r.AcquireWrite(1)
	require.Error(t, err)
}

func TestAcquireReadFailsBusyWhenEmpty(t *testing.T) {
	r := New(4)
	_, err := r.AcquireRead(1)
	require.Error(t, err)
}

// Scenario 5 from spec §8: capacity 8 frames (here: 8 bytes standing in for
// 8 one-byte "frames"), write 5, read 3, write 5; AcquireRead must return
// two segments totaling 7 bytes, with the second segment starting at
// offset 0 of the backing array.
func TestRingWrapAroundProducesTwoSegments(t *testing.T) {
	r := New(8)

	require.Equal(t, 5, r.Write([]byte{1, 2, 3, 4, 5}))

	out := make([]byte, 3)
	require.Equal(t, 3, r.Read(out))
	require.Equal(t, []byte{1, 2, 3}, out)

	require.Equal(t, 5, r.Write([]byte{6, 7, 8, 9, 10}))

	require.Equal(t, 7, r.BytesInRing())

	seg1, err := r.AcquireRead(7)
	require.NoError(t, err)
	r.CommitRead(len(seg1))

	remaining := 7 - len(seg1)
	var seg2 []byte
	if remaining > 0 {
		seg2, err = r.AcquireRead(remaining)
		require.NoError(t, err)
		r.CommitRead(len(seg2))
	}

	require.Equal(t, 7, len(seg1)+len(seg2))
	require.Equal(t, []byte{4, 5, 6, 7, 8}, seg1)
	require.Equal(t, []byte{9, 10}, seg2)
	require.Equal(t, 0, r.BytesInRing())
}

func TestBytesInRingInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.SampledFrom([]int{4, 8, 16, 32}).Draw(rt, "cap")
		r := New(capacity)

		ops := rapid.SliceOfN(rapid.IntRange(-20, 20), 1, 50).Draw(rt, "ops")
		for _, op := range ops {
			if op >= 0 {
				buf := make([]byte, op)
				r.Write(buf)
			} else {
				buf := make([]byte, -op)
				r.Read(buf)
			}
			inRing := r.BytesInRing()
			require.GreaterOrEqual(rt, inRing, 0)
			require.LessOrEqual(rt, inRing, r.Cap())
		}
	})
}

func TestSeekReadSkipsBufferedData(t *testing.T) {
	r := New(8)
	require.Equal(t, 8, r.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	require.NoError(t, r.Seek(SeekRead, 4))
	require.Equal(t, 4, r.BytesInRing())

	out := make([]byte, 4)
	require.Equal(t, 4, r.Read(out))
	require.Equal(t, []byte{5, 6, 7, 8}, out)
}

func TestSeekRejectsOutOfBoundsDelta(t *testing.T) {
	r := New(8)
	require.Equal(t, 4, r.Write([]byte{1, 2, 3, 4}))

	require.Error(t, r.Seek(SeekRead, 5))  // past the write cursor
	require.Error(t, r.Seek(SeekWrite, -5)) // before the read cursor
	require.Error(t, r.Seek(SeekWrite, 5)) // would exceed capacity
}

func TestSeekWriteRepublishesAcquiredBytes(t *testing.T) {
	r := New(8)
	dst, err := r.AcquireWrite(4)
	require.NoError(t, err)
	copy(dst, []byte{9, 9, 9, 9})

	require.NoError(t, r.Seek(SeekWrite, 4))
	require.Equal(t, 4, r.BytesInRing())

	out := make([]byte, 4)
	require.Equal(t, 4, r.Read(out))
	require.Equal(t, []byte{9, 9, 9, 9}, out)
}

func TestPCMRingFrameAlignedWriteRead(t *testing.T) {
	pr := NewPCMRing(4, 4) // 4 frames of 4 bytes (e.g. one f32 mono sample)
	src := []byte{
		1, 0, 0, 0,
		2, 0, 0, 0,
		3, 0, 0, 0,
	}
	written, err := pr.WriteFrames(src, 3)
	require.NoError(t, err)
	require.Equal(t, 3, written)
	require.Equal(t, 3, pr.FramesAvailable())

	dst := make([]byte, 16)
	read, err := pr.ReadFrames(dst, 4)
	require.NoError(t, err)
	require.Equal(t, 3, read)
}
