package ringbuf

import "github.com/agalue/maudio/maresult"

// PCMRing is a thin, frame-aligned view over a Ring (spec §4.B: "the PCM
// variant is a thin view over the byte variant with frame-aligned
// acquire/commit"). The device's duplex coupling uses a plain Ring, not
// this view.
type PCMRing struct {
	ring          *Ring
	bytesPerFrame int
}

// NewPCMRing allocates a Ring sized to hold at least capacityFrames whole
// frames of bytesPerFrame bytes each.
func NewPCMRing(capacityFrames, bytesPerFrame int) *PCMRing {
	return &PCMRing{
		ring:          New(capacityFrames * bytesPerFrame),
		bytesPerFrame: bytesPerFrame,
	}
}

// CapacityFrames returns the ring's capacity in whole frames.
func (p *PCMRing) CapacityFrames() int {
	return p.ring.Cap() / p.bytesPerFrame
}

// FramesAvailable returns the number of whole frames currently buffered.
func (p *PCMRing) FramesAvailable() int {
	return p.ring.BytesInRing() / p.bytesPerFrame
}

// FramesFree returns the number of whole frames of free space remaining.
func (p *PCMRing) FramesFree() int {
	return p.ring.BytesFree() / p.bytesPerFrame
}

// WriteFrames copies frameCount frames worth of bytes from src into the
// ring, dropping (not partially writing) a single frame if it would
// straddle the available space; returns the number of whole frames
// written. realtime-safe.
func (p *PCMRing) WriteFrames(src []byte, frameCount int) (int, error) {
	need := frameCount * p.bytesPerFrame
	if len(src) < need {
		return 0, maresult.New("ringbuf", maresult.CodeInvalidArgs, "src shorter than frameCount frames")
	}
	writable := p.FramesFree()
	if frameCount > writable {
		frameCount = writable
	}
	n := p.ring.Write(src[:frameCount*p.bytesPerFrame])
	return n / p.bytesPerFrame, nil
}

// ReadFrames copies up to frameCount whole frames from the ring into dst,
// returning the number of whole frames actually read. realtime-safe.
func (p *PCMRing) ReadFrames(dst []byte, frameCount int) (int, error) {
	need := frameCount * p.bytesPerFrame
	if len(dst) < need {
		return 0, maresult.New("ringbuf", maresult.CodeInvalidArgs, "dst shorter than frameCount frames")
	}
	readable := p.FramesAvailable()
	if frameCount > readable {
		frameCount = readable
	}
	n := p.ring.Read(dst[:frameCount*p.bytesPerFrame])
	return n / p.bytesPerFrame, nil
}

// Reset discards all buffered frames.
func (p *PCMRing) Reset() { p.ring.Reset() }

// SeekFrames moves the read or write cursor by deltaFrames whole frames,
// the frame-aligned view over Ring.Seek (spec §4.B seek(read_or_write,
// delta)).
func (p *PCMRing) SeekFrames(target SeekTarget, deltaFrames int64) error {
	return p.ring.Seek(target, deltaFrames*int64(p.bytesPerFrame))
}
