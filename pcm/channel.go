package pcm

import "github.com/agalue/maudio/maresult"

// Position names a single channel slot. AuxBase..AuxBase+31 is the opaque
// auxiliary range for layouts the engine doesn't name explicitly (spec §3:
// "plus an opaque aux range").
type Position int

const (
	PositionFrontLeft Position = iota
	PositionFrontRight
	PositionFrontCenter
	PositionLFE
	PositionRearLeft
	PositionRearRight
	PositionSideLeft
	PositionSideRight
	AuxBase Position = 1000
)

func (p Position) String() string {
	switch p {
	case PositionFrontLeft:
		return "front-left"
	case PositionFrontRight:
		return "front-right"
	case PositionFrontCenter:
		return "front-center"
	case PositionLFE:
		return "lfe"
	case PositionRearLeft:
		return "rear-left"
	case PositionRearRight:
		return "rear-right"
	case PositionSideLeft:
		return "side-left"
	case PositionSideRight:
		return "side-right"
	default:
		if p >= AuxBase {
			return "aux"
		}
		return "unknown-position"
	}
}

// Aux returns the opaque auxiliary position with the given zero-based index.
func Aux(index int) Position { return AuxBase + Position(index) }

// ChannelMap is an ordered sequence of channel positions; its length is the
// channel count of whatever layout it describes. Maps are compared
// positionally (spec §3).
type ChannelMap []Position

// Equal reports whether two maps have the same length and the same
// position at every index.
func (m ChannelMap) Equal(other ChannelMap) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// Standard channel maps for common layouts (spec §3: "standard maps exist
// for common layouts (mono, stereo, 5.1, 7.1)").
var (
	ChannelMapMono   = ChannelMap{PositionFrontCenter}
	ChannelMapStereo = ChannelMap{PositionFrontLeft, PositionFrontRight}
	ChannelMap51     = ChannelMap{
		PositionFrontLeft, PositionFrontRight, PositionFrontCenter,
		PositionLFE, PositionRearLeft, PositionRearRight,
	}
	ChannelMap71 = ChannelMap{
		PositionFrontLeft, PositionFrontRight, PositionFrontCenter,
		PositionLFE, PositionRearLeft, PositionRearRight,
		PositionSideLeft, PositionSideRight,
	}
)

// StandardChannelMap returns the documented standard map for the given
// channel count, or (nil, false) if there is no standard map for that count.
func StandardChannelMap(channels int) (ChannelMap, bool) {
	switch channels {
	case 1:
		return ChannelMapMono, true
	case 2:
		return ChannelMapStereo, true
	case 6:
		return ChannelMap51, true
	case 8:
		return ChannelMap71, true
	default:
		return nil, false
	}
}

// Layout pairs a channel count with its channel map.
type Layout struct {
	Channels int
	Map      ChannelMap
}

// NewLayout builds a Layout, defaulting to the standard map for Channels
// when m is nil and a standard map is known; otherwise m must already have
// length == channels.
func NewLayout(channels int, m ChannelMap) (Layout, error) {
	if channels <= 0 {
		return Layout{}, maresult.New("pcm", maresult.CodeInvalidArgs, "channels must be > 0")
	}
	if m == nil {
		if std, ok := StandardChannelMap(channels); ok {
			m = std
		} else {
			m = make(ChannelMap, channels)
			for i := range m {
				m[i] = Aux(i)
			}
		}
	}
	if len(m) != channels {
		return Layout{}, maresult.New("pcm", maresult.CodeInvalidArgs, "channel map length must equal channel count")
	}
	return Layout{Channels: channels, Map: m}, nil
}
