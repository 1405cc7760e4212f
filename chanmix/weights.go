package chanmix

import "github.com/agalue/maudio/maresult"

// MixdownOptions tunes the standard mixdown table (spec §4.E).
type MixdownOptions struct {
	// EnableLFEToStereo includes the LFE channel (scaled by LFEWeight) in
	// a 5.1/7.1 -> stereo fold instead of muting it, per spec §4.E ("LFE
	// muted unless LFE-to-stereo is enabled").
	EnableLFEToStereo bool
	LFEWeight         float32
}

const (
	weightStereoToMono    = 0.707
	weight51CenterToFront = 0.707
	weight51SurroundFold  = 0.5
)

// standardMixdownWeights builds the documented weight table for the small
// set of layout pairs the spec names explicitly. Any other pair is accepted
// only when every output position also appears in the input (copied 1:1,
// see matchingPositionWeights) and is otherwise refused
// (maresult.ErrInvalidArgs) rather than guessed, per the §9 open question
// resolution recorded in DESIGN.md; callers needing an exotic layout must
// use NewWithMatrix.
func standardMixdownWeights(in, out Layout) ([][]float32, error) {
	return standardMixdownWeightsWithOptions(in, out, MixdownOptions{LFEWeight: 0.707})
}

func standardMixdownWeightsWithOptions(in, out Layout, opts MixdownOptions) ([][]float32, error) {
	switch {
	case in.Channels == 2 && out.Channels == 1:
		// stereo -> mono: 0.707*L + 0.707*R
		return [][]float32{{weightStereoToMono, weightStereoToMono}}, nil

	case in.Channels == 1 && out.Channels == 2:
		// mono -> stereo: broadcast the single channel to both outputs.
		return [][]float32{
			{1.0},
			{1.0},
		}, nil

	case in.Channels == 6 && out.Channels == 2:
		// 5.1 (L R C LFE RL RR) -> stereo: center folded at 0.707, each
		// surround folded at 0.5, LFE muted unless enabled.
		lfe := float32(0)
		if opts.EnableLFEToStereo {
			lfe = opts.LFEWeight
		}
		return [][]float32{
			// L             R     C                       LFE  RL                     RR
			{1.0, 0, weight51CenterToFront, lfe, weight51SurroundFold, 0},
			{0, 1.0, weight51CenterToFront, lfe, 0, weight51SurroundFold},
		}, nil

	default:
		if w, ok := matchingPositionWeights(in, out); ok {
			return w, nil
		}
		return nil, maresult.New("chanmix", maresult.CodeInvalidArgs,
			"no documented standard mixdown for this layout pair; use NewWithMatrix")
	}
}

// matchingPositionWeights covers layout pairs where every output position
// also appears somewhere in the input map: each such output channel copies
// its matching input channel at weight 1.0 (spec §4.E: "matching positions
// copy 1:1"). Returns ok=false if any output position has no match.
func matchingPositionWeights(in, out Layout) ([][]float32, bool) {
	weights := make([][]float32, out.Channels)
	for o := 0; o < out.Channels; o++ {
		row := make([]float32, in.Channels)
		pos := out.Map[o]
		matched := false
		for i := 0; i < in.Channels; i++ {
			if in.Map[i] == pos {
				row[i] = 1.0
				matched = true
				break
			}
		}
		if !matched {
			return nil, false
		}
		weights[o] = row
	}
	return weights, true
}
