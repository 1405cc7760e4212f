package resample

import (
	"math"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidRates(t *testing.T) {
	_, err := New(Config{InRate: 0, OutRate: 48000, Channels: 1})
	require.Error(t, err)

	_, err = New(Config{InRate: 48000, OutRate: -1, Channels: 1})
	require.Error(t, err)
}

func TestIdenticalRateShortCircuitsToMemcpy(t *testing.T) {
	r, err := New(Config{InRate: 48000, OutRate: 48000, Channels: 2, Algorithm: AlgorithmLinear})
	require.NoError(t, err)

	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := make([]float32, 4)
	consumed, produced, err := r.Process(in, out)
	require.NoError(t, err)
	require.Equal(t, 2, consumed)
	require.Equal(t, 2, produced)
	require.Equal(t, in, out)
}

func TestZeroInputReturnsZeroZero(t *testing.T) {
	r, err := New(Config{InRate: 44100, OutRate: 48000, Channels: 1, Algorithm: AlgorithmLinear})
	require.NoError(t, err)

	consumed, produced, err := r.Process(nil, make([]float32, 16))
	require.NoError(t, err)
	require.Equal(t, 0, consumed)
	require.Equal(t, 0, produced)
}

func TestLinearUpsampleByTwoDoublesFrameCount(t *testing.T) {
	r, err := New(Config{InRate: 1, OutRate: 2, Channels: 1, Algorithm: AlgorithmLinear})
	require.NoError(t, err)

	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}
	out := make([]float32, 400)
	consumed, produced, err := r.Process(in, out)
	require.NoError(t, err)
	require.Greater(t, consumed, 0)
	require.InDelta(t, float64(consumed)*2, float64(produced), 2)
}

func TestSincDownsampleAttenuatesAboveNyquist(t *testing.T) {
	const inRate = 48000
	const outRate = 16000
	const n = 4096

	// Build a pure tone well above the output Nyquist (8kHz) but below the
	// input Nyquist, e.g. 12kHz, and confirm the output's energy at the bin
	// for 12kHz (clamped to the last bin below the output Nyquist, since
	// 12kHz has no bin of its own at 16kHz) is below that of a low-frequency
	// reference bin of the same output -- a frequency-domain check a plain
	// table test can't express (go-dsp/fft wired per SPEC_FULL.md).
	freq := 12000.0
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / inRate))
	}

	r, err := New(Config{InRate: inRate, OutRate: outRate, Channels: 1, Algorithm: AlgorithmSinc, Taps: 64})
	require.NoError(t, err)

	out := make([]float32, n)
	_, produced, err := r.Process(in, out)
	require.NoError(t, err)
	require.Greater(t, produced, 0)

	spectrum := toComplexSpectrum(out[:produced])
	fftOut := fft.FFT(spectrum)

	binHz := float64(outRate) / float64(len(fftOut))
	targetBin := int(freq / binHz)
	if targetBin >= len(fftOut)/2 {
		targetBin = len(fftOut)/2 - 1
	}
	energy := cmplxAbs(fftOut[targetBin])

	// A clean low-frequency bin for comparison (e.g. near DC+1).
	refEnergy := cmplxAbs(fftOut[2])

	require.Less(t, energy, refEnergy)
}

func toComplexSpectrum(x []float32) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(float64(v), 0)
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func TestSincFlushDrainsHistoryTail(t *testing.T) {
	r, err := New(Config{InRate: 3, OutRate: 2, Channels: 1, Algorithm: AlgorithmSinc, Taps: 8})
	require.NoError(t, err)

	in := make([]float32, 30)
	for i := range in {
		in[i] = float32(i)
	}
	out := make([]float32, 30)
	_, produced, err := r.Process(in, out)
	require.NoError(t, err)
	require.Greater(t, produced, 0)

	tail := make([]float32, 16)
	n, err := r.Flush(tail)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 0)

	sr := r.(*sincResampler)
	require.Equal(t, 0.0, sr.fracPos)
}

func TestLinearFlushRampsHistoryToSilence(t *testing.T) {
	r, err := New(Config{InRate: 1, OutRate: 4, Channels: 1, Algorithm: AlgorithmLinear})
	require.NoError(t, err)

	in := []float32{1, 1, 1}
	out := make([]float32, 16)
	_, produced, err := r.Process(in, out)
	require.NoError(t, err)
	require.Greater(t, produced, 0)

	tail := make([]float32, 8)
	n, err := r.Flush(tail)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	for i := 0; i < n; i++ {
		require.LessOrEqual(t, tail[i], float32(1))
		require.GreaterOrEqual(t, tail[i], float32(0))
	}

	lr := r.(*linearResampler)
	require.Equal(t, 0.0, lr.fracPos)
}

func TestResetClearsPhaseAndHistory(t *testing.T) {
	r, err := New(Config{InRate: 44100, OutRate: 48000, Channels: 1, Algorithm: AlgorithmLinear})
	require.NoError(t, err)

	in := make([]float32, 32)
	out := make([]float32, 64)
	_, _, err = r.Process(in, out)
	require.NoError(t, err)

	r.Reset()
	lr := r.(*linearResampler)
	require.Equal(t, 0.0, lr.fracPos)
}
