package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/r9y9/gossp/stft"
)

// windowSumFloor guards the overlap-add normalization against division by
// zero at frame edges where the window tapers to nothing.
const windowSumFloor = 1e-8

// magnitudeFloor keeps log compression finite on silent bins.
const magnitudeFloor = 1e-5

// Transform bundles an STFT geometry with its window so analysis and
// synthesis stay consistent.
type Transform struct {
	window int
	hop    int
	stft   *stft.STFT
}

// NewTransform creates a transform with the given window (FFT length) and hop.
func NewTransform(window, hop int) *Transform {
	return &Transform{
		window: window,
		hop:    hop,
		stft:   stft.New(hop, window),
	}
}

// Window reports the FFT length.
func (t *Transform) Window() int { return t.window }

// Hop reports the analysis hop size.
func (t *Transform) Hop() int { return t.hop }

// Bins reports the number of non-redundant frequency bins (window/2 + 1).
func (t *Transform) Bins() int { return t.window/2 + 1 }

// Analyze computes the complex spectrogram of signal. Each returned frame
// holds the full FFT of one windowed segment. The signal is zero-padded so
// every sample is covered by at least one frame; an empty signal yields nil.
func (t *Transform) Analyze(signal []float64) [][]complex128 {
	if len(signal) == 0 {
		return nil
	}
	need := t.paddedLength(len(signal))
	if need > len(signal) {
		padded := make([]float64, need)
		copy(padded, signal)
		signal = padded
	}
	return t.stft.STFT(signal)
}

// paddedLength returns the smallest window + k*hop that covers n samples.
func (t *Transform) paddedLength(n int) int {
	if n <= t.window {
		return t.window
	}
	k := (n - t.window + t.hop - 1) / t.hop
	return t.window + k*t.hop
}

// Synthesize reconstructs a time-domain signal of the given length from a
// full-spectrum spectrogram. Frames are inverted with go-dsp's IFFT,
// overlap-added under the analysis window, and normalized by the accumulated
// squared window.
func (t *Transform) Synthesize(spectrogram [][]complex128, length int) []float64 {
	out := make([]float64, length)
	if len(spectrogram) == 0 || length == 0 {
		return out
	}

	frameLen := len(spectrogram[0])
	total := frameLen + (len(spectrogram)-1)*t.hop
	signal := make([]float64, total)
	windowSum := make([]float64, total)

	for i, frame := range spectrogram {
		buf := fft.IFFT(frame)
		base := i * t.hop
		for j := 0; j < frameLen; j++ {
			w := t.stft.Window[j]
			signal[base+j] += real(buf[j]) * w
			windowSum[base+j] += w * w
		}
	}

	for i := 0; i < length && i < total; i++ {
		if windowSum[i] > windowSumFloor {
			out[i] = signal[i] / windowSum[i]
		}
	}
	return out
}

// Magnitudes extracts per-frame magnitudes of the non-redundant bins.
func (t *Transform) Magnitudes(spectrogram [][]complex128) [][]float64 {
	bins := t.Bins()
	out := make([][]float64, len(spectrogram))
	for i, frame := range spectrogram {
		mags := make([]float64, bins)
		for j := 0; j < bins && j < len(frame); j++ {
			mags[j] = cmplx.Abs(frame[j])
		}
		out[i] = mags
	}
	return out
}

// ApplyMask scales the first len(mask) bins of a full-spectrum frame and
// mirrors the conjugate into the upper half so the result stays Hermitian.
func ApplyMask(frame []complex128, mask []float64) []complex128 {
	n := len(frame)
	out := make([]complex128, n)
	bins := n/2 + 1
	for j := 0; j < bins && j < len(frame); j++ {
		gain := 1.0
		if j < len(mask) {
			gain = mask[j]
		}
		out[j] = frame[j] * complex(gain, 0)
	}
	for j := 1; j < n-n/2; j++ {
		out[n-j] = cmplx.Conj(out[j])
	}
	return out
}

// LogMagnitude compresses a magnitude onto a log scale with a silence floor.
func LogMagnitude(mag float64) float64 {
	if mag < magnitudeFloor {
		mag = magnitudeFloor
	}
	return math.Log(mag)
}
