package pca

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"remix/internal/dsp"
)

// Result holds the outcome of a spectral decomposition. Components are mono
// waveforms at SampleRate, ordered by decreasing explained variance.
type Result struct {
	Components     [][]float64
	Eigenvalues    []float64
	VarianceRatios []float64
	SampleRate     int
}

// VariancePercents reports each component's explained variance as a
// percentage of the total. This is the scale external consumers see.
func (r *Result) VariancePercents() []float64 {
	out := make([]float64, len(r.VarianceRatios))
	for i, ratio := range r.VarianceRatios {
		out[i] = ratio * 100
	}
	return out
}

// Decompose splits samples into up to components spectral principal
// components. The count is clipped to the rank of the magnitude spectrogram.
func Decompose(samples []float64, sampleRate, components, window, hop int) (*Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("pca: empty input")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pca: sample rate %d out of range", sampleRate)
	}
	if components < 1 {
		return nil, fmt.Errorf("pca: component count %d out of range", components)
	}
	if window < 4 || hop < 1 || hop > window {
		return nil, fmt.Errorf("pca: window %d / hop %d out of range", window, hop)
	}

	transform := dsp.NewTransform(window, hop)
	spectrogram := transform.Analyze(samples)
	frames := len(spectrogram)
	bins := transform.Bins()
	if frames < 2 {
		return nil, errors.New("pca: input too short to analyze")
	}

	magnitudes := make([]float64, frames*bins)
	phases := make([]float64, frames*bins)
	for t, frame := range spectrogram {
		for j := 0; j < bins; j++ {
			magnitudes[t*bins+j] = cmplx.Abs(frame[j])
			phases[t*bins+j] = cmplx.Phase(frame[j])
		}
	}

	mean := make([]float64, bins)
	for t := 0; t < frames; t++ {
		for j := 0; j < bins; j++ {
			mean[j] += magnitudes[t*bins+j]
		}
	}
	for j := range mean {
		mean[j] /= float64(frames)
	}

	centered := mat.NewDense(frames, bins, nil)
	for t := 0; t < frames; t++ {
		for j := 0; j < bins; j++ {
			centered.Set(t, j, magnitudes[t*bins+j]-mean[j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil, errors.New("pca: svd did not converge")
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	if components > len(values) {
		components = len(values)
	}

	var total float64
	eigenvalues := make([]float64, len(values))
	for i, s := range values {
		eigenvalues[i] = s * s
		total += s * s
	}

	result := &Result{SampleRate: sampleRate}
	for k := 0; k < components; k++ {
		share := 0.0
		if total > 0 {
			share = eigenvalues[k] / total
		}

		compSpec := make([][]complex128, frames)
		for t := 0; t < frames; t++ {
			frame := make([]complex128, window)
			for j := 0; j < bins; j++ {
				mag := u.At(t, k)*values[k]*v.At(j, k) + mean[j]*share
				if mag < 0 {
					mag = -mag
				}
				frame[j] = cmplx.Rect(mag, phases[t*bins+j])
			}
			// Mirror the conjugate upper half so the inverse FFT is real.
			for j := 1; j < window-window/2; j++ {
				frame[window-j] = cmplx.Conj(frame[j])
			}
			compSpec[t] = frame
		}

		result.Components = append(result.Components, transform.Synthesize(compSpec, len(samples)))
		result.Eigenvalues = append(result.Eigenvalues, eigenvalues[k])
		result.VarianceRatios = append(result.VarianceRatios, share)
	}
	return result, nil
}
