// Package dsp provides the short-time Fourier transform plumbing shared by
// the separation engine and the spectral decomposition code.
//
// Analysis rides on gossp's windowed STFT; synthesis overlap-adds go-dsp
// inverse FFT frames and normalizes by the accumulated squared window, which
// makes Analyze followed by Synthesize an identity for unmodified spectra.
// Inputs are zero-padded so the final hop never drops tail samples.
package dsp
