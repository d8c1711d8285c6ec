// Package pca decomposes audio into spectral principal components.
//
// The magnitude spectrogram is mean-centered per bin and factorized with a
// thin SVD. Each principal component keeps one rank-1 term plus its share of
// the mean spectrum, reuses the original phases, and is resynthesized into a
// standalone waveform. Mixing the components back at unit volume recovers
// (approximately) the original signal, and scaling individual volumes
// reshapes the track.
package pca
