// Package separation runs a mask-estimator bundle over audio to split it
// into stems.
//
// The engine computes a log-magnitude spectrogram per channel, asks the
// network for per-bin soft masks (softmax across stems, so the masks always
// sum to one), applies each mask to the complex spectrogram, and
// resynthesizes one waveform per stem. Long inputs are processed in
// overlapping chunks blended with a triangular cross-fade so stitching is
// inaudible.
package separation
