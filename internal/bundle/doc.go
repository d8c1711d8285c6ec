// Package bundle reads exchange checkpoints and owns the engine's portable
// model format.
//
// Checkpoints arrive as safetensors files: a little-endian length-prefixed
// JSON header describing dtype, shape, and data offsets per tensor, followed
// by the raw tensor bytes. Convert maps the checkpoint's weight/bias pairs
// onto an ordered stack of dense layers, validates that the shapes chain, and
// emits an RMXB bundle: a small magic-tagged container holding the network
// description as JSON plus packed float32 or float16 tensor data.
//
// The described network is a per-frame mask estimator: the input is one
// log-magnitude spectral frame, hidden layers apply ReLU, and the final layer
// emits one logit per stem and frequency bin.
package bundle
