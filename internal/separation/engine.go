package separation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"remix/internal/audio"
	"remix/internal/bundle"
	"remix/internal/dsp"
	"remix/internal/logging"
)

const (
	defaultChunkSeconds   = 10
	defaultOverlapSeconds = 1
)

// Options tune the inference engine. Zero values fall back to the chunking
// the pretrained networks were validated with.
type Options struct {
	ChunkSeconds   int
	OverlapSeconds int
	Logger         *slog.Logger
}

// Engine applies a loaded mask-estimator bundle to audio buffers.
type Engine struct {
	bundle    *bundle.Bundle
	transform *dsp.Transform
	layers    []layerParams
	chunk     int
	overlap   int
	logger    *slog.Logger
}

// layerParams caches one dense layer in inference-ready form.
type layerParams struct {
	in     int
	out    int
	relu   bool
	weight []float32
	bias   []float32
}

// New builds an engine from a validated bundle.
func New(b *bundle.Bundle, opts Options) (*Engine, error) {
	if b == nil {
		return nil, errors.New("separation: nil bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	chunkSeconds := opts.ChunkSeconds
	if chunkSeconds == 0 {
		chunkSeconds = defaultChunkSeconds
	}
	overlapSeconds := opts.OverlapSeconds
	if overlapSeconds == 0 {
		overlapSeconds = defaultOverlapSeconds
	}
	if chunkSeconds < 1 || overlapSeconds < 0 || overlapSeconds >= chunkSeconds {
		return nil, fmt.Errorf("separation: overlap %ds must be shorter than chunk %ds", overlapSeconds, chunkSeconds)
	}

	e := &Engine{
		bundle:    b,
		transform: dsp.NewTransform(b.Window, b.Hop),
		chunk:     chunkSeconds * b.SampleRate,
		overlap:   overlapSeconds * b.SampleRate,
		logger:    logging.NewComponentLogger(opts.Logger, "separation"),
	}
	for _, layer := range b.Layers {
		weight, err := b.Tensor(layer.Name + ".weight")
		if err != nil {
			return nil, err
		}
		bias, err := b.Tensor(layer.Name + ".bias")
		if err != nil {
			return nil, err
		}
		e.layers = append(e.layers, layerParams{
			in:     layer.In,
			out:    layer.Out,
			relu:   layer.Activation == bundle.ActivationReLU,
			weight: weight.Data,
			bias:   bias.Data,
		})
	}
	return e, nil
}

// Load opens a bundle file and builds an engine around it.
func Load(path string, opts Options) (*Engine, error) {
	b, err := bundle.Open(path)
	if err != nil {
		return nil, err
	}
	return New(b, opts)
}

// Model reports the bundle's model name.
func (e *Engine) Model() string { return e.bundle.Name }

// Stems reports the stem names in network output order.
func (e *Engine) Stems() []string { return e.bundle.Stems }

// SampleRate reports the rate the network was trained at.
func (e *Engine) SampleRate() int { return e.bundle.SampleRate }

// Channels reports the channel count the engine expects.
func (e *Engine) Channels() int { return e.bundle.Channels }

// Separate splits clip into stems, returning stems x channels x samples.
// The clip must already match the engine's sample rate and channel count.
// Long inputs are processed in overlapping chunks; cancellation is honored
// between chunks.
func (e *Engine) Separate(ctx context.Context, clip *audio.Buffer) ([][][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if clip == nil || clip.Frames() == 0 {
		return nil, errors.New("separation: empty input")
	}
	if clip.Channels() != e.bundle.Channels {
		return nil, fmt.Errorf("separation: input has %d channels, engine wants %d", clip.Channels(), e.bundle.Channels)
	}
	if clip.SampleRate != e.bundle.SampleRate {
		return nil, fmt.Errorf("separation: input is %d Hz, engine wants %d Hz", clip.SampleRate, e.bundle.SampleRate)
	}

	channels := make([][]float64, clip.Channels())
	for c := range channels {
		channels[c] = clip.ChannelFloat64(c)
	}
	n := clip.Frames()
	stems := len(e.bundle.Stems)

	out := make([][][]float64, stems)
	for s := range out {
		out[s] = make([][]float64, len(channels))
	}

	if n <= e.chunk {
		e.logger.Debug("processing input whole", logging.Int("samples", n))
		for c, samples := range channels {
			separated := e.separateChannel(samples)
			for s := range out {
				out[s][c] = separated[s]
			}
		}
		return out, nil
	}

	for s := range out {
		for c := range out[s] {
			out[s][c] = make([]float64, n)
		}
	}

	step := e.chunk - e.overlap
	total := (n-e.chunk+step-1)/step + 1
	weightSum := make([]float64, n)
	scratch := make([]float64, e.chunk)

	index := 0
	for start := 0; start < n; start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.chunk
		last := end >= n
		if last {
			end = n
		}
		length := end - start
		weights := chunkWeights(length, e.overlap, start == 0, last)
		index++
		e.logger.Debug("separating chunk",
			logging.Int("chunk", index),
			logging.Int("of", total),
			logging.Int("start", start),
			logging.Int("samples", length))

		for c, samples := range channels {
			segment := samples[start:end]
			if length < e.chunk {
				// Pad the final partial chunk to full length, trim after
				// synthesis.
				copy(scratch, segment)
				for i := length; i < e.chunk; i++ {
					scratch[i] = 0
				}
				segment = scratch
			}
			separated := e.separateChannel(segment)
			for s := 0; s < stems; s++ {
				dst := out[s][c]
				src := separated[s]
				for i := 0; i < length; i++ {
					dst[start+i] += src[i] * weights[i]
				}
			}
		}
		for i := 0; i < length; i++ {
			weightSum[start+i] += weights[i]
		}
		if last {
			break
		}
	}

	for s := range out {
		for c := range out[s] {
			dst := out[s][c]
			for i, w := range weightSum {
				if w > 0 {
					dst[i] /= w
				}
			}
		}
	}
	return out, nil
}

// separateChannel runs the full STFT, mask, ISTFT pipeline over one channel.
func (e *Engine) separateChannel(samples []float64) [][]float64 {
	spectrogram := e.transform.Analyze(samples)
	bins := e.transform.Bins()
	stems := len(e.bundle.Stems)

	masked := make([][][]complex128, stems)
	for s := range masked {
		masked[s] = make([][]complex128, len(spectrogram))
	}

	features := make([]float64, bins)
	masks := make([][]float64, stems)
	for s := range masks {
		masks[s] = make([]float64, bins)
	}
	scratch := make([][]float64, len(e.layers))
	for i, layer := range e.layers {
		scratch[i] = make([]float64, layer.out)
	}

	for t, frame := range spectrogram {
		for i := 0; i < bins; i++ {
			features[i] = dsp.LogMagnitude(cmplx.Abs(frame[i]))
		}
		logits := e.forward(features, scratch)
		softmaxAcrossStems(logits, masks)
		for s := 0; s < stems; s++ {
			masked[s][t] = dsp.ApplyMask(frame, masks[s])
		}
	}

	out := make([][]float64, stems)
	for s := range out {
		out[s] = e.transform.Synthesize(masked[s], len(samples))
	}
	return out
}

// forward evaluates the dense stack on one frame of features, reusing the
// per-layer scratch buffers.
func (e *Engine) forward(features []float64, scratch [][]float64) []float64 {
	x := features
	for li, layer := range e.layers {
		out := scratch[li]
		for o := 0; o < layer.out; o++ {
			sum := float64(layer.bias[o])
			row := layer.weight[o*layer.in : (o+1)*layer.in]
			for i, w := range row {
				sum += float64(w) * x[i]
			}
			if layer.relu && sum < 0 {
				sum = 0
			}
			out[o] = sum
		}
		x = out
	}
	return x
}

// softmaxAcrossStems turns the stem-major logit vector into per-stem masks
// that sum to one across stems for every frequency bin.
func softmaxAcrossStems(logits []float64, masks [][]float64) {
	stems := len(masks)
	if stems == 0 {
		return
	}
	bins := len(masks[0])
	for bin := 0; bin < bins; bin++ {
		maxLogit := logits[bin]
		for s := 1; s < stems; s++ {
			if v := logits[s*bins+bin]; v > maxLogit {
				maxLogit = v
			}
		}
		var sum float64
		for s := 0; s < stems; s++ {
			v := math.Exp(logits[s*bins+bin] - maxLogit)
			masks[s][bin] = v
			sum += v
		}
		for s := 0; s < stems; s++ {
			masks[s][bin] /= sum
		}
	}
}

// chunkWeights builds the triangular cross-fade envelope for one chunk.
// Interior chunks ramp up over the leading overlap and down over the
// trailing overlap; ramps of adjacent chunks sum to one at every sample.
func chunkWeights(length, overlap int, first, last bool) []float64 {
	w := make([]float64, length)
	for i := range w {
		w[i] = 1
	}
	if overlap <= 0 {
		return w
	}
	if !first {
		for i := 0; i < overlap && i < length; i++ {
			w[i] = float64(i+1) / float64(overlap+1)
		}
	}
	if !last {
		for i := 0; i < overlap && i < length; i++ {
			idx := length - 1 - i
			if v := float64(i+1) / float64(overlap+1); v < w[idx] {
				w[idx] = v
			}
		}
	}
	return w
}
