package bundle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Stem vocabularies used when a checkpoint does not name its outputs.
var (
	stemNames6 = []string{"drums", "bass", "vocals", "guitar", "piano", "other"}
	stemNames4 = []string{"drums", "bass", "vocals", "other"}
)

// ConvertOptions control checkpoint conversion. Zero values defer to
// checkpoint metadata, then to derivation from the tensors themselves.
type ConvertOptions struct {
	Name       string
	SampleRate int
	Channels   int
	Window     int
	Hop        int
	Stems      []string
	Half       bool
}

// ConvertResult reports what Convert assembled.
type ConvertResult struct {
	Bundle     *Bundle
	Layers     int
	Parameters int
}

// Convert maps a safetensors checkpoint onto a mask-estimator bundle. Every
// tensor must belong to a weight/bias pair; pairs are ordered by the natural
// sort of their prefix, shapes must chain, and the resulting geometry must
// describe whole stems.
func Convert(src *Safetensors, opts ConvertOptions) (*ConvertResult, error) {
	prefixes, err := collectLayerPrefixes(src)
	if err != nil {
		return nil, err
	}

	type pair struct {
		prefix string
		weight Tensor
		bias   Tensor
	}
	pairs := make([]pair, 0, len(prefixes))
	for _, prefix := range prefixes {
		weight, err := src.Tensor(prefix + ".weight")
		if err != nil {
			return nil, err
		}
		if len(weight.Shape) != 2 {
			return nil, fmt.Errorf("tensor %s.weight: want a 2-D [out, in] matrix, got shape %v", prefix, weight.Shape)
		}
		bias, err := src.Tensor(prefix + ".bias")
		if err != nil {
			return nil, err
		}
		if len(bias.Shape) != 1 || bias.Shape[0] != weight.Shape[0] {
			return nil, fmt.Errorf("tensor %s.bias: shape %v does not match weight rows %d", prefix, bias.Shape, weight.Shape[0])
		}
		pairs = append(pairs, pair{prefix: prefix, weight: weight, bias: bias})
	}

	for i := 1; i < len(pairs); i++ {
		prevOut := pairs[i-1].weight.Shape[0]
		in := pairs[i].weight.Shape[1]
		if in != prevOut {
			return nil, fmt.Errorf("layer %s consumes %d values but %s emits %d",
				pairs[i].prefix, in, pairs[i-1].prefix, prevOut)
		}
	}

	bins := pairs[0].weight.Shape[1]
	window := opts.Window
	if window == 0 {
		window = metadataInt(src, "window")
	}
	if window == 0 {
		window = (bins - 1) * 2
	}
	if window/2+1 != bins {
		return nil, fmt.Errorf("first layer consumes %d values, but window %d implies %d bins", bins, window, window/2+1)
	}

	hop := opts.Hop
	if hop == 0 {
		hop = metadataInt(src, "hop")
	}
	if hop == 0 {
		hop = window / 4
	}

	lastOut := pairs[len(pairs)-1].weight.Shape[0]
	if lastOut%bins != 0 {
		return nil, fmt.Errorf("final layer emits %d values, not a multiple of %d bins", lastOut, bins)
	}
	stemCount := lastOut / bins

	stems := opts.Stems
	if len(stems) == 0 {
		stems = metadataStems(src)
	}
	if len(stems) == 0 {
		stems = defaultStems(stemCount)
	}
	if len(stems) != stemCount {
		return nil, fmt.Errorf("%d stem names for a network emitting %d stems", len(stems), stemCount)
	}

	name := opts.Name
	if name == "" {
		name = src.Metadata["name"]
	}
	if name == "" {
		name = "remixnet"
	}

	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = metadataInt(src, "sample_rate")
	}
	if sampleRate == 0 {
		sampleRate = 44100
	}

	channels := opts.Channels
	if channels == 0 {
		channels = metadataInt(src, "channels")
	}
	if channels == 0 {
		channels = 2
	}

	header := Header{
		Name:       name,
		SampleRate: sampleRate,
		Channels:   channels,
		Window:     window,
		Hop:        hop,
		Stems:      stems,
	}
	b := New(header)

	for i, p := range pairs {
		layerName := fmt.Sprintf("layers.%d", i)
		activation := ActivationReLU
		if i == len(pairs)-1 {
			activation = ActivationLinear
		}
		b.Layers = append(b.Layers, Layer{
			Name:       layerName,
			Activation: activation,
			In:         p.weight.Shape[1],
			Out:        p.weight.Shape[0],
		})
		p.weight.Name = layerName + ".weight"
		p.bias.Name = layerName + ".bias"
		b.SetTensor(p.weight)
		b.SetTensor(p.bias)
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &ConvertResult{Bundle: b, Layers: len(pairs), Parameters: b.Parameters()}, nil
}

// collectLayerPrefixes pairs up *.weight and *.bias tensors and rejects
// anything else in the checkpoint.
func collectLayerPrefixes(src *Safetensors) ([]string, error) {
	prefixSet := make(map[string]bool)
	var stray []string
	for _, name := range src.Names() {
		switch {
		case strings.HasSuffix(name, ".weight"):
			prefixSet[strings.TrimSuffix(name, ".weight")] = true
		case strings.HasSuffix(name, ".bias"):
			prefixSet[strings.TrimSuffix(name, ".bias")] = true
		default:
			stray = append(stray, name)
		}
	}
	if len(stray) > 0 {
		return nil, fmt.Errorf("checkpoint carries unsupported tensors: %s", strings.Join(stray, ", "))
	}
	if len(prefixSet) == 0 {
		return nil, fmt.Errorf("checkpoint has no weight/bias tensors")
	}

	prefixes := make([]string, 0, len(prefixSet))
	for prefix := range prefixSet {
		if !src.Has(prefix + ".weight") {
			return nil, fmt.Errorf("tensor %s.bias has no matching weight", prefix)
		}
		if !src.Has(prefix + ".bias") {
			return nil, fmt.Errorf("tensor %s.weight has no matching bias", prefix)
		}
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return naturalLess(prefixes[i], prefixes[j]) })
	return prefixes, nil
}

func defaultStems(count int) []string {
	switch count {
	case len(stemNames6):
		return append([]string(nil), stemNames6...)
	case len(stemNames4):
		return append([]string(nil), stemNames4...)
	default:
		stems := make([]string, count)
		for i := range stems {
			stems[i] = fmt.Sprintf("source_%d", i)
		}
		return stems
	}
}

func metadataInt(src *Safetensors, key string) int {
	raw, ok := src.Metadata[key]
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func metadataStems(src *Safetensors) []string {
	raw, ok := src.Metadata["stems"]
	if !ok {
		return nil
	}
	var stems []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			stems = append(stems, trimmed)
		}
	}
	return stems
}

// naturalLess orders strings with embedded integers numerically, so layers.2
// sorts before layers.10.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		aDigit := a[0] >= '0' && a[0] <= '9'
		bDigit := b[0] >= '0' && b[0] <= '9'
		if aDigit && bDigit {
			aNum, aRest := splitLeadingInt(a)
			bNum, bRest := splitLeadingInt(b)
			if aNum != bNum {
				return aNum < bNum
			}
			a, b = aRest, bRest
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func splitLeadingInt(s string) (int64, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	v, _ := strconv.ParseInt(s[:i], 10, 64)
	return v, s[i:]
}
