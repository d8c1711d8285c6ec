package testsupport

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"remix/internal/bundle"
)

// SafetensorsTensor describes one float32 tensor for BuildSafetensors.
type SafetensorsTensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// BuildSafetensors assembles an in-memory safetensors checkpoint. Tensors are
// laid out in sorted name order.
func BuildSafetensors(t testing.TB, tensors []SafetensorsTensor, metadata map[string]string) []byte {
	t.Helper()

	sorted := make([]SafetensorsTensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var data []byte
	for _, tensor := range sorted {
		start := len(data)
		for _, v := range tensor.Data {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		header[tensor.Name] = map[string]any{
			"dtype":        "F32",
			"shape":        tensor.Shape,
			"data_offsets": []int{start, len(data)},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("encode safetensors header: %v", err)
	}

	out := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	out = append(out, data...)
	return out
}

// WriteSafetensors writes a checkpoint built by BuildSafetensors to path.
func WriteSafetensors(t testing.TB, path string, tensors []SafetensorsTensor, metadata map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, BuildSafetensors(t, tensors, metadata), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// NewMaskBundle builds a minimal valid mask-estimator bundle: one linear
// layer with all-zero weights and biases, so softmax hands every stem an
// equal share of the input.
func NewMaskBundle(name string, sampleRate, window, hop int, stems []string) *bundle.Bundle {
	bins := window/2 + 1
	out := len(stems) * bins

	b := bundle.New(bundle.Header{
		Name:       name,
		SampleRate: sampleRate,
		Channels:   2,
		Window:     window,
		Hop:        hop,
		Stems:      stems,
	})
	b.Layers = append(b.Layers, bundle.Layer{
		Name:       "layers.0",
		Activation: bundle.ActivationLinear,
		In:         bins,
		Out:        out,
	})
	b.SetTensor(bundle.Tensor{Name: "layers.0.weight", Shape: []int{out, bins}, Data: make([]float32, out*bins)})
	b.SetTensor(bundle.Tensor{Name: "layers.0.bias", Shape: []int{out}, Data: make([]float32, out)})
	return b
}

// WriteMaskBundle writes a NewMaskBundle to path and returns it.
func WriteMaskBundle(t testing.TB, path, name string, sampleRate, window, hop int, stems []string) *bundle.Bundle {
	t.Helper()

	b := NewMaskBundle(name, sampleRate, window, hop, stems)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := b.WriteFile(path, false); err != nil {
		t.Fatalf("write bundle %s: %v", path, err)
	}
	return b
}
