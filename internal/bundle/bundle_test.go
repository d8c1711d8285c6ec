package bundle_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"remix/internal/bundle"
	"remix/internal/testsupport"
)

func buildTwoLayerBundle() *bundle.Bundle {
	// window 8 -> 5 bins, 2 stems -> final out 10, one hidden layer of 6.
	b := bundle.New(bundle.Header{
		Name:       "tiny",
		SampleRate: 44100,
		Channels:   2,
		Window:     8,
		Hop:        2,
		Stems:      []string{"vocals", "other"},
	})
	b.Layers = []bundle.Layer{
		{Name: "layers.0", Activation: bundle.ActivationReLU, In: 5, Out: 6},
		{Name: "layers.1", Activation: bundle.ActivationLinear, In: 6, Out: 10},
	}

	w0 := bundle.Tensor{Name: "layers.0.weight", Shape: []int{6, 5}, Data: make([]float32, 30)}
	b0 := bundle.Tensor{Name: "layers.0.bias", Shape: []int{6}, Data: make([]float32, 6)}
	w1 := bundle.Tensor{Name: "layers.1.weight", Shape: []int{10, 6}, Data: make([]float32, 60)}
	b1 := bundle.Tensor{Name: "layers.1.bias", Shape: []int{10}, Data: make([]float32, 10)}
	for i := range w0.Data {
		w0.Data[i] = float32(i)*0.125 - 1.5
	}
	for i := range w1.Data {
		w1.Data[i] = float32(i)*-0.0625 + 1.25
	}
	for i := range b0.Data {
		b0.Data[i] = float32(i) * 0.25
	}
	for i := range b1.Data {
		b1.Data[i] = -float32(i) * 0.5
	}
	b.SetTensor(w0)
	b.SetTensor(b0)
	b.SetTensor(w1)
	b.SetTensor(b1)
	return b
}

func TestBundleRoundTripFloat32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.rmxb")
	src := buildTwoLayerBundle()

	if err := src.WriteFile(path, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := bundle.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if loaded.Name != "tiny" || loaded.SampleRate != 44100 || loaded.Window != 8 || loaded.Hop != 2 {
		t.Fatalf("header mismatch: %+v", loaded.Header)
	}
	if len(loaded.Stems) != 2 || loaded.Stems[0] != "vocals" {
		t.Fatalf("stems = %v", loaded.Stems)
	}
	if len(loaded.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(loaded.Layers))
	}

	for _, name := range src.TensorNames() {
		want, _ := src.Tensor(name)
		got, err := loaded.Tensor(name)
		if err != nil {
			t.Fatalf("tensor %s: %v", name, err)
		}
		for i := range want.Data {
			if got.Data[i] != want.Data[i] {
				t.Fatalf("tensor %s[%d] = %v, want exact %v", name, i, got.Data[i], want.Data[i])
			}
		}
	}
}

func TestBundleRoundTripHalf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny-half.rmxb")
	src := buildTwoLayerBundle()

	if err := src.WriteFile(path, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := bundle.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, name := range src.TensorNames() {
		want, _ := src.Tensor(name)
		got, _ := loaded.Tensor(name)
		for i := range want.Data {
			diff := math.Abs(float64(got.Data[i] - want.Data[i]))
			// Half precision keeps about three decimal digits at this scale.
			if diff > 0.01 {
				t.Fatalf("tensor %s[%d] drifted by %v after f16 round trip", name, i, diff)
			}
		}
	}
}

func TestBundleValidateCatchesBrokenChain(t *testing.T) {
	b := buildTwoLayerBundle()
	b.Layers[1].In = 7
	if err := b.Validate(); err == nil {
		t.Fatal("expected chain validation error")
	}
}

func TestBundleValidateRequiresLinearFinal(t *testing.T) {
	b := buildTwoLayerBundle()
	b.Layers[1].Activation = bundle.ActivationReLU
	if err := b.Validate(); err == nil {
		t.Fatal("expected final activation validation error")
	}
}

func TestBundleValidateStemGeometry(t *testing.T) {
	b := buildTwoLayerBundle()
	b.Stems = []string{"vocals", "drums", "other"}
	if err := b.Validate(); err == nil {
		t.Fatal("expected stem geometry validation error")
	}
}

func TestOpenRejectsCorruptTensorTable(t *testing.T) {
	cases := []struct {
		name   string
		tensor string
	}{
		{"negative dimension", `{"dtype":"f32","shape":[-1,10],"offset":0,"size":40}`},
		{"zero dimension", `{"dtype":"f32","shape":[0,10],"offset":0,"size":0}`},
		{"negative size", `{"dtype":"f32","shape":[2,5],"offset":0,"size":-40}`},
		{"size shape mismatch", `{"dtype":"f32","shape":[2,5],"offset":0,"size":8}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := `{"name":"corrupt","sample_rate":44100,"channels":2,"window":8,"hop":2,` +
				`"stems":["vocals","other"],` +
				`"layers":[{"name":"layers.0","activation":"linear","in":5,"out":10}],` +
				`"tensors":{"layers.0.weight":` + tc.tensor + `}}`

			raw := []byte(bundle.Magic)
			raw = binary.LittleEndian.AppendUint16(raw, bundle.Version)
			raw = binary.LittleEndian.AppendUint16(raw, 0)
			raw = binary.LittleEndian.AppendUint32(raw, uint32(len(header)))
			raw = append(raw, header...)
			raw = append(raw, make([]byte, 40)...)

			path := filepath.Join(t.TempDir(), "corrupt.rmxb")
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := bundle.Open(path); err == nil {
				t.Fatal("expected error for corrupt tensor table")
			}
		})
	}
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-bundle")
	if err := os.WriteFile(path, []byte("RIFFnope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.Open(path); err == nil {
		t.Fatal("expected error for non-bundle file")
	}
}

func TestMaskBundleFixtureIsValid(t *testing.T) {
	b := testsupport.NewMaskBundle("fixture", 44100, 64, 16, []string{"vocals", "other"})
	if err := b.Validate(); err != nil {
		t.Fatalf("fixture bundle invalid: %v", err)
	}
	if b.Bins() != 33 {
		t.Fatalf("bins = %d, want 33", b.Bins())
	}
	if b.Parameters() != 66*33+66 {
		t.Fatalf("parameters = %d", b.Parameters())
	}
}
