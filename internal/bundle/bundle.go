package bundle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"

	"remix/internal/fileutil"
)

// RMXB container framing.
const (
	Magic   = "RMXB"
	Version = 1

	flagHalf = 1 << 0
)

// Layer activations.
const (
	ActivationReLU   = "relu"
	ActivationLinear = "linear"
)

// Layer describes one dense layer of the mask estimator.
type Layer struct {
	Name       string `json:"name"`
	Activation string `json:"activation"`
	In         int    `json:"in"`
	Out        int    `json:"out"`
}

// TensorInfo locates one tensor inside the bundle payload.
type TensorInfo struct {
	Dtype  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Header is the JSON-encoded network description embedded in a bundle.
type Header struct {
	Name       string                `json:"name"`
	SampleRate int                   `json:"sample_rate"`
	Channels   int                   `json:"channels"`
	Window     int                   `json:"window"`
	Hop        int                   `json:"hop"`
	Stems      []string              `json:"stems"`
	Layers     []Layer               `json:"layers"`
	Tensors    map[string]TensorInfo `json:"tensors,omitempty"`
}

// Bundle is a loaded or under-construction model bundle.
type Bundle struct {
	Header
	tensors map[string]Tensor
}

// New starts an empty bundle with the given description. Tensor table entries
// are produced at write time.
func New(header Header) *Bundle {
	header.Tensors = nil
	return &Bundle{Header: header, tensors: make(map[string]Tensor)}
}

// SetTensor stores a tensor under its name.
func (b *Bundle) SetTensor(t Tensor) {
	b.tensors[t.Name] = t
}

// Tensor fetches a tensor by name.
func (b *Bundle) Tensor(name string) (Tensor, error) {
	t, ok := b.tensors[name]
	if !ok {
		return Tensor{}, fmt.Errorf("no tensor %q in bundle %s", name, b.Name)
	}
	return t, nil
}

// TensorNames lists stored tensors in sorted order.
func (b *Bundle) TensorNames() []string {
	names := make([]string, 0, len(b.tensors))
	for name := range b.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bins reports the spectral frame width the network consumes.
func (b *Bundle) Bins() int {
	return b.Window/2 + 1
}

// Parameters reports the total element count across all tensors.
func (b *Bundle) Parameters() int {
	total := 0
	for _, t := range b.tensors {
		total += t.Elems()
	}
	return total
}

// Validate checks the network description against the stored tensors: every
// layer needs a weight shaped [out, in] and a bias shaped [out], consecutive
// layers must chain, the first layer must consume one spectral frame, and the
// last must emit stems x bins logits.
func (b *Bundle) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("bundle has no name")
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("bundle %s: invalid sample rate %d", b.Name, b.SampleRate)
	}
	if b.Window <= 0 || b.Window&(b.Window-1) != 0 {
		return fmt.Errorf("bundle %s: window %d is not a power of two", b.Name, b.Window)
	}
	if b.Hop <= 0 || b.Hop > b.Window {
		return fmt.Errorf("bundle %s: hop %d outside 1..%d", b.Name, b.Hop, b.Window)
	}
	if len(b.Stems) == 0 {
		return fmt.Errorf("bundle %s: no stems", b.Name)
	}
	if len(b.Layers) == 0 {
		return fmt.Errorf("bundle %s: no layers", b.Name)
	}

	bins := b.Bins()
	expectedIn := bins
	for i, layer := range b.Layers {
		switch layer.Activation {
		case ActivationReLU, ActivationLinear:
		default:
			return fmt.Errorf("bundle %s: layer %s has unknown activation %q", b.Name, layer.Name, layer.Activation)
		}
		if layer.In != expectedIn {
			return fmt.Errorf("bundle %s: layer %s consumes %d values, previous layer emits %d", b.Name, layer.Name, layer.In, expectedIn)
		}

		weight, err := b.Tensor(layer.Name + ".weight")
		if err != nil {
			return err
		}
		if err := weight.validate(); err != nil {
			return err
		}
		if len(weight.Shape) != 2 || weight.Shape[0] != layer.Out || weight.Shape[1] != layer.In {
			return fmt.Errorf("bundle %s: %s.weight shape %v, want [%d %d]", b.Name, layer.Name, weight.Shape, layer.Out, layer.In)
		}

		bias, err := b.Tensor(layer.Name + ".bias")
		if err != nil {
			return err
		}
		if err := bias.validate(); err != nil {
			return err
		}
		if len(bias.Shape) != 1 || bias.Shape[0] != layer.Out {
			return fmt.Errorf("bundle %s: %s.bias shape %v, want [%d]", b.Name, layer.Name, bias.Shape, layer.Out)
		}

		expectedIn = layer.Out
		if i == len(b.Layers)-1 {
			if layer.Out != len(b.Stems)*bins {
				return fmt.Errorf("bundle %s: final layer emits %d values, want %d stems x %d bins = %d",
					b.Name, layer.Out, len(b.Stems), bins, len(b.Stems)*bins)
			}
			if layer.Activation != ActivationLinear {
				return fmt.Errorf("bundle %s: final layer must be linear, is %s", b.Name, layer.Activation)
			}
		}
	}

	if extra := len(b.tensors) - 2*len(b.Layers); extra > 0 {
		return fmt.Errorf("bundle %s: %d tensors not referenced by any layer", b.Name, extra)
	}
	return nil
}

// WriteFile validates and writes the bundle. With half set, tensor data is
// stored as float16.
func (b *Bundle) WriteFile(path string, half bool) error {
	if err := b.Validate(); err != nil {
		return err
	}

	dtype := "f32"
	elemSize := 4
	var flags uint16
	if half {
		dtype = "f16"
		elemSize = 2
		flags |= flagHalf
	}

	// Lay tensors out in layer order so the payload is deterministic.
	header := b.Header
	header.Tensors = make(map[string]TensorInfo, len(b.tensors))
	var payloadSize int64
	for _, layer := range b.Layers {
		for _, suffix := range []string{".weight", ".bias"} {
			t := b.tensors[layer.Name+suffix]
			size := int64(t.Elems() * elemSize)
			header.Tensors[t.Name] = TensorInfo{
				Dtype:  dtype,
				Shape:  t.Shape,
				Offset: payloadSize,
				Size:   size,
			}
			payloadSize += size
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode bundle header: %w", err)
	}

	out := make([]byte, 0, 12+len(headerJSON)+int(payloadSize))
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint16(out, Version)
	out = binary.LittleEndian.AppendUint16(out, flags)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(headerJSON)))
	out = append(out, headerJSON...)

	for _, layer := range b.Layers {
		for _, suffix := range []string{".weight", ".bias"} {
			t := b.tensors[layer.Name+suffix]
			for _, v := range t.Data {
				if half {
					out = binary.LittleEndian.AppendUint16(out, float16.Fromfloat32(v).Bits())
				} else {
					out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
				}
			}
		}
	}

	return fileutil.WriteFileAtomic(path, out, 0o644)
}

// Open reads and validates a bundle file.
func Open(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(raw) < 12 || string(raw[0:4]) != Magic {
		return nil, fmt.Errorf("%s is not a model bundle", path)
	}
	version := binary.LittleEndian.Uint16(raw[4:6])
	if version != Version {
		return nil, fmt.Errorf("%s: unsupported bundle version %d", path, version)
	}
	headerLen := binary.LittleEndian.Uint32(raw[8:12])
	if int(headerLen) > len(raw)-12 {
		return nil, fmt.Errorf("%s: header length %d exceeds file size", path, headerLen)
	}

	var header Header
	if err := json.Unmarshal(raw[12:12+headerLen], &header); err != nil {
		return nil, fmt.Errorf("%s: bundle header: %w", path, err)
	}

	payload := raw[12+headerLen:]
	b := &Bundle{Header: header, tensors: make(map[string]Tensor, len(header.Tensors))}
	for name, info := range header.Tensors {
		if info.Size < 0 || info.Offset < 0 || info.Offset+info.Size > int64(len(payload)) {
			return nil, fmt.Errorf("%s: tensor %s outside payload", path, name)
		}
		raw := payload[info.Offset : info.Offset+info.Size]

		elems := int64(1)
		for _, dim := range info.Shape {
			if dim <= 0 {
				return nil, fmt.Errorf("%s: tensor %s has non-positive dimension in shape %v", path, name, info.Shape)
			}
			elems *= int64(dim)
		}
		var elemSize int64
		switch info.Dtype {
		case "f32":
			elemSize = 4
		case "f16":
			elemSize = 2
		default:
			return nil, fmt.Errorf("%s: tensor %s has unsupported dtype %q", path, name, info.Dtype)
		}
		if elems*elemSize != info.Size {
			return nil, fmt.Errorf("%s: tensor %s size %d does not match shape %v", path, name, info.Size, info.Shape)
		}

		data := make([]float32, elems)
		if elemSize == 4 {
			for i := range data {
				data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
			}
		} else {
			for i := range data {
				data[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
			}
		}

		shape := make([]int, len(info.Shape))
		copy(shape, info.Shape)
		b.tensors[name] = Tensor{Name: name, Shape: shape, Data: data}
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
