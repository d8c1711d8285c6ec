package bundle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"
)

// Safetensors gives random access to the tensors of a parsed checkpoint.
type Safetensors struct {
	Metadata map[string]string

	names   []string
	entries map[string]safetensorsEntry
	data    []byte
}

type safetensorsEntry struct {
	Dtype       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// OpenSafetensors reads and parses a safetensors checkpoint file.
func OpenSafetensors(path string) (*Safetensors, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st, err := ParseSafetensors(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

// ParseSafetensors parses an in-memory safetensors payload: a little-endian
// u64 header length, a JSON header mapping tensor names to dtype, shape, and
// data offsets, then the packed tensor bytes.
func ParseSafetensors(raw []byte) (*Safetensors, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("truncated: %d bytes", len(raw))
	}
	headerLen := binary.LittleEndian.Uint64(raw[0:8])
	if headerLen > uint64(len(raw)-8) {
		return nil, fmt.Errorf("header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("header json: %w", err)
	}

	st := &Safetensors{
		entries: make(map[string]safetensorsEntry, len(header)),
		data:    raw[8+headerLen:],
	}

	for name, body := range header {
		if name == "__metadata__" {
			if err := json.Unmarshal(body, &st.Metadata); err != nil {
				return nil, fmt.Errorf("metadata: %w", err)
			}
			continue
		}
		var entry safetensorsEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		if err := validateEntry(name, entry, int64(len(st.data))); err != nil {
			return nil, err
		}
		st.entries[name] = entry
		st.names = append(st.names, name)
	}
	sort.Strings(st.names)
	return st, nil
}

func validateEntry(name string, entry safetensorsEntry, dataLen int64) error {
	size, err := dtypeSize(entry.Dtype)
	if err != nil {
		return fmt.Errorf("tensor %s: %w", name, err)
	}
	elems := int64(1)
	for _, dim := range entry.Shape {
		if dim <= 0 {
			return fmt.Errorf("tensor %s: non-positive dimension in shape %v", name, entry.Shape)
		}
		elems *= int64(dim)
	}
	start, end := entry.DataOffsets[0], entry.DataOffsets[1]
	if start < 0 || end < start || end > dataLen {
		return fmt.Errorf("tensor %s: offsets [%d, %d) outside data of %d bytes", name, start, end, dataLen)
	}
	if end-start != elems*int64(size) {
		return fmt.Errorf("tensor %s: shape %v (%s) implies %d bytes, offsets span %d",
			name, entry.Shape, entry.Dtype, elems*int64(size), end-start)
	}
	return nil
}

func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case "F32":
		return 4, nil
	case "F16":
		return 2, nil
	case "F64":
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

// Names lists the tensor names in sorted order.
func (s *Safetensors) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether the checkpoint carries a tensor with the given name.
func (s *Safetensors) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Tensor decodes one tensor to float32.
func (s *Safetensors) Tensor(name string) (Tensor, error) {
	entry, ok := s.entries[name]
	if !ok {
		return Tensor{}, fmt.Errorf("no tensor %q in checkpoint", name)
	}

	raw := s.data[entry.DataOffsets[0]:entry.DataOffsets[1]]
	elems := 1
	for _, dim := range entry.Shape {
		elems *= dim
	}

	data := make([]float32, elems)
	switch entry.Dtype {
	case "F32":
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F16":
		for i := range data {
			data[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
	case "F64":
		for i := range data {
			data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	}

	shape := make([]int, len(entry.Shape))
	copy(shape, entry.Shape)
	return Tensor{Name: name, Shape: shape, Data: data}, nil
}
