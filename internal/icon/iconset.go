package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"remix/internal/fileutil"
)

// iconsetSizes lists the .iconset members as point size and scale.
var iconsetSizes = []struct {
	points int
	scale  int
}{
	{16, 1}, {16, 2},
	{32, 1}, {32, 2},
	{128, 1}, {128, 2},
	{256, 1}, {256, 2},
	{512, 1}, {512, 2},
}

// icnsEntries maps ICNS type codes to rendered pixel sizes. The retina
// codes reuse the pixel size of the next point size up.
var icnsEntries = []struct {
	code   string
	pixels int
}{
	{"icp4", 16},
	{"ic11", 32},
	{"icp5", 32},
	{"ic12", 64},
	{"icp6", 64},
	{"ic07", 128},
	{"ic13", 256},
	{"ic08", 256},
	{"ic14", 512},
	{"ic09", 512},
	{"ic10", 1024},
}

// WritePNG renders the icon at size and writes it to path.
func WritePNG(path string, size int, params Params) error {
	data, err := encodePNG(size, params)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// WriteIconset renders every .iconset member into dir and returns the
// written paths.
func WriteIconset(dir string, params Params) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create iconset dir: %w", err)
	}
	paths := make([]string, 0, len(iconsetSizes))
	for _, spec := range iconsetSizes {
		name := fmt.Sprintf("icon_%dx%d.png", spec.points, spec.points)
		if spec.scale == 2 {
			name = fmt.Sprintf("icon_%dx%d@2x.png", spec.points, spec.points)
		}
		data, err := encodePNG(spec.points*spec.scale, params)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteICNS renders the icon into a native ICNS container: the icns magic,
// a big-endian total length, then typed PNG entries.
func WriteICNS(path string, params Params) error {
	rendered := make(map[int][]byte, len(icnsEntries))
	var body bytes.Buffer
	for _, entry := range icnsEntries {
		data, ok := rendered[entry.pixels]
		if !ok {
			var err error
			data, err = encodePNG(entry.pixels, params)
			if err != nil {
				return err
			}
			rendered[entry.pixels] = data
		}
		body.WriteString(entry.code)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)+8))
		body.Write(lenBuf[:])
		body.Write(data)
	}

	var out bytes.Buffer
	out.WriteString("icns")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()+8))
	out.Write(lenBuf[:])
	out.Write(body.Bytes())
	return fileutil.WriteFileAtomic(path, out.Bytes(), 0o644)
}

func encodePNG(size int, params Params) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Draw(size, params)); err != nil {
		return nil, fmt.Errorf("encode %dpx icon: %w", size, err)
	}
	return buf.Bytes(), nil
}
