package audio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"remix/internal/audio"
)

func TestWAVFloat32RoundTrip(t *testing.T) {
	src := audio.NewBuffer(44100, 2, 4)
	src.Data[0] = []float32{0.5, -0.25, 1.0, -1.0}
	src.Data[1] = []float32{0.125, 0, -0.75, 0.33}

	var out bytes.Buffer
	if err := audio.EncodeWAV(&out, src); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, err := audio.DecodeWAV(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if decoded.SampleRate != 44100 {
		t.Fatalf("sample rate = %d, want 44100", decoded.SampleRate)
	}
	if decoded.Channels() != 2 || decoded.Frames() != 4 {
		t.Fatalf("geometry = %dch x %d frames, want 2x4", decoded.Channels(), decoded.Frames())
	}
	for ch := range src.Data {
		for i := range src.Data[ch] {
			if decoded.Data[ch][i] != src.Data[ch][i] {
				t.Fatalf("sample [%d][%d] = %v, want %v", ch, i, decoded.Data[ch][i], src.Data[ch][i])
			}
		}
	}
}

func TestDecodeWAVPCM16(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768, 100}
	raw := encodePCM16(t, 22050, 2, samples)

	decoded, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if decoded.SampleRate != 22050 {
		t.Fatalf("sample rate = %d, want 22050", decoded.SampleRate)
	}
	if decoded.Channels() != 2 || decoded.Frames() != 3 {
		t.Fatalf("geometry = %dch x %d frames, want 2x3", decoded.Channels(), decoded.Frames())
	}

	if got, want := decoded.Data[0][0], float32(0); got != want {
		t.Fatalf("first sample = %v, want %v", got, want)
	}
	if got, want := decoded.Data[1][0], float32(0.5); got != want {
		t.Fatalf("second sample = %v, want %v", got, want)
	}
	if got := decoded.Data[1][1]; math.Abs(float64(got)-32767.0/32768.0) > 1e-6 {
		t.Fatalf("max sample = %v, want ~0.99997", got)
	}
	if got, want := decoded.Data[0][2], float32(-1.0); got != want {
		t.Fatalf("min sample = %v, want %v", got, want)
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	raw := encodePCM16(t, 8000, 1, []int16{1000, -1000})

	// Splice a LIST chunk between fmt and data.
	fmtEnd := 12 + 8 + 16
	list := append([]byte("LIST"), 0, 0, 0, 0)
	list[4] = 6
	list = append(list, []byte("INFOab")...)
	spliced := append(append(append([]byte{}, raw[:fmtEnd]...), list...), raw[fmtEnd:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	decoded, err := audio.DecodeWAV(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("DecodeWAV with LIST chunk: %v", err)
	}
	if decoded.Frames() != 2 {
		t.Fatalf("frames = %d, want 2", decoded.Frames())
	}
}

func TestDecodeWAVRejectsUndersizedBlockAlign(t *testing.T) {
	raw := encodePCM16(t, 8000, 2, []int16{1000, -1000})

	// Corrupt the fmt chunk: a block align of 1 cannot hold two 16-bit
	// channels, so frame offsets would run past the data chunk.
	blockAlignOffset := 12 + 8 + 12
	binary.LittleEndian.PutUint16(raw[blockAlignOffset:blockAlignOffset+2], 1)

	if _, err := audio.DecodeWAV(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected error for block align smaller than a frame")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := audio.DecodeWAV(bytes.NewReader([]byte("definitely not riff data"))); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

// encodePCM16 builds a minimal PCM16 WAV byte stream. Samples are interleaved
// across the given channel count.
func encodePCM16(t *testing.T, sampleRate, channels int, samples []int16) []byte {
	t.Helper()
	if len(samples)%channels != 0 {
		t.Fatalf("sample count %d not divisible by %d channels", len(samples), channels)
	}

	blockAlign := channels * 2
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+16+8+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}
