package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"remix/internal/audio"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// SineBuffer synthesizes a stereo test tone.
func SineBuffer(sampleRate, frames int, freq float64) *audio.Buffer {
	buf := audio.NewBuffer(sampleRate, 2, frames)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		buf.Data[0][i] = v
		buf.Data[1][i] = v
	}
	return buf
}

// WriteSineWAV writes a stereo sine tone to path and returns the buffer.
func WriteSineWAV(t testing.TB, path string, sampleRate, frames int, freq float64) *audio.Buffer {
	t.Helper()

	buf := SineBuffer(sampleRate, frames, freq)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := audio.SaveWAV(path, buf); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
	return buf
}
