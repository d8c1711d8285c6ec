package audio_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"remix/internal/audio"
)

func TestDetectFormatBytes(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   audio.Format
	}{
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVE"), audio.FormatWAV},
		{"flac", []byte("fLaC\x00\x00\x00\x22"), audio.FormatFLAC},
		{"mp3 id3", []byte("ID3\x04\x00"), audio.FormatMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, audio.FormatMP3},
		{"riff but not wave", []byte("RIFF\x24\x08\x00\x00AVI "), audio.FormatUnknown},
		{"empty", nil, audio.FormatUnknown},
		{"text", []byte("hello world, not audio"), audio.FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := audio.DetectFormatBytes(tc.header); got != tc.want {
				t.Fatalf("DetectFormatBytes = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEnsureStereo(t *testing.T) {
	mono := audio.NewBuffer(44100, 1, 3)
	mono.Data[0] = []float32{0.1, 0.2, 0.3}

	stereo := mono.EnsureStereo()
	if stereo.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", stereo.Channels())
	}
	for i := range mono.Data[0] {
		if stereo.Data[0][i] != mono.Data[0][i] || stereo.Data[1][i] != mono.Data[0][i] {
			t.Fatalf("frame %d not duplicated: %v / %v", i, stereo.Data[0][i], stereo.Data[1][i])
		}
	}

	quad := audio.NewBuffer(44100, 4, 2)
	trimmed := quad.EnsureStereo()
	if trimmed.Channels() != 2 {
		t.Fatalf("quad trimmed to %d channels, want 2", trimmed.Channels())
	}

	already := audio.NewBuffer(44100, 2, 2)
	if already.EnsureStereo() != already {
		t.Fatal("stereo buffer should be returned unchanged")
	}
}

func TestMonoMixdown(t *testing.T) {
	buf := audio.NewBuffer(44100, 2, 2)
	buf.Data[0] = []float32{1.0, 0.0}
	buf.Data[1] = []float32{0.0, 0.5}

	mono := buf.Mono()
	if len(mono) != 2 {
		t.Fatalf("mono length = %d, want 2", len(mono))
	}
	if math.Abs(mono[0]-0.5) > 1e-9 || math.Abs(mono[1]-0.25) > 1e-9 {
		t.Fatalf("mixdown = %v, want [0.5 0.25]", mono)
	}
}

func TestNormalizePeak(t *testing.T) {
	quiet := audio.NewBuffer(44100, 1, 2)
	quiet.Data[0] = []float32{0.5, -0.9}
	if gain := quiet.NormalizePeak(); gain != 1.0 {
		t.Fatalf("gain = %v, want 1.0 for in-range audio", gain)
	}
	if quiet.Data[0][0] != 0.5 {
		t.Fatal("in-range audio should not be rescaled")
	}

	hot := audio.NewBuffer(44100, 1, 2)
	hot.Data[0] = []float32{2.0, -1.0}
	gain := hot.NormalizePeak()
	if math.Abs(float64(gain)-0.5) > 1e-6 {
		t.Fatalf("gain = %v, want 0.5", gain)
	}
	if math.Abs(float64(hot.Data[0][0])-1.0) > 1e-6 {
		t.Fatalf("peak after normalize = %v, want 1.0", hot.Data[0][0])
	}
}

func TestBufferDuration(t *testing.T) {
	buf := audio.NewBuffer(44100, 2, 22050)
	if got := buf.Duration(); got != 500*time.Millisecond {
		t.Fatalf("duration = %v, want 500ms", got)
	}
}

func TestResampleChangesRate(t *testing.T) {
	const srcRate, dstRate = 44100, 22050
	src := audio.NewBuffer(srcRate, 2, srcRate)
	for i := range src.Data[0] {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / srcRate))
		src.Data[0][i] = v
		src.Data[1][i] = v
	}

	out := audio.Resample(src, dstRate)
	if out.SampleRate != dstRate {
		t.Fatalf("sample rate = %d, want %d", out.SampleRate, dstRate)
	}
	want := float64(src.Frames()) * dstRate / srcRate
	if ratio := float64(out.Frames()) / want; ratio < 0.99 || ratio > 1.01 {
		t.Fatalf("resampled to %d frames, want about %.0f", out.Frames(), want)
	}
}

func TestResampleNoOpAtSameRate(t *testing.T) {
	buf := audio.NewBuffer(44100, 2, 16)
	if audio.Resample(buf, 44100) != buf {
		t.Fatal("same-rate resample should return the input buffer")
	}
}

func TestDecodeFileWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	src := audio.NewBuffer(44100, 2, 64)
	for i := range src.Data[0] {
		src.Data[0][i] = float32(i) / 64
		src.Data[1][i] = -float32(i) / 64
	}
	if err := audio.SaveWAV(path, src); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}

	decoded, format, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if format != audio.FormatWAV {
		t.Fatalf("format = %q, want wav", format)
	}
	if decoded.Frames() != 64 || decoded.Channels() != 2 {
		t.Fatalf("geometry = %dch x %d, want 2x64", decoded.Channels(), decoded.Frames())
	}
	if decoded.Data[0][32] != 0.5 {
		t.Fatalf("sample mismatch: %v", decoded.Data[0][32])
	}
}

func TestDecodeFileRejectsUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("these are lyrics, not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := audio.DecodeFile(path)
	if err == nil {
		t.Fatal("expected error for unsupported input")
	}
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeBytesWAV(t *testing.T) {
	src := audio.NewBuffer(22050, 1, 16)
	for i := range src.Data[0] {
		src.Data[0][i] = float32(i) / 16
	}
	var encoded bytes.Buffer
	if err := audio.EncodeWAV(&encoded, src); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, format, err := audio.DecodeBytes(encoded.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if format != audio.FormatWAV {
		t.Fatalf("format = %q, want wav", format)
	}
	if decoded.Frames() != 16 || decoded.Channels() != 1 {
		t.Fatalf("geometry = %dch x %d, want 1x16", decoded.Channels(), decoded.Frames())
	}
}

func TestProbeWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.wav")

	src := audio.NewBuffer(48000, 2, 4800)
	if err := audio.SaveWAV(path, src); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}

	info, err := audio.Probe(path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Format != audio.FormatWAV {
		t.Fatalf("format = %q, want wav", info.Format)
	}
	if info.SampleRate != 48000 || info.Channels != 2 || info.Frames != 4800 {
		t.Fatalf("probe = %d Hz %dch %d frames", info.SampleRate, info.Channels, info.Frames)
	}
	if info.BitDepth != 32 {
		t.Fatalf("bit depth = %d, want 32", info.BitDepth)
	}
	if info.Duration != 100*time.Millisecond {
		t.Fatalf("duration = %v, want 100ms", info.Duration)
	}
	if info.SizeBytes == 0 {
		t.Fatal("expected non-zero file size")
	}
}
