package dsp_test

import (
	"math"
	"math/cmplx"
	"testing"

	"remix/internal/dsp"
)

func sine(n int, freq, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return out
}

func TestAnalyzeSynthesizeRoundTrip(t *testing.T) {
	tr := dsp.NewTransform(512, 128)
	signal := sine(4096, 440, 44100)

	spec := tr.Analyze(signal)
	if len(spec) == 0 {
		t.Fatal("expected frames from analysis")
	}
	if len(spec[0]) != 512 {
		t.Fatalf("frame length = %d, want 512", len(spec[0]))
	}

	rebuilt := tr.Synthesize(spec, len(signal))
	if len(rebuilt) != len(signal) {
		t.Fatalf("rebuilt length = %d, want %d", len(rebuilt), len(signal))
	}

	// Window taper leaves the outermost samples unreliable; everything else
	// must reconstruct to FFT precision.
	for i := 1; i < len(signal)-1; i++ {
		if diff := math.Abs(rebuilt[i] - signal[i]); diff > 1e-6 {
			t.Fatalf("sample %d differs by %g", i, diff)
		}
	}
}

func TestAnalyzePadsShortInput(t *testing.T) {
	tr := dsp.NewTransform(1024, 256)
	signal := sine(300, 200, 8000)

	spec := tr.Analyze(signal)
	if len(spec) != 1 {
		t.Fatalf("expected a single padded frame, got %d", len(spec))
	}

	rebuilt := tr.Synthesize(spec, len(signal))
	if len(rebuilt) != 300 {
		t.Fatalf("rebuilt length = %d, want 300", len(rebuilt))
	}
	for i := 1; i < len(signal); i++ {
		if diff := math.Abs(rebuilt[i] - signal[i]); diff > 1e-6 {
			t.Fatalf("sample %d differs by %g", i, diff)
		}
	}
}

func TestAnalyzeEmptySignal(t *testing.T) {
	tr := dsp.NewTransform(512, 128)
	if spec := tr.Analyze(nil); spec != nil {
		t.Fatalf("expected nil spectrogram for empty input, got %d frames", len(spec))
	}
	out := tr.Synthesize(nil, 64)
	if len(out) != 64 {
		t.Fatalf("synthesize length = %d, want 64", len(out))
	}
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence from empty spectrogram")
		}
	}
}

func TestBins(t *testing.T) {
	if got := dsp.NewTransform(2048, 512).Bins(); got != 1025 {
		t.Fatalf("bins = %d, want 1025", got)
	}
}

func TestMagnitudes(t *testing.T) {
	tr := dsp.NewTransform(256, 64)
	spec := tr.Analyze(sine(1024, 1000, 8000))

	mags := tr.Magnitudes(spec)
	if len(mags) != len(spec) {
		t.Fatalf("magnitude frames = %d, want %d", len(mags), len(spec))
	}
	if len(mags[0]) != tr.Bins() {
		t.Fatalf("bins per frame = %d, want %d", len(mags[0]), tr.Bins())
	}
	for i, frame := range mags {
		for j, m := range frame {
			if m < 0 {
				t.Fatalf("negative magnitude at [%d][%d]", i, j)
			}
			if want := cmplx.Abs(spec[i][j]); math.Abs(m-want) > 1e-12 {
				t.Fatalf("magnitude [%d][%d] = %g, want %g", i, j, m, want)
			}
		}
	}
}

func TestApplyMaskIdentityAndZero(t *testing.T) {
	tr := dsp.NewTransform(256, 64)
	signal := sine(512, 500, 8000)
	spec := tr.Analyze(signal)

	ones := make([]float64, tr.Bins())
	zeros := make([]float64, tr.Bins())
	for i := range ones {
		ones[i] = 1
	}

	masked := make([][]complex128, len(spec))
	silenced := make([][]complex128, len(spec))
	for i, frame := range spec {
		masked[i] = dsp.ApplyMask(frame, ones)
		silenced[i] = dsp.ApplyMask(frame, zeros)
	}

	identity := tr.Synthesize(masked, len(signal))
	for i := 1; i < len(signal)-1; i++ {
		if diff := math.Abs(identity[i] - signal[i]); diff > 1e-6 {
			t.Fatalf("identity mask altered sample %d by %g", i, diff)
		}
	}

	silence := tr.Synthesize(silenced, len(signal))
	for i, v := range silence {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("zero mask left energy at sample %d: %g", i, v)
		}
	}
}

func TestApplyMaskPreservesHermitianSymmetry(t *testing.T) {
	tr := dsp.NewTransform(64, 16)
	spec := tr.Analyze(sine(128, 440, 8000))

	mask := make([]float64, tr.Bins())
	for i := range mask {
		mask[i] = 0.5 + 0.4*math.Sin(float64(i))
	}

	out := dsp.ApplyMask(spec[0], mask)
	n := len(out)
	for j := 1; j < n/2; j++ {
		mirror := cmplx.Conj(out[n-j])
		if cmplx.Abs(out[j]-mirror) > 1e-12 {
			t.Fatalf("bin %d breaks symmetry: %v vs conj %v", j, out[j], out[n-j])
		}
	}
}

func TestLogMagnitude(t *testing.T) {
	if got := dsp.LogMagnitude(1.0); got != 0 {
		t.Fatalf("log(1) = %g, want 0", got)
	}
	floor := dsp.LogMagnitude(0)
	if got := dsp.LogMagnitude(1e-12); got != floor {
		t.Fatalf("sub-floor magnitudes should clamp: %g vs %g", got, floor)
	}
	if math.Abs(floor-math.Log(1e-5)) > 1e-12 {
		t.Fatalf("floor = %g, want log(1e-5)", floor)
	}
}
