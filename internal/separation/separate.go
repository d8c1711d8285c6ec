package separation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"remix/internal/audio"
	"remix/internal/logging"
)

// StemFile names one written stem.
type StemFile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
}

// Result reports a completed separation.
type Result struct {
	Model      string        `json:"model"`
	Input      string        `json:"input"`
	OutputDir  string        `json:"output_dir"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Stems      []StemFile    `json:"stems"`
}

// StemPaths maps stem name to written file path.
func (r *Result) StemPaths() map[string]string {
	paths := make(map[string]string, len(r.Stems))
	for _, stem := range r.Stems {
		paths[stem.Name] = stem.Path
	}
	return paths
}

// SeparateFile decodes input, adapts it to the engine's sample rate and
// channel count, and writes one float WAV per stem under
// outputDir/<model>/<track>/.
func SeparateFile(ctx context.Context, engine *Engine, input, outputDir string) (*Result, error) {
	clip, format, err := audio.DecodeFile(input)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", input, err)
	}
	engine.logger.Info("input decoded",
		logging.String(logging.FieldInput, input),
		logging.String("format", string(format)),
		logging.Int("sample_rate", clip.SampleRate),
		logging.Int("channels", clip.Channels()),
		logging.Duration("duration", clip.Duration()))

	clip = clip.EnsureStereo()
	if clip.SampleRate != engine.SampleRate() {
		engine.logger.Info("resampling",
			logging.Int("from", clip.SampleRate),
			logging.Int("to", engine.SampleRate()))
		clip = audio.Resample(clip, engine.SampleRate())
	}

	started := time.Now()
	stems, err := engine.Separate(ctx, clip)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(outputDir, engine.Model(), trackName(input))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	result := &Result{
		Model:      engine.Model(),
		Input:      input,
		OutputDir:  dir,
		SampleRate: clip.SampleRate,
		Duration:   clip.Duration(),
	}
	for s, name := range engine.Stems() {
		out := audio.NewBuffer(clip.SampleRate, len(stems[s]), clip.Frames())
		for c := range stems[s] {
			for i, v := range stems[s][c] {
				out.Data[c][i] = float32(v)
			}
		}
		path := filepath.Join(dir, name+".wav")
		if err := audio.SaveWAV(path, out); err != nil {
			return nil, fmt.Errorf("write stem %s: %w", name, err)
		}
		engine.logger.Debug("stem written",
			logging.String(logging.FieldStem, name),
			logging.String(logging.FieldOutput, path))
		result.Stems = append(result.Stems, StemFile{
			Name:        name,
			DisplayName: DisplayName(name),
			Path:        path,
		})
	}
	engine.logger.Info("stems written",
		logging.String(logging.FieldModel, engine.Model()),
		logging.Int("stems", len(result.Stems)),
		logging.String(logging.FieldOutput, dir),
		logging.Duration("elapsed", time.Since(started)))
	return result, nil
}

// displayNames carries the labels the app shows instead of raw stem
// identifiers. Anything absent falls back to title casing.
var displayNames = map[string]string{
	"piano": "Keys",
}

// DisplayName returns the user-facing label for a stem.
func DisplayName(stem string) string {
	if label, ok := displayNames[stem]; ok {
		return label
	}
	return cases.Title(language.English).String(stem)
}

// trackName derives the per-track output directory from the input filename.
func trackName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "track"
	}
	return name
}
