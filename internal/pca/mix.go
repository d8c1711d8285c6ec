package pca

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"remix/internal/audio"
)

// Mix recombines components at the given per-component volumes. The result
// is peak-normalized only when the weighted sum clips.
func Mix(components [][]float64, volumes []float64) ([]float64, error) {
	if len(components) == 0 {
		return nil, errors.New("pca: no components to mix")
	}
	if len(volumes) != len(components) {
		return nil, fmt.Errorf("pca: %d volumes for %d components", len(volumes), len(components))
	}

	length := 0
	for _, comp := range components {
		if len(comp) > length {
			length = len(comp)
		}
	}
	out := make([]float64, length)
	for i, comp := range components {
		volume := volumes[i]
		for j, s := range comp {
			out[j] += s * volume
		}
	}

	peak := 0.0
	for _, s := range out {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak > 1 {
		for j := range out {
			out[j] /= peak
		}
	}
	return out, nil
}

// SaveComponents writes each component as <track>_component_K.wav under dir,
// K counted from 1. It returns the written paths in component order.
func SaveComponents(result *Result, dir, track string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(result.Components))
	for k, comp := range result.Components {
		buf := audio.NewBuffer(result.SampleRate, 1, len(comp))
		for i, v := range comp {
			buf.Data[0][i] = float32(v)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_component_%d.wav", track, k+1))
		if err := audio.SaveWAV(path, buf); err != nil {
			return nil, fmt.Errorf("write component %d: %w", k+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var componentFilePattern = regexp.MustCompile(`_component_(\d+)\.wav$`)

// LoadComponents reads every *_component_K.wav under dir in numeric order
// and returns the mono waveforms with their shared sample rate.
func LoadComponents(dir string) ([][]float64, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read component dir: %w", err)
	}

	type componentFile struct {
		index int
		path  string
	}
	var files []componentFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := componentFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, componentFile{index: index, path: filepath.Join(dir, entry.Name())})
	}
	if len(files) == 0 {
		return nil, 0, fmt.Errorf("no component files in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })

	components := make([][]float64, 0, len(files))
	sampleRate := 0
	for _, file := range files {
		buf, _, err := audio.DecodeFile(file.path)
		if err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", file.path, err)
		}
		if sampleRate == 0 {
			sampleRate = buf.SampleRate
		} else if buf.SampleRate != sampleRate {
			return nil, 0, fmt.Errorf("%s is %d Hz, other components are %d Hz", file.path, buf.SampleRate, sampleRate)
		}
		components = append(components, buf.Mono())
	}
	return components, sampleRate, nil
}
