package modelstore

import (
	"fmt"
	"strings"
)

// DefaultModel is staged when no model is named explicitly.
const DefaultModel = "remixnet_6s"

// defaultBaseURL hosts the pretrained bundles. [models].base_url points
// fetches at a mirror instead.
const defaultBaseURL = "https://download.remix.audio/models"

// ModelInfo describes one bundle the store knows how to stage.
type ModelInfo struct {
	Name        string
	File        string
	URL         string
	SHA256      string
	Size        int64
	Stems       int
	Description string
}

// builtinModels is the registry of published pretrained bundles. Sizes are
// approximate and only used for display.
var builtinModels = []ModelInfo{
	{
		Name:        "remixnet_6s",
		File:        "remixnet_6s.rmxb",
		URL:         "remixnet_6s.rmxb",
		Size:        168 << 20,
		Stems:       6,
		Description: "Six-stem separator (drums, bass, vocals, guitar, piano, other)",
	},
	{
		Name:        "remixnet_4s",
		File:        "remixnet_4s.rmxb",
		URL:         "remixnet_4s.rmxb",
		Size:        121 << 20,
		Stems:       4,
		Description: "Four-stem separator (drums, bass, vocals, other)",
	},
	{
		Name:        "remixnet_4s_ft",
		File:        "remixnet_4s_ft.rmxb",
		URL:         "remixnet_4s_ft.rmxb",
		Size:        121 << 20,
		Stems:       4,
		Description: "Fine-tuned four-stem separator, slower but cleaner",
	},
}

// Builtin returns a copy of the builtin registry.
func Builtin() []ModelInfo {
	return append([]ModelInfo(nil), builtinModels...)
}

func (s *Store) lookup(name string) (ModelInfo, error) {
	for _, info := range s.models {
		if info.Name == name {
			return info, nil
		}
	}
	known := make([]string, 0, len(s.models))
	for _, info := range s.models {
		known = append(known, info.Name)
	}
	return ModelInfo{}, fmt.Errorf("unknown model %q (known: %s)", name, strings.Join(known, ", "))
}

// downloadURL resolves the fetch location for info, honoring the configured
// mirror.
func (s *Store) downloadURL(info ModelInfo) string {
	if strings.HasPrefix(info.URL, "http://") || strings.HasPrefix(info.URL, "https://") {
		return info.URL
	}
	base := s.cfg.Models.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + info.URL
}
