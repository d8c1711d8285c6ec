package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration shared by all commands.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ModelsDir string `toml:"models_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Models contains configuration for fetching and staging weight bundles.
type Models struct {
	Default         string `toml:"default"`
	BaseURL         string `toml:"base_url"`
	VerifyDownloads bool   `toml:"verify_downloads"`
	FetchTimeout    int    `toml:"fetch_timeout"`
}

// Separation contains spectral parameters for the stem separation engine.
type Separation struct {
	Window         int `toml:"window"`
	Hop            int `toml:"hop"`
	ChunkSeconds   int `toml:"chunk_seconds"`
	OverlapSeconds int `toml:"overlap_seconds"`
}

// Decompose contains parameters for spectral PCA decomposition.
type Decompose struct {
	Components int `toml:"components"`
	Window     int `toml:"window_size"`
	Hop        int `toml:"hop_size"`
}

// Icon contains palette and geometry overrides for app icon generation.
type Icon struct {
	BackgroundTop    string  `toml:"background_top"`
	BackgroundBottom string  `toml:"background_bottom"`
	Wave             string  `toml:"wave"`
	CornerRatio      float64 `toml:"corner_ratio"`
}

// Serve contains configuration for the localhost session server.
type Serve struct {
	Bind              string `toml:"bind"`
	MaxBodyMB         int    `toml:"max_body_mb"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the Remix toolkit.
//
// Configuration sections by subsystem:
//   - Paths: data, model staging, stem output, and log directories
//   - Models: default bundle, mirror URL, download verification
//   - Separation: STFT geometry and chunking for the separation engine
//   - Decompose: STFT geometry and component count for PCA decomposition
//   - Icon: palette and corner geometry for icon generation
//   - Serve: bind address and limits for the localhost session server
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Models     Models     `toml:"models"`
	Separation Separation `toml:"separation"`
	Decompose  Decompose  `toml:"decompose"`
	Icon       Icon       `toml:"icon"`
	Serve      Serve      `toml:"serve"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/remix/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("remix.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories commands rely on. OutputDir is
// created on a best-effort basis so probing commands work when the stem
// destination lives on storage that is temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ModelsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// CatalogPath returns the location of the separation history database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
