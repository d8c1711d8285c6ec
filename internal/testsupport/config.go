package testsupport

import (
	"path/filepath"
	"testing"

	"remix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ModelsDir = filepath.Join(base, "data", "models")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Serve.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}

	return builder.cfg
}

// WithDefaultModel overrides the default model name on the test config.
func WithDefaultModel(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Models.Default = name
	}
}

// WithSeparationGeometry overrides the STFT geometry on the test config so
// engine tests can run with small windows.
func WithSeparationGeometry(window, hop int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Separation.Window = window
		b.cfg.Separation.Hop = hop
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
