package config

import (
	"path/filepath"
	"strings"
)

// normalize expands path fields, backfills empty values with defaults, and
// trims free-form strings so validation sees canonical values.
func (c *Config) normalize() error {
	defaults := Default()

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	expandedData, err := expandPath(c.Paths.DataDir)
	if err != nil {
		return err
	}
	c.Paths.DataDir = expandedData

	// ModelsDir and LogDir default to subdirectories of whatever DataDir
	// resolved to, not of the built-in default.
	if strings.TrimSpace(c.Paths.ModelsDir) == "" {
		c.Paths.ModelsDir = filepath.Join(c.Paths.DataDir, "models")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaults.Paths.OutputDir
	}

	for _, field := range []*string{&c.Paths.ModelsDir, &c.Paths.OutputDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Models.Default = strings.TrimSpace(c.Models.Default)
	if c.Models.Default == "" {
		c.Models.Default = defaults.Models.Default
	}
	c.Models.BaseURL = strings.TrimRight(strings.TrimSpace(c.Models.BaseURL), "/")
	if c.Models.FetchTimeout <= 0 {
		c.Models.FetchTimeout = defaults.Models.FetchTimeout
	}

	if c.Separation.Window <= 0 {
		c.Separation.Window = defaults.Separation.Window
	}
	if c.Separation.Hop <= 0 {
		c.Separation.Hop = defaults.Separation.Hop
	}
	if c.Separation.ChunkSeconds <= 0 {
		c.Separation.ChunkSeconds = defaults.Separation.ChunkSeconds
	}
	if c.Separation.OverlapSeconds <= 0 {
		c.Separation.OverlapSeconds = defaults.Separation.OverlapSeconds
	}

	if c.Decompose.Components <= 0 {
		c.Decompose.Components = defaults.Decompose.Components
	}
	if c.Decompose.Window <= 0 {
		c.Decompose.Window = defaults.Decompose.Window
	}
	if c.Decompose.Hop <= 0 {
		c.Decompose.Hop = defaults.Decompose.Hop
	}

	c.Icon.BackgroundTop = normalizeColor(c.Icon.BackgroundTop, defaults.Icon.BackgroundTop)
	c.Icon.BackgroundBottom = normalizeColor(c.Icon.BackgroundBottom, defaults.Icon.BackgroundBottom)
	c.Icon.Wave = normalizeColor(c.Icon.Wave, defaults.Icon.Wave)
	if c.Icon.CornerRatio <= 0 {
		c.Icon.CornerRatio = defaults.Icon.CornerRatio
	}

	c.Serve.Bind = strings.TrimSpace(c.Serve.Bind)
	if c.Serve.Bind == "" {
		c.Serve.Bind = defaults.Serve.Bind
	}
	if c.Serve.MaxBodyMB <= 0 {
		c.Serve.MaxBodyMB = defaults.Serve.MaxBodyMB
	}
	if c.Serve.SessionTTLMinutes <= 0 {
		c.Serve.SessionTTLMinutes = defaults.Serve.SessionTTLMinutes
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	return nil
}

func normalizeColor(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	return strings.ToUpper(value)
}
